//go:build linux && (386 || amd64)

package btrace

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
		unix.PTRACE_O_TRACECLONE |
		unix.PTRACE_O_TRACEFORK |
		unix.PTRACE_O_TRACEVFORK |
		unix.PTRACE_O_TRACEEXEC

	// sigSyscallStop is the stop signal of syscall stops under PTRACE_O_TRACESYSGOOD.
	sigSyscallStop = unix.SIGTRAP | 0x80
)

// thread is the host's view of one tracee thread.
type thread struct {
	// started is false until the first stop of an auto-attached thread has been seen.
	started bool

	// inSyscall alternates on syscall stops: entry then exit.
	inSyscall bool
}

// next flips th between entry and exit and reports whether the stop it was called for is an
// entry.
func (th *thread) next() bool {
	th.inSyscall = !th.inSyscall

	return th.inSyscall
}

type stopKind int

const (
	stopIgnored stopKind = iota
	stopExited
	stopKilled
	stopSyscall
	stopEvent
	// stopAttach is the SIGSTOP a new thread reports before it first runs.
	stopAttach
	stopSignal
)

// classify decides what ws means for a thread. started is false until the thread's first
// stop has been seen. inject is the signal to deliver when the thread is resumed.
func classify(ws unix.WaitStatus, started bool) (kind stopKind, inject int) {
	switch {
	case ws.Exited():
		return stopExited, 0
	case ws.Signaled():
		return stopKilled, 0
	case !ws.Stopped():
		return stopIgnored, 0
	}

	switch sig := ws.StopSignal(); {
	case sig == sigSyscallStop:
		return stopSyscall, 0
	case sig == unix.SIGTRAP && ws.TrapCause() > 0:
		return stopEvent, 0
	case sig == unix.SIGSTOP && !started:
		return stopAttach, 0
	default:
		return stopSignal, int(sig)
	}
}

func (t *Tracer) runUntraced(cmd *exec.Cmd) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start executable: %w", err)
	}

	t.proc.Store(cmd.Process)

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			t.logger.Infow("program exited", "status", exitErr.ProcessState.String())

			return nil
		}

		return fmt.Errorf("failed to wait for executable: %w", err)
	}

	return nil
}

// runTraced starts cmd under ptrace and services every stop of every thread until all of
// them have exited. All ptrace requests come from the one OS thread that started cmd.
func (t *Tracer) runTraced(cmd *exec.Cmd) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true, Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start executable: %w", err)
	}
	defer cmd.Process.Release()

	t.proc.Store(cmd.Process)

	pid := cmd.Process.Pid

	var ws unix.WaitStatus

	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return fmt.Errorf("failed to wait for tracee: %w", err)
	}

	if !ws.Stopped() {
		return fmt.Errorf("%w: status 0x%x", ErrTraceeNotStopped, uint32(ws))
	}

	if err := unix.PtraceSetOptions(pid, ptraceOptions); err != nil {
		return fmt.Errorf("failed to set ptrace options: %w", err)
	}

	if err := unix.PtraceSyscall(pid, 0); err != nil {
		return fmt.Errorf("failed to resume tracee: %w", err)
	}

	threads := map[int]*thread{pid: {started: true}}
	mainExited := false

	for len(threads) > 0 {
		wpid, err := unix.Wait4(-1, &ws, unix.WALL, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if errors.Is(err, unix.ECHILD) {
			t.logger.Infow("no tracees left", "untracked", len(threads))

			break
		}

		if err != nil {
			return fmt.Errorf("failed to wait for tracees: %w", err)
		}

		th, ok := threads[wpid]

		kind, inject := classify(ws, ok && th.started)

		switch kind {
		case stopIgnored:
			continue
		case stopExited, stopKilled:
			t.threadExited(int32(wpid))
			delete(threads, wpid)

			if wpid == pid {
				mainExited = kind == stopExited
				t.logger.Infow("program exited", "pid", pid, "exited", ws.Exited(), "status", ws.ExitStatus(), "signal", ws.Signal())
			}

			continue
		}

		// children may report their first stop before the parent's clone event
		if !ok {
			th = &thread{}
			threads[wpid] = th
		}

		switch kind {
		case stopSyscall:
			if err := t.syscallStop(wpid, th); err != nil {
				return err
			}
		case stopEvent:
			t.eventStop(wpid, ws.TrapCause(), threads)
		}

		th.started = true

		if err := unix.PtraceSyscall(wpid, inject); err != nil {
			if errors.Is(err, unix.ESRCH) {
				// killed while stopped, its exit status is still to come
				continue
			}

			return fmt.Errorf("failed to resume thread %d: %w", wpid, err)
		}
	}

	t.finish(mainExited)

	return nil
}

func (t *Tracer) syscallStop(tid int, th *thread) error {
	var raw unix.PtraceRegs

	if err := unix.PtraceGetRegs(tid, &raw); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}

		return fmt.Errorf("failed to read registers of thread %d: %w", tid, err)
	}

	if th.next() {
		regs := entryRegs(&raw)

		return t.decoder.OnEntry(int32(tid), &regs)
	}

	regs := exitRegs(&raw)
	t.decoder.OnProbe(int32(tid), &regs)

	return nil
}

func (t *Tracer) eventStop(tid int, cause int, threads map[int]*thread) {
	switch cause {
	case unix.PTRACE_EVENT_CLONE, unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK:
		msg, err := unix.PtraceGetEventMsg(tid)
		if err != nil {
			t.logger.Warnw("failed to read new thread id", "tid", tid, "err", err)

			return
		}

		if _, ok := threads[int(msg)]; !ok {
			threads[int(msg)] = &thread{}
		}

		t.logger.Debugw("following new thread", "parent", tid, "tid", msg)
	case unix.PTRACE_EVENT_EXEC:
		// the address space was replaced
		t.mem.Forget(int32(tid))

		t.logger.Debugw("thread called exec", "tid", tid)
	}
}

func (t *Tracer) kill() {
	proc := t.proc.Load()
	if proc == nil {
		return
	}

	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		t.logger.Errorw("failed to kill tracee", "pid", proc.Pid, "err", err)
	}
}
