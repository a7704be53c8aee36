package btrace

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcassar-diss/btrace/addrspace"
	"github.com/tcassar-diss/btrace/syscalls"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotI386             = errors.New("not an i386 elf")
	ErrUnsupportedPlatform = errors.New("tracing is not supported on this platform")
	ErrTraceeNotStopped    = errors.New("tracee did not stop after exec")
)

const (
	elfClass32 = 1
	elfEM386   = 3
)

type Cfg struct {
	// Output is the trace destination. Empty discards the trace.
	Output string

	// Instrument enables tracing. When false the program runs untouched and Output is only
	// created.
	Instrument bool

	// Timeout kills the program after the given duration. Zero means no limit.
	Timeout time.Duration
}

// Tracer runs a program under ptrace and feeds its syscalls to a Decoder.
type Tracer struct {
	logger  *zap.SugaredLogger
	cfg     Cfg
	mem     *addrspace.ProcMem
	sink    *Sink
	decoder *Decoder
	proc    atomic.Pointer[os.Process]
}

func NewTracer(logger *zap.SugaredLogger, cfg Cfg) *Tracer {
	mem := addrspace.NewProcMem(logger)
	sink := OpenSink(logger, cfg.Output)

	return &Tracer{
		logger:  logger,
		cfg:     cfg,
		mem:     mem,
		sink:    sink,
		decoder: NewDecoder(logger, syscalls.NewTable(), mem, sink),
	}
}

// Decoder exposes the decoder, mostly for its Stats.
func (t *Tracer) Decoder() *Decoder {
	return t.decoder
}

// Trace runs executable with args until it and every process it forks have exited.
func (t *Tracer) Trace(ctx context.Context, executable string, args ...string) error {
	t.logger.Infow("tracing program execution", "executable", executable, "args", args, "instrument", t.cfg.Instrument)

	path, err := exec.LookPath(executable)
	if err != nil {
		return fmt.Errorf("failed to find executable: %w", err)
	}

	if t.cfg.Instrument {
		isI386, err := t.isI386(path)
		if err != nil {
			return fmt.Errorf("failed to check if input is an executable: %w", err)
		}

		if !isI386 {
			return fmt.Errorf("%s: %w", path, ErrNotI386)
		}
	}

	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	stopper := make(chan os.Signal, 1)
	signal.Notify(stopper, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopper)

	err = supervise(ctx, t.logger, stopper, func() error {
		if !t.cfg.Instrument {
			return t.runUntraced(cmd)
		}

		return t.runTraced(cmd)
	}, t.kill)
	if err != nil {
		return fmt.Errorf("failed to trace %s: %w", executable, err)
	}

	snap := t.decoder.Stats().Snapshot()
	t.logger.Infow("trace finished", "records", snap.Records, "unknown", snap.Unknown, "orphaned", snap.Orphaned)

	return nil
}

func (t *Tracer) Close() error {
	if err := t.mem.Close(); err != nil {
		t.logger.Errorw("failed to close address spaces", "err", err)
	}

	return t.sink.Close()
}

// supervise runs run alongside a watcher. kill is called when ctx is done, a stop signal
// arrives or run fails: a failed host can leave the tracee stopped, and an exiting tracer
// would detach it.
func supervise(ctx context.Context, logger *zap.SugaredLogger, stopper <-chan os.Signal, run func() error, kill func()) error {
	group, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	group.Go(func() error {
		defer close(done)

		if err := run(); err != nil {
			logger.Errorw("trace failed, killing tracee...", "err", err)
			kill()

			return err
		}

		return nil
	})

	group.Go(func() error {
		select {
		case <-done:
			return nil
		case <-gctx.Done():
			logger.Infow("context done, killing tracee...", "err", gctx.Err())
		case sig := <-stopper:
			logger.Infow("interrupt received, killing tracee...", "signal", sig)
		}

		kill()

		return nil
	})

	return group.Wait()
}

// finish ends the trace. The end marker is only written when the main process exited on its
// own; a killed or lost program leaves an unterminated trace.
func (t *Tracer) finish(mainExited bool) {
	if !mainExited {
		return
	}

	if err := t.sink.Finish(); err != nil {
		t.logger.Errorw("failed to finish trace", "err", err)
	}
}

// threadExited is called once per thread the host stops tracking.
func (t *Tracer) threadExited(tid int32) {
	t.decoder.OnThreadExit(tid)
	t.mem.Forget(tid)
}

func (t *Tracer) isI386(fp string) (bool, error) {
	f, err := os.Open(fp)
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	bts, err := io.ReadAll(io.LimitReader(f, 32))
	if err != nil {
		return false, fmt.Errorf("failed to parse first 32 bytes of executable: %w", err)
	}

	if len(bts) < 20 || string(bts[1:4]) != "ELF" {
		return false, nil
	}

	return bts[4] == elfClass32 && binary.LittleEndian.Uint16(bts[18:20]) == elfEM386, nil
}
