//go:build !linux || !(386 || amd64)

package btrace

import (
	"errors"
	"fmt"
	"os/exec"
)

func (t *Tracer) runUntraced(cmd *exec.Cmd) error {
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

func (t *Tracer) runTraced(*exec.Cmd) error {
	return ErrUnsupportedPlatform
}

func (t *Tracer) kill() {
	proc := t.proc.Load()
	if proc == nil {
		return
	}

	if err := proc.Kill(); err != nil {
		t.logger.Errorw("failed to kill tracee", "pid", proc.Pid, "err", err)
	}
}
