// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts helper processes in their own process group so
// the whole tree can be torn down at once.
package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/chatdj/internal/metrics"
)

// Terminate stops a process group started with Set. It sends SIGTERM, waits
// up to grace for waitCh, then sends SIGKILL. waitCh must deliver the result
// of cmd.Wait; Terminate always drains it. Nil commands are a no-op.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.RecordProcSignal("SIGTERM", signalResult(Kill(cmd, syscall.SIGTERM)))

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
	}

	metrics.RecordProcSignal("SIGKILL", signalResult(Kill(cmd, syscall.SIGKILL)))
	return <-waitCh
}

func signalResult(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return "esrch"
	default:
		return "error"
	}
}
