// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package procgroup

import (
	"os/exec"
	"syscall"
)

// Set does nothing without process groups.
func Set(*exec.Cmd) {}

// Kill can only reach the launched process itself, and only with SIGKILL.
// SIGTERM is dropped so Terminate falls through to the kill after grace.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil || sig != syscall.SIGKILL {
		return nil
	}
	return cmd.Process.Kill()
}
