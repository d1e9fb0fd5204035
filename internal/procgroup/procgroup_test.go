// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, script string) (*exec.Cmd, <-chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return cmd, waitCh
}

func TestSet_MakesGroupLeader(t *testing.T) {
	cmd, waitCh := start(t, "sleep 10")
	defer func() { _ = Terminate(cmd, waitCh, time.Second) }()

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, pgid)
}

func TestTerminate_StopsGroup(t *testing.T) {
	cmd, waitCh := start(t, "sleep 100 & sleep 100")

	done := make(chan struct{})
	go func() {
		_ = Terminate(cmd, waitCh, 500*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Terminate did not return")
	}
	assert.NoError(t, Kill(cmd, syscall.SIGTERM), "killing an exited group is not an error")
}

func TestTerminate_NilCommand(t *testing.T) {
	assert.NoError(t, Terminate(nil, nil, time.Millisecond))
	assert.NoError(t, Kill(&exec.Cmd{}, syscall.SIGKILL))
}
