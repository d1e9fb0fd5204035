// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surface

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/procgroup"
)

// urlPlaceholder in launch args is replaced by the target address. Without
// it the address is appended as the last argument.
const urlPlaceholder = "{url}"

// Launcher opens a new player surface showing target.
type Launcher interface {
	Launch(ctx context.Context, target string) error
}

type launched struct {
	cmd  *exec.Cmd
	done chan error
}

// ExecLauncher runs a configured command, typically a browser or xdg-open.
// Each launch gets its own process group; processes still running at
// Shutdown are terminated with it.
type ExecLauncher struct {
	command string
	args    []string

	mu    sync.Mutex
	procs map[int]*launched
	wg    sync.WaitGroup
}

// NewExecLauncher returns a launcher for command with args.
func NewExecLauncher(command string, args []string) *ExecLauncher {
	return &ExecLauncher{
		command: command,
		args:    append([]string(nil), args...),
		procs:   make(map[int]*launched),
	}
}

func (l *ExecLauncher) argv(target string) []string {
	out := make([]string, 0, len(l.args)+1)
	substituted := false
	for _, a := range l.args {
		if strings.Contains(a, urlPlaceholder) {
			a = strings.ReplaceAll(a, urlPlaceholder, target)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, target)
	}
	return out
}

// Launch starts the command and returns once it is running.
func (l *ExecLauncher) Launch(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(l.command, l.argv(target)...) // #nosec G204 -- operator-configured launcher
	procgroup.Set(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", l.command, err)
	}

	p := &launched{cmd: cmd, done: make(chan error, 1)}
	pid := cmd.Process.Pid
	l.mu.Lock()
	l.procs[pid] = p
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		err := cmd.Wait()
		l.mu.Lock()
		delete(l.procs, pid)
		l.mu.Unlock()
		p.done <- err
	}()

	logger := xglog.WithComponent("surface")
	logger.Info().
		Str(xglog.FieldEvent, "surface.launched").
		Int("pid", pid).
		Str("command", l.command).
		Msg("launched player surface")
	return nil
}

// Shutdown terminates launched processes that are still running.
func (l *ExecLauncher) Shutdown(grace time.Duration) {
	l.mu.Lock()
	running := make([]*launched, 0, len(l.procs))
	for _, p := range l.procs {
		running = append(running, p)
	}
	l.mu.Unlock()

	for _, p := range running {
		if err := procgroup.Terminate(p.cmd, p.done, grace); err != nil {
			logger := xglog.WithComponent("surface")
			logger.Debug().Err(err).
				Int("pid", p.cmd.Process.Pid).
				Msg("launched process exited with error")
		}
	}
	l.wg.Wait()
}
