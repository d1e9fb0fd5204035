// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/validate"
	"github.com/rs/zerolog"
)

type preflight struct {
	name string
	run  func(zerolog.Logger, config.AppConfig) error
}

var preflights = []preflight{
	{"data directory", checkDataDir},
	{"listeners", checkListeners},
	{"store", checkStore},
	{"surface launcher", checkLauncher},
}

// PerformStartupChecks catches environment problems that would otherwise
// only surface once the first link arrives.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("preflight")
	for _, p := range preflights {
		if err := p.run(logger, cfg); err != nil {
			return fmt.Errorf("preflight %s: %w", p.name, err)
		}
	}
	logger.Info().Str(log.FieldEvent, "preflight.ok").Int("checks", len(preflights)).Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, cfg config.AppConfig) error {
	if err := ensureWritable(cfg.DataDir); err != nil {
		return err
	}
	if underTemp(cfg.DataDir) {
		logger.Warn().Str("data_dir", cfg.DataDir).Msg("data directory is under temp, queue and playlists may not survive a reboot")
	}
	return nil
}

func checkListeners(_ zerolog.Logger, cfg config.AppConfig) error {
	v := validate.New()
	if cfg.API.ListenAddr != "" {
		v.ListenAddr("api listen address", cfg.API.ListenAddr)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics listen address", cfg.Metrics.ListenAddr)
	}
	return v.Err()
}

func checkStore(logger zerolog.Logger, cfg config.AppConfig) error {
	switch strings.ToLower(cfg.Store.Backend) {
	case "memory":
		logger.Warn().Msg("memory store, the queue is lost on restart")
	case "redis":
		if _, _, err := net.SplitHostPort(cfg.Store.Redis.Addr); err != nil {
			return fmt.Errorf("redis address %q: %w", cfg.Store.Redis.Addr, err)
		}
	case "badger", "sqlite":
		if cfg.Store.Path == "" {
			return nil
		}
		if err := ensureWritable(filepath.Dir(cfg.Store.Path)); err != nil {
			return fmt.Errorf("%s: %w", cfg.Store.Path, err)
		}
	}
	return nil
}

// checkLauncher only warns: surfaces opened by hand still attach.
func checkLauncher(logger zerolog.Logger, cfg config.AppConfig) error {
	cmd := strings.TrimSpace(cfg.Surface.LaunchCommand)
	if cmd == "" {
		return nil
	}
	if _, err := exec.LookPath(cmd); err != nil {
		logger.Warn().Err(err).Str("command", cmd).Msg("launch command not found, new surfaces must be opened by hand")
	}
	return nil
}

// ensureWritable creates dir if needed and proves a file can be written in it.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func underTemp(dir string) bool {
	tmp := filepath.Clean(os.TempDir())
	rel, err := filepath.Rel(tmp, filepath.Clean(dir))
	return tmp != "." && err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
