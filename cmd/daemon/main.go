// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/daemon"
	"github.com/ManuGH/chatdj/internal/health"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/version"
	"github.com/rs/zerolog"
)

var (
	appVersion = version.Version
	commit     = version.Commit
	buildDate  = version.Date
)

// maskURL drops credentials from a collector URL before it is logged.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	return u.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configFlag := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", appVersion, commit, buildDate)
		return
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "chatdj", Version: appVersion})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, strings.TrimSpace(*configFlag)); err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("chatdj stopped with an error")
	}
}

// run loads config, wires the services and blocks until ctx ends. An
// explicit path wins over ${CHATDJ_DATA_DIR}/config.yaml.
func run(ctx context.Context, explicitPath string) error {
	path, source := explicitPath, "file"
	if path == "" {
		path, source = resolveDefaultConfigPath(), "file(auto)"
	}
	if path == "" {
		source = "env+defaults"
	}

	cfg, err := config.NewLoader(path, appVersion).Load()
	if err != nil {
		return fmt.Errorf("load config %q: %w", path, err)
	}
	xglog.Reconfigure(xglog.Config{Level: cfg.LogLevel, Service: "chatdj", Version: cfg.Version})
	logger := xglog.WithComponent("daemon")
	logger.Info().Str("event", "config.loaded").Str("source", source).Str("path", path).Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return err
	}
	announce(logger, cfg)

	c, err := daemon.WireServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	// Without a file the data dir default is watched, so creating it later
	// takes effect without a restart.
	watchPath := path
	if watchPath == "" {
		watchPath = filepath.Join(cfg.DataDir, "config.yaml")
	}
	holder := config.NewConfigHolder(cfg, config.NewLoader(watchPath, appVersion), watchPath)

	if err := daemon.NewApp(logger, c, holder).Run(ctx); err != nil {
		return err
	}
	logger.Info().Str("event", "daemon.exit").Msg("stopped")
	return nil
}

func announce(logger zerolog.Logger, cfg config.AppConfig) {
	logger.Info().
		Str("event", "startup").
		Str("version", appVersion).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.API.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Str("store", cfg.Store.Backend).
		Str("store_path", cfg.Store.Path).
		Str("destination_class", cfg.Playback.DestinationClass).
		Int("max_duration_s", cfg.Playback.MaxDurationSeconds).
		Str("launch_command", cfg.Surface.LaunchCommand).
		Msg("starting chatdj")
	if cfg.Telemetry.Enabled {
		logger.Info().Str("exporter", cfg.Telemetry.Exporter).Str("endpoint", maskURL(cfg.Telemetry.Endpoint)).Msg("tracing enabled")
	}
	if len(cfg.API.AllowedOrigins) == 0 {
		logger.Warn().Msg("no allowed origins, browser clients must be same-origin")
	}
}
