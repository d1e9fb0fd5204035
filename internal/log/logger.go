// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config describes the process logger. Zero fields fall back to LOG_LEVEL,
// LOG_SERVICE and stdout.
type Config struct {
	Level   string
	Output  io.Writer
	Service string
	Version string
}

var (
	initOnce sync.Once
	baseMu   sync.RWMutex
	base     zerolog.Logger
)

// Configure installs the process logger. Only the first call has effect.
func Configure(cfg Config) {
	initOnce.Do(func() { install(cfg) })
}

// Reconfigure replaces the process logger unconditionally. Config reloads
// and tests use it.
func Reconfigure(cfg Config) {
	initOnce.Do(func() {})
	install(cfg)
}

func install(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(firstNonEmpty(cfg.Level, os.Getenv("LOG_LEVEL"))))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l := zerolog.New(out).With().
		Timestamp().
		Str("service", firstNonEmpty(cfg.Service, os.Getenv("LOG_SERVICE"), "chatdj")).
		Str("version", cfg.Version).
		Logger()

	baseMu.Lock()
	base = l
	baseMu.Unlock()
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Base returns the process logger, installing defaults on first use.
func Base() zerolog.Logger {
	Configure(Config{})
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// WithComponent returns a child of Base tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

// Derive returns a child of Base with fields added by fn. fn may be nil.
func Derive(fn func(*zerolog.Context)) zerolog.Logger {
	c := Base().With()
	if fn != nil {
		fn(&c)
	}
	return c.Logger()
}
