// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField marks a strict decode failure on a key AppConfig
// does not define.
var ErrUnknownConfigField = errors.New("config: unknown field")

// Loader builds an AppConfig from defaults, then the YAML file, then
// CHATDJ_* variables, each layer overriding the last.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // env keys that were set and read
}

// NewLoader returns a Loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load assembles and validates the config. The returned config is only
// meaningful when err is nil.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	if l.configPath != "" {
		if err := decodeFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", l.configPath, err)
		}
	}
	l.mergeEnvConfig(&cfg)
	finalize(&cfg, l.version)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// finalize fills the values derived from others.
func finalize(cfg *AppConfig, version string) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Backend {
		case "sqlite":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "chatdj.sqlite")
		case "badger":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "state")
		}
	}
	cfg.Version = version
}

// decodeFile strictly decodes a single YAML document over cfg. Unknown keys
// and trailing documents are errors; an empty file changes nothing.
func decodeFile(path string, cfg *AppConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("unsupported config format %q, want .yaml or .yml", filepath.Ext(path))
	}

	// #nosec G304 -- the operator chooses the config path
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	err = dec.Decode(cfg)
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case isUnknownField(err):
		return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
	case err != nil:
		return fmt.Errorf("parse: %w", err)
	}
	if err := dec.Decode(new(struct{})); !errors.Is(err, io.EOF) {
		return errors.New("more than one YAML document")
	}
	return nil
}

func isUnknownField(err error) bool {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return false
	}
	for _, msg := range te.Errors {
		if strings.Contains(msg, "not found in type") {
			return true
		}
	}
	return false
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("CHATDJ_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = l.envString("CHATDJ_DATA_DIR", cfg.DataDir)

	cfg.API.ListenAddr = l.envString("CHATDJ_LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimit.Enabled = l.envBool("CHATDJ_RATELIMIT_ENABLED", cfg.API.RateLimit.Enabled)
	cfg.API.RateLimit.RequestsPerMinute = l.envInt("CHATDJ_RATELIMIT_RPM", cfg.API.RateLimit.RequestsPerMinute)
	if origins, ok := l.envLookup("CHATDJ_ALLOWED_ORIGINS"); ok && strings.TrimSpace(origins) != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}
	if proxies, ok := l.envLookup("CHATDJ_TRUSTED_PROXIES"); ok && strings.TrimSpace(proxies) != "" {
		cfg.API.TrustedProxies = splitList(proxies)
	}

	cfg.Metrics.Enabled = l.envBool("CHATDJ_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = l.envString("CHATDJ_METRICS_LISTEN", cfg.Metrics.ListenAddr)

	cfg.Store.Backend = l.envString("CHATDJ_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("CHATDJ_STORE_PATH", cfg.Store.Path)
	cfg.Store.Redis.Addr = l.envString("CHATDJ_REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = l.envString("CHATDJ_REDIS_PASSWORD", cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = l.envInt("CHATDJ_REDIS_DB", cfg.Store.Redis.DB)

	cfg.Playback.MaxDurationSeconds = l.envInt("CHATDJ_MAX_DURATION_SECONDS", cfg.Playback.MaxDurationSeconds)
	cfg.Playback.DestinationClass = l.envString("CHATDJ_DESTINATION_CLASS", cfg.Playback.DestinationClass)

	cfg.Surface.LaunchCommand = l.envString("CHATDJ_LAUNCH_COMMAND", cfg.Surface.LaunchCommand)

	cfg.Telemetry.Enabled = l.envBool("CHATDJ_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = l.envString("CHATDJ_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Exporter = l.envString("CHATDJ_OTLP_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.SamplingRate = l.envFloat("CHATDJ_TRACE_SAMPLING", cfg.Telemetry.SamplingRate)

	cfg.Server.ShutdownTimeout = l.envDuration("CHATDJ_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
