// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net"
	"strings"

	"github.com/ManuGH/chatdj/internal/validate"
)

// Validate checks the resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("LogLevel", cfg.LogLevel, validate.LogLevels)

	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	if cfg.Metrics.Enabled {
		v.ListenAddr("Metrics.ListenAddr", cfg.Metrics.ListenAddr)
	}
	if cfg.API.RateLimit.Enabled {
		v.Positive("API.RateLimit.RequestsPerMinute", cfg.API.RateLimit.RequestsPerMinute)
	}

	v.OneOf("Store.Backend", cfg.Store.Backend, []string{"memory", "badger", "sqlite", "redis"})
	switch cfg.Store.Backend {
	case "badger":
		v.Directory("DataDir", cfg.DataDir, false)
		v.NotEmpty("Store.Path", cfg.Store.Path)
	case "sqlite":
		v.Directory("DataDir", cfg.DataDir, false)
		v.NotEmpty("Store.Path", cfg.Store.Path)
	case "redis":
		if _, _, err := net.SplitHostPort(cfg.Store.Redis.Addr); err != nil {
			v.AddError("Store.Redis.Addr", "must be host:port", cfg.Store.Redis.Addr)
		}
		v.NonNegative("Store.Redis.DB", cfg.Store.Redis.DB)
	}

	p := cfg.Playback
	v.Positive("Playback.MaxDurationSeconds", p.MaxDurationSeconds)
	v.NotEmpty("Playback.DestinationClass", p.DestinationClass)
	v.Range("Playback.SurfaceAttempts", p.SurfaceAttempts, 1, 10)
	v.Range("Playback.MetadataAttempts", p.MetadataAttempts, 1, 10)
	v.PositiveDuration("Playback.ReadyTimeout", p.ReadyTimeout)
	v.PositiveDuration("Playback.ReadyPollInterval", p.ReadyPollInterval)
	v.NonNegativeDuration("Playback.SurfaceRetryDelay", p.SurfaceRetryDelay)
	v.NonNegativeDuration("Playback.MetadataInterval", p.MetadataInterval)

	v.Range("Notify.Attempts", cfg.Notify.Attempts, 1, 20)
	v.PositiveDuration("Notify.InitialInterval", cfg.Notify.InitialInterval)
	if cfg.Notify.Multiplier < 1 {
		v.AddError("Notify.Multiplier", "must be >= 1", cfg.Notify.Multiplier)
	}

	s := cfg.Surface
	v.NotEmpty("Surface.ExactPattern", s.ExactPattern)
	v.NotEmpty("Surface.FallbackPattern", s.FallbackPattern)
	v.PositiveDuration("Surface.CommandTimeout", s.CommandTimeout)
	v.PositiveDuration("Surface.CreateTimeout", s.CreateTimeout)
	v.NonNegativeDuration("Surface.ReattachGrace", s.ReattachGrace)
	v.PositiveDuration("Surface.EndThreshold", s.EndThreshold)
	v.Positive("Surface.BreakerFailures", s.BreakerFailures)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("Telemetry.SamplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	for i, origin := range cfg.API.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http") {
			v.AddError("API.AllowedOrigins", "origin must be * or an http(s) URL", cfg.API.AllowedOrigins[i])
		}
	}

	for _, cidr := range cfg.API.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			v.AddError("API.TrustedProxies", "must be a CIDR", cidr)
		}
	}

	return v.Err()
}
