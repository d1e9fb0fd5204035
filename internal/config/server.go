// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"
)

// ServerConfig holds HTTP server configuration shared by the API and metrics listeners.
type ServerConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"readTimeout,omitempty"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Zero disables it, which websocket surfaces rely on.
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `yaml:"idleTimeout,omitempty"`

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header's keys and values
	MaxHeaderBytes int `yaml:"maxHeaderBytes,omitempty"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 0
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20 // 1 MB
	defaultShutdownTimeout = 15 * time.Second
	minShutdownTimeout     = 3 * time.Second
)

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		IdleTimeout:     defaultIdleTimeout,
		MaxHeaderBytes:  defaultMaxHeaderBytes,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// Normalized returns a copy with non-positive values replaced by defaults.
func (s ServerConfig) Normalized() ServerConfig {
	def := defaultServerConfig()
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = def.ReadTimeout
	}
	if s.WriteTimeout < 0 {
		s.WriteTimeout = def.WriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = def.IdleTimeout
	}
	if s.MaxHeaderBytes <= 0 {
		s.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if s.ShutdownTimeout < minShutdownTimeout {
		s.ShutdownTimeout = minShutdownTimeout
	}
	return s
}
