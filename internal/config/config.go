// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for chatdj.
package config

import (
	"time"
)

// AppConfig is the fully resolved runtime configuration.
// The same struct is the YAML file schema; unknown keys are rejected.
type AppConfig struct {
	Version  string `yaml:"-"`
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	API       APIConfig       `yaml:"api,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Playback  PlaybackConfig  `yaml:"playback,omitempty"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Surface   SurfaceConfig   `yaml:"surface,omitempty"`
	Ingress   IngressConfig   `yaml:"ingress,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// APIConfig configures the command API.
type APIConfig struct {
	ListenAddr     string          `yaml:"listenAddr,omitempty"`
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
	TrustedProxies []string        `yaml:"trustedProxies,omitempty"` // CIDRs allowed to set X-Forwarded-For
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// RateLimitConfig configures the per-IP API limiter.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// StoreConfig selects the persistence backend for the queue snapshot.
type StoreConfig struct {
	Backend string      `yaml:"backend,omitempty"` // memory|badger|sqlite|redis
	Path    string      `yaml:"path,omitempty"`    // badger directory or sqlite file; defaults below DataDir
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// PlaybackConfig holds the controller policy. All fields are hot-reloadable.
type PlaybackConfig struct {
	MaxDurationSeconds int           `yaml:"maxDurationSeconds,omitempty"`
	DestinationClass   string        `yaml:"destinationClass,omitempty"`
	SurfaceAttempts    int           `yaml:"surfaceAttempts,omitempty"`
	SurfaceRetryDelay  time.Duration `yaml:"surfaceRetryDelay,omitempty"`
	ReadyTimeout       time.Duration `yaml:"readyTimeout,omitempty"`
	ReadyPollInterval  time.Duration `yaml:"readyPollInterval,omitempty"`
	MetadataAttempts   int           `yaml:"metadataAttempts,omitempty"`
	MetadataInterval   time.Duration `yaml:"metadataInterval,omitempty"`
}

// NotifyConfig is the retry schedule for playlist view pushes.
type NotifyConfig struct {
	Attempts        int           `yaml:"attempts,omitempty"`
	InitialInterval time.Duration `yaml:"initialInterval,omitempty"`
	Multiplier      float64       `yaml:"multiplier,omitempty"`
}

// SurfaceConfig configures the websocket player surface driver.
type SurfaceConfig struct {
	LaunchCommand   string        `yaml:"launchCommand,omitempty"`
	LaunchArgs      []string      `yaml:"launchArgs,omitempty"`
	ExactPattern    string        `yaml:"exactPattern,omitempty"`
	FallbackPattern string        `yaml:"fallbackPattern,omitempty"`
	CommandTimeout  time.Duration `yaml:"commandTimeout,omitempty"`
	CreateTimeout   time.Duration `yaml:"createTimeout,omitempty"`
	ReattachGrace   time.Duration `yaml:"reattachGrace,omitempty"`
	EndThreshold    time.Duration `yaml:"endThreshold,omitempty"`
	BreakerFailures int           `yaml:"breakerFailures,omitempty"`
	BreakerReset    time.Duration `yaml:"breakerReset,omitempty"`
}

// IngressConfig limits how fast links and surface reports are accepted.
type IngressConfig struct {
	LinksPerSecond   float64 `yaml:"linksPerSecond,omitempty"`
	LinksBurst       int     `yaml:"linksBurst,omitempty"`
	ReportsPerSecond float64 `yaml:"reportsPerSecond,omitempty"`
	ReportsBurst     int     `yaml:"reportsBurst,omitempty"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter,omitempty"` // grpc|http
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  "/var/lib/chatdj",
		LogLevel: "info",
		API: APIConfig{
			ListenAddr: ":8088",
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 600,
			},
		},
		Server: defaultServerConfig(),
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9098",
		},
		Store: StoreConfig{
			Backend: "badger",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "chatdj:",
			},
		},
		Playback: PlaybackConfig{
			MaxDurationSeconds: 720,
			DestinationClass:   "youtube.com",
			SurfaceAttempts:    3,
			SurfaceRetryDelay:  2 * time.Second,
			ReadyTimeout:       15 * time.Second,
			ReadyPollInterval:  250 * time.Millisecond,
			MetadataAttempts:   3,
			MetadataInterval:   3 * time.Second,
		},
		Notify: NotifyConfig{
			Attempts:        5,
			InitialInterval: time.Second,
			Multiplier:      1.5,
		},
		Surface: SurfaceConfig{
			LaunchCommand:   "xdg-open",
			ExactPattern:    "*://www.youtube.com/watch*",
			FallbackPattern: "*://*.youtube.com/*",
			CommandTimeout:  5 * time.Second,
			CreateTimeout:   20 * time.Second,
			ReattachGrace:   5 * time.Second,
			EndThreshold:    500 * time.Millisecond,
			BreakerFailures: 5,
			BreakerReset:    time.Minute,
		},
		Ingress: IngressConfig{
			LinksPerSecond:   20,
			LinksBurst:       50,
			ReportsPerSecond: 10,
			ReportsBurst:     20,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
