// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"time"

	"github.com/ManuGH/chatdj/internal/config"
)

// Policy holds the tunables of the controller. It is swapped atomically on
// config reload; a running advance keeps the policy it started with.
type Policy struct {
	MaxDurationSeconds int
	DestinationClass   string

	SurfaceAttempts   int
	SurfaceRetryDelay time.Duration
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration

	MetadataAttempts int
	MetadataInterval time.Duration

	// RestoreCheckDelay is how long a handle restored from the snapshot may
	// stay unclaimed before it is treated as closed.
	RestoreCheckDelay time.Duration
}

// PolicyFromConfig maps the playback config section. A restored surface gets
// the same grace to re-attach as a dropped one.
func PolicyFromConfig(cfg config.AppConfig) Policy {
	pb := cfg.Playback
	return Policy{
		MaxDurationSeconds: pb.MaxDurationSeconds,
		DestinationClass:   pb.DestinationClass,
		SurfaceAttempts:    pb.SurfaceAttempts,
		SurfaceRetryDelay:  pb.SurfaceRetryDelay,
		ReadyTimeout:       pb.ReadyTimeout,
		ReadyPollInterval:  pb.ReadyPollInterval,
		MetadataAttempts:   pb.MetadataAttempts,
		MetadataInterval:   pb.MetadataInterval,
		RestoreCheckDelay:  cfg.Surface.ReattachGrace,
	}
}

// DefaultPolicy is PolicyFromConfig over the built-in defaults.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Defaults())
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxDurationSeconds <= 0 {
		p.MaxDurationSeconds = d.MaxDurationSeconds
	}
	if p.SurfaceAttempts <= 0 {
		p.SurfaceAttempts = 1
	}
	if p.MetadataAttempts <= 0 {
		p.MetadataAttempts = 1
	}
	if p.ReadyTimeout <= 0 {
		p.ReadyTimeout = d.ReadyTimeout
	}
	if p.ReadyPollInterval <= 0 {
		p.ReadyPollInterval = d.ReadyPollInterval
	}
	if p.SurfaceRetryDelay < 0 {
		p.SurfaceRetryDelay = 0
	}
	if p.MetadataInterval < 0 {
		p.MetadataInterval = 0
	}
	if p.RestoreCheckDelay < 0 {
		p.RestoreCheckDelay = 0
	}
	return p
}
