// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Deps are the listeners the Manager serves.
type Deps struct {
	Logger zerolog.Logger

	APIAddr    string
	APIHandler http.Handler

	// The metrics listener is skipped unless both are set.
	MetricsAddr    string
	MetricsHandler http.Handler
}

func (d Deps) metricsEnabled() bool {
	return d.MetricsAddr != "" && d.MetricsHandler != nil
}

// Validate reports the first missing dependency.
func (d Deps) Validate() error {
	switch {
	case d.Logger.GetLevel() == zerolog.Disabled:
		return ErrMissingLogger
	case d.APIHandler == nil:
		return ErrMissingAPIHandler
	}
	return nil
}
