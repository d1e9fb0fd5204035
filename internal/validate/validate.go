// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate collects field errors so a whole configuration, or a
// single request, can be rejected with every problem listed at once.
package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// LogLevels are the accepted values for a log level setting.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Error is one failed field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError is returned by Validator.Err.
type ValidationError struct {
	errs []Error
}

// Errors returns the individual field failures.
func (e ValidationError) Errors() []Error { return e.errs }

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, fe := range e.errs {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator accumulates field errors. The zero value is ready to use.
type Validator struct {
	errs []Error
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errs = append(v.errs, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) failf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

// IsValid reports whether nothing has failed so far.
func (v *Validator) IsValid() bool { return len(v.errs) == 0 }

// Errors returns the failures recorded so far.
func (v *Validator) Errors() []Error { return v.errs }

// Err returns a ValidationError, or nil when valid.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errs: slices.Clone(v.errs)}
}

// AsValidationError unwraps err into its field failures.
func AsValidationError(err error) ([]Error, bool) {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.errs, true
	}
	return nil, false
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "must not be empty", value)
	}
}

// OneOf rejects values outside allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.failf(field, value, "must be one of %s, got %q", strings.Join(allowed, "|"), value)
	}
}

// Range checks minVal <= value <= maxVal.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.failf(field, value, "must be between %d and %d, got %d", minVal, maxVal, value)
	}
}

// Positive checks value > 0.
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.failf(field, value, "must be positive, got %d", value)
	}
}

// NonNegative checks value >= 0.
func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.failf(field, value, "must not be negative, got %d", value)
	}
}

// PositiveDuration checks d > 0.
func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.failf(field, d, "must be a positive duration, got %s", d)
	}
}

// NonNegativeDuration checks d >= 0.
func (v *Validator) NonNegativeDuration(field string, d time.Duration) {
	if d < 0 {
		v.failf(field, d, "must not be negative, got %s", d)
	}
}

// HTTPURL requires an absolute http or https URL with a host.
func (v *Validator) HTTPURL(field, value string) {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.AddError(field, "must be an absolute http(s) URL", value)
	}
}

// ListenAddr requires host:port with a numeric port. The host may be empty.
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.failf(field, addr, "invalid listen address: %v", err)
		return
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		v.failf(field, addr, "invalid port %q", port)
	}
}

// Directory checks that path is a directory. When mustExist is false a
// missing directory is created.
func (v *Validator) Directory(field, path string, mustExist bool) {
	if path == "" {
		v.AddError(field, "must not be empty", path)
		return
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		v.AddError(field, "must not contain ..", path)
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		v.failf(field, path, "invalid path: %v", err)
		return
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist) && mustExist:
		v.AddError(field, "directory does not exist", path)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(abs, 0o750); err != nil {
			v.failf(field, path, "cannot create directory: %v", err)
		}
	case err != nil:
		v.failf(field, path, "cannot access directory: %v", err)
	case !info.IsDir():
		v.AddError(field, "not a directory", path)
	}
}
