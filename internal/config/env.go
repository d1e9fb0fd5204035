// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/chatdj/internal/log"
)

// fromEnv returns the parsed value of key, or def when the variable is unset,
// empty or does not parse. Unparseable values are logged at warn level.
func fromEnv[T any](key string, def T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("env not set")
		return def
	}
	v, err := parse(raw)
	if err != nil {
		logger.Warn().Err(err).
			Str("key", key).
			Str("event", "config.env_invalid").
			Msg("ignoring invalid environment value")
		return def
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitiveKey(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", raw)
	}
	ev.Msg("env override")
	return v
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// ParseString returns the value of key, or def when unset or empty.
func ParseString(key, def string) string {
	return fromEnv(key, def, func(s string) (string, error) { return s, nil })
}

// ParseInt returns key as a base-10 int.
func ParseInt(key string, def int) int { return fromEnv(key, def, strconv.Atoi) }

// ParseDuration returns key in time.ParseDuration format ("1500ms").
func ParseDuration(key string, def time.Duration) time.Duration {
	return fromEnv(key, def, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0, yes/no and on/off in any case.
func ParseBool(key string, def bool) bool { return fromEnv(key, def, parseBool) }

// ParseFloat returns key as a float64.
func ParseFloat(key string, def float64) float64 {
	return fromEnv(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// The env* helpers record every key the loader consults.

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return os.LookupEnv(key)
}
