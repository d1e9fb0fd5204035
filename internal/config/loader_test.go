// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv("CHATDJ_DATA_DIR", t.TempDir())

	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)

	assert.Equal(t, "v-test", cfg.Version)
	assert.Equal(t, 720, cfg.Playback.MaxDurationSeconds)
	assert.Equal(t, 3, cfg.Playback.SurfaceAttempts)
	assert.Equal(t, 3, cfg.Playback.MetadataAttempts)
	assert.Equal(t, 5, cfg.Notify.Attempts)
	assert.Equal(t, time.Second, cfg.Notify.InitialInterval)
	assert.InDelta(t, 1.5, cfg.Notify.Multiplier, 1e-9)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(cfg.DataDir, "state"), cfg.Store.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
dataDir: `+dir+`
logLevel: debug
store:
  backend: sqlite
playback:
  maxDurationSeconds: 600
  surfaceRetryDelay: 500ms
notify:
  attempts: 2
`)

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 600, cfg.Playback.MaxDurationSeconds)
	assert.Equal(t, 500*time.Millisecond, cfg.Playback.SurfaceRetryDelay)
	// untouched nested fields keep their defaults
	assert.Equal(t, 3, cfg.Playback.MetadataAttempts)
	assert.Equal(t, 2, cfg.Notify.Attempts)
	assert.Equal(t, filepath.Join(dir, "chatdj.sqlite"), cfg.Store.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dataDir: "+dir+"\nplayback:\n  maxDurationSeconds: 600\n")
	t.Setenv("CHATDJ_MAX_DURATION_SECONDS", "900")
	t.Setenv("CHATDJ_STORE_BACKEND", "memory")

	l := NewLoader(path, "test")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 900, cfg.Playback.MaxDurationSeconds)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Contains(t, l.ConsumedEnvKeys, "CHATDJ_MAX_DURATION_SECONDS")
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dataDir: "+dir+"\nplayback:\n  maxDuration: 10\n")

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dataDir: "+dir+"\n---\nlogLevel: info\n")

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
}

func TestLoad_RejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Backend = "memory"
	cfg.LogLevel = "loud"
	cfg.Playback.SurfaceAttempts = 0
	cfg.Notify.Multiplier = 0.5

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogLevel")
	assert.Contains(t, err.Error(), "Playback.SurfaceAttempts")
	assert.Contains(t, err.Error(), "Notify.Multiplier")
}

func TestServerConfig_Normalized(t *testing.T) {
	s := ServerConfig{ShutdownTimeout: time.Second, WriteTimeout: -1}.Normalized()
	assert.Equal(t, minShutdownTimeout, s.ShutdownTimeout)
	assert.Equal(t, time.Duration(0), s.WriteTimeout)
	assert.Equal(t, defaultReadTimeout, s.ReadTimeout)
	assert.Equal(t, defaultMaxHeaderBytes, s.MaxHeaderBytes)
}
