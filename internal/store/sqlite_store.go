// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/persistence/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS playback_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps snapshot keys in a single table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path. An existing file
// is integrity-checked first; a damaged file is reported but still opened so
// the controller can fall back to defaults and overwrite it.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if _, err := os.Stat(path); err == nil {
		issues, verr := sqlite.VerifyIntegrity(path, "quick")
		if verr != nil || issues != nil {
			logger := xglog.WithComponent("store")
			logger.Warn().
				Err(verr).
				Str(xglog.FieldEvent, "store.integrity_failed").
				Str(xglog.FieldPath, path).
				Str("issues", strings.Join(issues, "; ")).
				Msg("sqlite integrity check failed")
		}
	}

	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.EnsureSchema(context.Background(), db, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM playback_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetMany(ctx context.Context, values map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	now := time.Now().UnixMilli()
	for k, v := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO playback_state (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite set %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }
