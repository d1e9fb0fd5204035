// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sqlite opens SQLite databases with the pragmas every chatdj
// database relies on.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Config tunes the connection pool.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig suits one process doing short transactions.
func DefaultConfig() Config {
	return Config{BusyTimeout: 5 * time.Second, MaxOpenConns: 4}
}

// dsn puts the pragmas in the connection string so every pooled connection
// gets them, not just the first.
func dsn(path string, readOnly bool, pragmas ...string) string {
	q := url.Values{}
	if readOnly {
		q.Set("mode", "ro")
	}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open returns a pool on path in WAL mode with foreign keys on.
func Open(path string, cfg Config) (*sql.DB, error) {
	conns := max(cfg.MaxOpenConns, 1)
	db, err := sql.Open("sqlite", dsn(path, false,
		"journal_mode(WAL)",
		fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()),
		"synchronous(NORMAL)",
		"foreign_keys(ON)",
	))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return db, nil
}

// EnsureSchema applies idempotent DDL atomically.
func EnsureSchema(ctx context.Context, db *sql.DB, ddl ...string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: schema: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range ddl {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: schema: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: schema commit: %w", err)
	}
	return nil
}

// VerifyIntegrity opens path read-only and runs quick_check, or
// integrity_check when mode is "full". It returns nil for a healthy file
// and the reported problems otherwise.
func VerifyIntegrity(path, mode string) ([]string, error) {
	db, err := sql.Open("sqlite", dsn(path, true, "busy_timeout(2000)"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: verify %s: %w", path, err)
	}
	defer db.Close()

	pragma := "PRAGMA quick_check"
	if mode == "full" {
		pragma = "PRAGMA integrity_check"
	}
	rows, err := db.Query(pragma)
	if err != nil {
		return nil, fmt.Errorf("sqlite: verify %s: %w", path, err)
	}
	defer rows.Close()

	var report []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: verify %s: %w", path, err)
		}
		report = append(report, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: verify %s: %w", path, err)
	}

	switch {
	case len(report) == 1 && strings.EqualFold(report[0], "ok"):
		return nil, nil
	case len(report) == 0:
		return []string{"integrity check returned nothing"}, nil
	}
	return report, nil
}
