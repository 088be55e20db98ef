// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// LOCAL TIER (SQLITE)
// =============================================================================

// SQLiteTier is the durable local tier. It backs the cross-reload behavior:
// quick-action markers, selections and message logs written here survive a
// process restart.
type SQLiteTier struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS client_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// NewSQLiteTier opens (or creates) the local tier database at path.
func NewSQLiteTier(path string) (*SQLiteTier, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Single writer; WAL keeps readers from blocking behind persistence.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteTier{db: db}, nil
}

// Get returns the stored value and whether the key exists.
func (s *SQLiteTier) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(
		"SELECT value FROM client_state WHERE key = ?", key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state read failed: %w", err)
	}
	return value, true, nil
}

// Put stores a value under a key, replacing any previous value.
func (s *SQLiteTier) Put(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("state write failed: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *SQLiteTier) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM client_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("state delete failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteTier) Close() error {
	return s.db.Close()
}
