// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Compile-time interface check.
var _ settings.Store = (*Store)(nil)

// Store implements settings.Store backed by a single SQLite key/value table.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// settings table. The parent directory is created if missing.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating settings dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	// The passphrase lives here.
	if err := os.Chmod(dbPath, 0o600); err != nil {
		db.Close()
		return nil, fmt.Errorf("restricting settings db permissions: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, cliperr.New(cliperr.CodeSettingsInvalidInput, "key must not be empty")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, "reading setting",
			cliperr.FieldSettingKey(key))
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return cliperr.New(cliperr.CodeSettingsInvalidInput, "key must not be empty")
	}

	const q = `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, "writing setting",
			cliperr.FieldSettingKey(key))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return cliperr.New(cliperr.CodeSettingsInvalidInput, "key must not be empty")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, "deleting setting",
			cliperr.FieldSettingKey(key))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, "deleting setting",
			cliperr.FieldSettingKey(key))
	}
	if n == 0 {
		return cliperr.New(cliperr.CodeSettingsNotFound, "setting not found", cliperr.FieldSettingKey(key))
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM settings ORDER BY key`)
	if err != nil {
		return nil, cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, "listing settings")
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, "scanning setting key")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, cliperr.Wrap(err, cliperr.CodeSettingsStoreFailure, "listing settings")
	}
	return keys, nil
}
