package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore persists the key-value state in a local sqlite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens (and if needed creates) the store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A single writer keeps multi-key sets trivially atomic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Get returns the values for the requested keys; absent keys are omitted.
func (s *SQLiteStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	result := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT key, value FROM kv WHERE key IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var rows []kvRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get keys: %w", err)
	}
	for _, row := range rows {
		result[row.Key] = json.RawMessage(row.Value)
	}
	return result, nil
}

// Set writes all entries in one transaction.
func (s *SQLiteStore) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, string(value))
		if err != nil {
			return fmt.Errorf("set key %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set: %w", err)
	}
	return nil
}

// Clear wipes the whole store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}
