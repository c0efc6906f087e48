package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

// SQLite persists options and entity metadata in a SQLite database. Values
// are stored as JSON, so numbers read back as float64 and lists as []any.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and migrates) the database at dsn. Use ":memory:" for a
// throwaway store.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("dsn", dsn))
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s, err := NewSQLite(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an existing handle and creates the tables when missing.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if db == nil {
		return nil, goerr.New("sqlite handle is required")
	}
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS options (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entity_meta (
			entity_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (entity_id, name)
		)`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return goerr.Wrap(err, "failed to migrate sqlite store")
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to get option", goerr.V("key", key))
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to decode option", goerr.V("key", key))
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return goerr.Wrap(err, "failed to encode option", goerr.V("key", key))
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), s.timestamp())
	if err != nil {
		return goerr.Wrap(err, "failed to set option", goerr.V("key", key))
	}
	return nil
}

func (s *SQLite) GetMeta(ctx context.Context, entityID, key string) (any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM entity_meta WHERE entity_id = ? AND name = ?`, entityID, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to get entity meta",
			goerr.V("entity_id", entityID), goerr.V("key", key))
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to decode entity meta",
			goerr.V("entity_id", entityID), goerr.V("key", key))
	}
	return value, true, nil
}

func (s *SQLite) SetMeta(ctx context.Context, entityID, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return goerr.Wrap(err, "failed to encode entity meta",
			goerr.V("entity_id", entityID), goerr.V("key", key))
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entity_meta (entity_id, name, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		entityID, key, string(raw), s.timestamp())
	if err != nil {
		return goerr.Wrap(err, "failed to set entity meta",
			goerr.V("entity_id", entityID), goerr.V("key", key))
	}
	return nil
}

func (s *SQLite) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func decodeValue(raw string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	return value, nil
}
