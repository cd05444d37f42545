// Package store persists UI fields between sessions in a small sqlite
// key/value table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Keys of the persisted UI fields.
const (
	KeyLabel    = "label"
	KeyInstance = "instance"
	KeyUsername = "username"
)

// DefaultLabel is shown until the user edits the label.
const DefaultLabel = "Hello World!"

const schema = `CREATE TABLE IF NOT EXISTS app_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Fields are the UI values restored at startup and saved at exit.
type Fields struct {
	Label    string
	Instance string
	Username string
}

// Store is a key/value table in a sqlite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// LoadFields reads the UI fields, falling back to defaults for missing keys.
func (s *Store) LoadFields(ctx context.Context) (Fields, error) {
	f := Fields{Label: DefaultLabel}
	for key, dst := range map[string]*string{
		KeyLabel:    &f.Label,
		KeyInstance: &f.Instance,
		KeyUsername: &f.Username,
	} {
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			return f, err
		}
		if ok {
			*dst = v
		}
	}
	return f, nil
}

// SaveFields writes all UI fields in one transaction.
func (s *Store) SaveFields(ctx context.Context, f Fields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, kv := range [][2]string{
		{KeyLabel, f.Label},
		{KeyInstance, f.Instance},
		{KeyUsername, f.Username},
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO app_state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save %s: %w", kv[0], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
