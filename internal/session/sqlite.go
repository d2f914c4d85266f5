package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSQLiteTimeout = 5 * time.Second

const createKVTableSQL = `
create table if not exists kv (
    key   text primary key,
    value text not null
);
`

const getItemSQL = `select value from kv where key = ?;`

const upsertItemSQL = `
insert into kv (key, value) values (?, ?)
on conflict (key) do update set value = excluded.value;
`

const deleteItemSQL = `delete from kv where key = ?;`

// SQLiteStorage keeps items in a single-table SQLite database.
// Multi-key writes run in one transaction.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database at path and creates its schema. ctx
// bounds the schema setup.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, errors.New("session: empty storage path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, defaultSQLiteTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, createKVTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: init schema: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: chmod %s: %w", path, err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) GetItem(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSQLiteTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, getItemSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStorage) SetItems(items map[string]string) error {
	return s.inTx(func(ctx context.Context, tx *sql.Tx) error {
		for k, v := range items {
			if _, err := tx.ExecContext(ctx, upsertItemSQL, k, v); err != nil {
				return fmt.Errorf("session: set %q: %w", k, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) RemoveItems(keys ...string) error {
	return s.inTx(func(ctx context.Context, tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, deleteItemSQL, k); err != nil {
				return fmt.Errorf("session: remove %q: %w", k, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) inTx(fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSQLiteTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: begin tx: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: commit: %w", err)
	}
	return nil
}
