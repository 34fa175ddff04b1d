// Package sqlite persists the portal's entity collections in a single SQLite
// file, one row per collection.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"contaportal/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// CollectionStore is a port.CollectionStore backed by SQLite.
type CollectionStore struct {
	db *sqlx.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*CollectionStore, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	// SQLite serializes writers; one connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: applying schema: %w", err)
	}
	return &CollectionStore{db: db}, nil
}

// Close releases the database handle.
func (s *CollectionStore) Close() error {
	return s.db.Close()
}

func (s *CollectionStore) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	query := `SELECT data FROM collections WHERE name = ?`
	if err := s.db.GetContext(ctx, &data, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("sqliteCollectionStore.Load %s: %w", name, err)
	}
	return data, nil
}

func (s *CollectionStore) Save(ctx context.Context, name string, data []byte) error {
	query := `INSERT INTO collections (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, name, data, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("sqliteCollectionStore.Save %s: %w", name, err)
	}
	return nil
}

func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
