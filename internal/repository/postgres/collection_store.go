package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"contaportal/internal/domain"
	"contaportal/internal/port"
)

type collectionStore struct {
	db *sqlx.DB
}

// NewCollectionStore creates a PostgreSQL-backed CollectionStore. The
// collections table comes from db/migrations.
func NewCollectionStore(db *sqlx.DB) port.CollectionStore {
	return &collectionStore{db: db}
}

func (r *collectionStore) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.db.GetContext(ctx, &data, "SELECT data FROM collections WHERE name = $1", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("collectionStore.Load %s: %w", name, err)
	}
	return data, nil
}

func (r *collectionStore) Save(ctx context.Context, name string, data []byte) error {
	query := `INSERT INTO collections (name, data, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, name, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("collectionStore.Save %s: %w", name, err)
	}
	return nil
}
