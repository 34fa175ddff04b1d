package postgres_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contaportal/internal/domain"
	"contaportal/internal/repository/postgres"
)

// Requires a database migrated with db/migrations.
func TestCollectionStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("PORTAL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PORTAL_TEST_DATABASE_URL not set")
	}

	db, err := postgres.Connect(dsn, 2, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := t.Context()
	_, err = db.ExecContext(ctx, "DELETE FROM collections WHERE name LIKE 'test_%'")
	require.NoError(t, err)

	s := postgres.NewCollectionStore(db)

	_, err = s.Load(ctx, "test_users")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Save(ctx, "test_users", []byte(`[{"id":"a"}]`)))
	require.NoError(t, s.Save(ctx, "test_users", []byte(`[{"id":"b"}]`)))

	data, err := s.Load(ctx, "test_users")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b"}]`, string(data))

	require.NoError(t, s.Save(ctx, "test_session", []byte("null")))
	data, err = s.Load(ctx, "test_session")
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
