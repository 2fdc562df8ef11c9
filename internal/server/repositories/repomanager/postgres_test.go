package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gradekeeper/internal/server/migrations"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/items"
)

func stubMigrate(t *testing.T, fn func(context.Context, *sql.DB) (int, error)) {
	t.Helper()
	orig := migrateUp
	migrateUp = fn
	t.Cleanup(func() { migrateUp = orig })
}

func TestPostgresManager_Items(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepositoryManager().Items(db)
	assert.IsType(t, &items.PostgresRepository{}, repo)
}

func TestPostgresManager_RunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tests := []struct {
		name    string
		result  error
		wantErr bool
	}{
		{"applied", nil, false},
		{"failure is wrapped", errors.New("relation exists"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *sql.DB
			stubMigrate(t, func(_ context.Context, d *sql.DB) (int, error) {
				got = d
				return 1, tt.result
			})

			err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
			assert.Same(t, db, got)
			if tt.wantErr {
				require.ErrorIs(t, err, tt.result)
				assert.ErrorContains(t, err, "migrate:")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMemoryManager_SharesRepository(t *testing.T) {
	m := NewMemoryRepositoryManager()
	require.NoError(t, m.RunMigrations(context.Background(), nil))
	assert.Same(t, m.Items(nil), m.Items(nil))
}

func TestOpenPostgres_BadDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "postgres://%zz")
	assert.ErrorContains(t, err, "parse dsn")
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, names, "00001_sync_items.sql")
}
