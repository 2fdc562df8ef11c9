package fastblobs

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE fast_blobs (id TEXT PRIMARY KEY, payload TEXT NOT NULL);`)
	require.NoError(t, err)
	return db
}

func TestPutGetDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	_, ok, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Put(ctx, "a", "aGVsbG8="))
	p, ok, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "aGVsbG8=", p)

	require.NoError(t, r.Put(ctx, "a", "d29ybGQ="))
	p, _, _ = r.Get(ctx, "a")
	assert.Equal(t, "d29ybGQ=", p)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))
	_, ok, _ = r.Get(ctx, "a")
	assert.False(t, ok)
}

func TestTotalBytes(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	n, err := r.TotalBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, r.Put(ctx, "a", "1234"))
	require.NoError(t, r.Put(ctx, "b", "123456"))

	n, err = r.TotalBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestPut_DBErrorWrapped(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fast_blobs")).
		WithArgs("id1", "cGF5").
		WillReturnError(errors.New("database or disk is full"))

	r := NewSQLiteRepository(db)
	err = r.Put(context.Background(), "id1", "cGF5")
	require.ErrorContains(t, err, "failed to put fast blob id1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTotalBytes_DBErrorWrapped(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(LENGTH(payload)), 0) FROM fast_blobs")).
		WillReturnError(errors.New("boom"))

	_, err = NewSQLiteRepository(db).TotalBytes(context.Background())
	require.ErrorContains(t, err, "failed to sum fast blobs")
}
