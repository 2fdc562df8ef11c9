package client

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/gradekeeper/internal/client/migrations"
)

// busyTimeoutMs lets a connection wait for the write lock held by another
// connection of the pool instead of failing with SQLITE_BUSY.
const busyTimeoutMs = 5000

// RunMigrations applies the embedded schema. It returns the number of
// migrations applied by this call.
func RunMigrations(ctx context.Context, db *sql.DB) (int, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return 0, fmt.Errorf("migrations provider: %w", err)
	}
	res, err := p.Up(ctx)
	if err != nil {
		return len(res), fmt.Errorf("migrate local db: %w", err)
	}
	return len(res), nil
}

// InitDatabase opens (creating if needed) the local SQLite file at path and
// brings its schema up to date.
func InitDatabase(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}

	if _, err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMs))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}
