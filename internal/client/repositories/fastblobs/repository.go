// Package fastblobs persists fast-tier payloads: one row per blob id holding
// the base64 text of the stored bytes.
package fastblobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gradekeeper/internal/dbx"
)

// Repository is the payload table behind the fast storage tier.
type Repository interface {
	// Put inserts or replaces the payload for id.
	Put(ctx context.Context, id string, payload string) error
	// Get returns the payload and whether it exists.
	Get(ctx context.Context, id string) (string, bool, error)
	// Delete removes id; missing ids are not an error.
	Delete(ctx context.Context, id string) error
	// TotalBytes is the summed length of all stored payloads.
	TotalBytes(ctx context.Context) (int64, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, id string, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fast_blobs (id, payload) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, id, payload)
	if err != nil {
		return fmt.Errorf("failed to put fast blob %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (string, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM fast_blobs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get fast blob %s: %w", id, err)
	}
	return payload, true, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fast_blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete fast blob %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(LENGTH(payload)), 0) FROM fast_blobs`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum fast blobs: %w", err)
	}
	return total, nil
}
