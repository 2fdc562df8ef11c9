package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/dbx"
	"github.com/dmitrijs2005/gradekeeper/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
// UpdatedAt values come from the sync_clock sequence.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	query := `SELECT id, doc, deleted, version, client_id, updated_at FROM sync_items
		WHERE id = $1
		FOR UPDATE`

	var it models.Item
	var doc []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&it.ID, &doc, &it.Deleted, &it.Version, &it.ClientID, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	it.Doc = doc
	return &it, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO sync_items (id, doc, deleted, version, client_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, nextval('sync_clock'))
		ON CONFLICT (id)
		DO UPDATE SET
			doc = EXCLUDED.doc,
			deleted = EXCLUDED.deleted,
			version = EXCLUDED.version,
			client_id = EXCLUDED.client_id,
			updated_at = EXCLUDED.updated_at
			WHERE sync_items.version < EXCLUDED.version
		RETURNING updated_at`

	var doc any
	if len(item.Doc) > 0 {
		doc = []byte(item.Doc)
	}
	err := r.db.QueryRowContext(ctx, query,
		item.ID, doc, item.Deleted, item.Version, item.ClientID).Scan(&item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SelectUpdated(ctx context.Context, since int64, limit int) ([]*models.Item, error) {
	query := `SELECT id, doc, deleted, version, client_id, updated_at FROM sync_items
		WHERE updated_at > $1
		ORDER BY updated_at`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		var it models.Item
		var doc []byte
		if err := rows.Scan(&it.ID, &doc, &it.Deleted, &it.Version, &it.ClientID, &it.UpdatedAt); err != nil {
			return nil, err
		}
		it.Doc = doc
		result = append(result, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
