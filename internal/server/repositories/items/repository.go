// Package items stores synced documents for the server, in PostgreSQL or in
// memory.
package items

import (
	"context"

	"github.com/dmitrijs2005/gradekeeper/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound for unknown ids.
	Get(ctx context.Context, id string) (*models.Item, error)
	// Upsert stores item when it is new or its version is higher than the
	// stored one, assigning item.UpdatedAt. Otherwise it returns
	// common.ErrVersionConflict.
	Upsert(ctx context.Context, item *models.Item) error
	// SelectUpdated returns items with UpdatedAt > since in UpdatedAt order,
	// at most limit of them when limit > 0.
	SelectUpdated(ctx context.Context, since int64, limit int) ([]*models.Item, error)
}
