package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gradekeeper/internal/dbx"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/items"
)

// MemoryRepositoryManager hands out the same in-memory repositories whatever
// DBTX it is given.
type MemoryRepositoryManager struct {
	items *items.MemoryRepository
}

func NewMemoryRepositoryManager() RepositoryManager {
	return &MemoryRepositoryManager{items: items.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Items(dbx.DBTX) items.Repository {
	return m.items
}
