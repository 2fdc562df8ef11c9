package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gradekeeper/internal/dbx"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/items"
)

// RepositoryManager vends repositories bound to a connection or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Items(db dbx.DBTX) items.Repository
}
