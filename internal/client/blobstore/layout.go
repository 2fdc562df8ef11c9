package blobstore

import (
	"github.com/dmitrijs2005/gradekeeper/internal/badgerx"
	"github.com/dmitrijs2005/gradekeeper/internal/client/kv"
	"github.com/dmitrijs2005/gradekeeper/internal/client/repositories/fastblobs"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

// NewTwoTier builds the standard layout: the SQLite fast tier bounded by
// fastQuota, then the BadgerDB overflow tier.
func NewTwoTier(logger logging.Logger, store *kv.Store, fast fastblobs.Repository, overflow *badgerx.DB, fastQuota int64, opts ...Option) (*Store, error) {
	return New(logger, []Backend{
		NewFastTier(fast, store, fastQuota),
		NewOverflowTier(overflow),
	}, opts...)
}
