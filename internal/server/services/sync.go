// Package services holds the server's sync logic: last-write-wins by
// version on push and checkpointed reads on pull.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/dbx"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
	"github.com/dmitrijs2005/gradekeeper/internal/server/models"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/repomanager"
)

// SyncService applies pushed changes and serves pulls. Pushes are
// serialized so updatedAt values become visible in the order they were
// assigned.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	pullLimit   int

	pushMu sync.Mutex
}

// NewSyncService builds a service. A nil db runs without transactions, which
// is what the in-memory repository manager expects.
func NewSyncService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, pullLimit int) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: rm,
		logger:      logger.With("module", "sync_service"),
		pullLimit:   pullLimit,
	}
}

func (s *SyncService) inTx(ctx context.Context, fn func(ctx context.Context, repo items.Repository) error) error {
	if s.db == nil {
		return fn(ctx, s.repomanager.Items(nil))
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.repomanager.Items(tx))
	})
}

// Push applies changes in order and reports one result per change. A change
// is accepted when its id is new or its version is higher than the stored
// one. Re-sending the stored version from the same client is acknowledged
// without a write so that retries after a lost response drain the queue.
// Storage errors fail the whole batch.
func (s *SyncService) Push(ctx context.Context, changes []common.Change) ([]common.PushResult, error) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	results := make([]common.PushResult, 0, len(changes))
	var maxClock int64

	err := s.inTx(ctx, func(ctx context.Context, repo items.Repository) error {
		results = results[:0]
		for _, c := range changes {
			status, clock, err := s.apply(ctx, repo, c)
			if err != nil {
				return fmt.Errorf("apply %s: %w", c.ID, err)
			}
			maxClock = max(maxClock, clock)
			results = append(results, common.PushResult{ID: c.ID, Status: status})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		pushItemsTotal.WithLabelValues(r.Status).Inc()
	}
	if maxClock > 0 {
		serverClock.Set(float64(maxClock))
	}
	s.logger.Debug(ctx, "push applied", "changes", len(changes))
	return results, nil
}

func (s *SyncService) apply(ctx context.Context, repo items.Repository, c common.Change) (string, int64, error) {
	if err := c.Validate(); err != nil {
		s.logger.Warn(ctx, "invalid change", "id", c.ID, "error", err)
		return common.StatusInvalid, 0, nil
	}

	cur, err := repo.Get(ctx, c.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		cur = nil
	case err != nil:
		return "", 0, err
	}

	if cur != nil && c.Version <= cur.Version {
		if c.Version == cur.Version && c.ClientID != "" && c.ClientID == cur.ClientID {
			return common.StatusOK, 0, nil
		}
		return common.StatusConflict, 0, nil
	}

	it := models.FromChange(c)
	if err := repo.Upsert(ctx, it); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return common.StatusConflict, 0, nil
		}
		return "", 0, err
	}
	return common.StatusOK, it.UpdatedAt, nil
}

// Pull returns items written after since, oldest first, capped by the
// configured pull limit.
func (s *SyncService) Pull(ctx context.Context, since int64) ([]common.RemoteItem, error) {
	var out []common.RemoteItem
	err := s.inTx(ctx, func(ctx context.Context, repo items.Repository) error {
		list, err := repo.SelectUpdated(ctx, since, s.pullLimit)
		if err != nil {
			return err
		}
		out = make([]common.RemoteItem, 0, len(list))
		for _, it := range list {
			out = append(out, it.Remote())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	pullItemsTotal.Add(float64(len(out)))
	return out, nil
}

// Ping reports whether storage is reachable.
func (s *SyncService) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}
