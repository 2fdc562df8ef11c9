// Package services contains the application services the CLI drives. It
// glues the record repository to the sync engine: every local mutation is
// stored first and then queued for the remote.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gradekeeper/internal/client/records"
	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

// Queue is the part of the sync engine the service needs.
type Queue interface {
	QueueUpsert(ctx context.Context, id string, version int64, doc any) error
	QueueDelete(ctx context.Context, id string, version int64) error
}

// RecordService defines the record operations of the CLI.
//
// Save, Update and Delete change local storage and queue the matching
// change; a queueing failure after a successful local write is returned but
// the local write stays.
type RecordService interface {
	Save(ctx context.Context, rec records.Record) (*records.Record, error)
	Get(ctx context.Context, id string) (*records.Record, error)
	List(ctx context.Context) ([]records.Record, error)
	Update(ctx context.Context, id string, patch map[string]any) (*records.Record, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) ([]records.ExportEntry, error)
	Import(ctx context.Context, entries []records.ExportEntry) (records.ImportReport, error)
	CheckIntegrity(ctx context.Context) (records.IntegrityReport, error)
}

type recordService struct {
	repo   *records.Repository
	queue  Queue
	logger logging.Logger
}

func NewRecordService(repo *records.Repository, queue Queue, logger logging.Logger) RecordService {
	return &recordService{repo: repo, queue: queue, logger: logger.With("component", "record-service")}
}

func (s *recordService) Save(ctx context.Context, rec records.Record) (*records.Record, error) {
	saved, err := s.repo.Save(ctx, rec)
	if err != nil {
		return nil, err
	}
	if err := s.queue.QueueUpsert(ctx, saved.ID, saved.Version, saved); err != nil {
		return saved, fmt.Errorf("queue %s: %w", saved.ID, err)
	}
	return saved, nil
}

func (s *recordService) Get(ctx context.Context, id string) (*records.Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *recordService) List(ctx context.Context) ([]records.Record, error) {
	return s.repo.List(ctx)
}

func (s *recordService) Update(ctx context.Context, id string, patch map[string]any) (*records.Record, error) {
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if err := s.queue.QueueUpsert(ctx, updated.ID, updated.Version, updated); err != nil {
		return updated, fmt.Errorf("queue %s: %w", updated.ID, err)
	}
	return updated, nil
}

// Delete removes id locally and queues a delete one version past the last
// one seen. Deleting an unknown id is not an error and queues nothing.
func (s *recordService) Delete(ctx context.Context, id string) error {
	cur, err := s.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, records.ErrCorrupt) {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if cur == nil && err == nil {
		return nil
	}

	var version int64 = 1
	if cur != nil {
		version = cur.Version + 1
	}
	if err := s.queue.QueueDelete(ctx, id, version); err != nil {
		return fmt.Errorf("queue delete %s: %w", id, err)
	}
	return nil
}

func (s *recordService) Export(ctx context.Context) ([]records.ExportEntry, error) {
	return s.repo.Export(ctx)
}

func (s *recordService) Import(ctx context.Context, entries []records.ExportEntry) (records.ImportReport, error) {
	return s.repo.Import(ctx, entries)
}

func (s *recordService) CheckIntegrity(ctx context.Context) (records.IntegrityReport, error) {
	return s.repo.CheckIntegrity(ctx)
}

// RemoteApplier writes pulled remote items into the local repository. It
// never queues anything, so applied items do not bounce back to the server.
type RemoteApplier struct {
	repo   *records.Repository
	logger logging.Logger
}

func NewRemoteApplier(repo *records.Repository, logger logging.Logger) *RemoteApplier {
	return &RemoteApplier{repo: repo, logger: logger.With("component", "applier")}
}

// Apply stores upserts newer than the local copy and removes deleted ids.
// Items that do not decode into a valid record are logged and skipped.
func (a *RemoteApplier) Apply(ctx context.Context, items []common.RemoteItem) error {
	for _, it := range items {
		local, err := a.repo.Get(ctx, it.ID)
		if err != nil && !errors.Is(err, records.ErrCorrupt) {
			return fmt.Errorf("read local %s: %w", it.ID, err)
		}
		if local != nil && local.Version >= it.Version {
			continue
		}

		if it.Deleted {
			if err := a.repo.Delete(ctx, it.ID); err != nil {
				return fmt.Errorf("delete %s: %w", it.ID, err)
			}
			continue
		}

		var rec records.Record
		if err := json.Unmarshal(it.Doc, &rec); err != nil {
			a.logger.Warn(ctx, "remote doc is not a record", "id", it.ID, "error", err)
			continue
		}
		rec.ID = it.ID
		rec.Version = it.Version
		if _, err := a.repo.Store(ctx, rec); err != nil {
			if errors.Is(err, records.ErrInvalidRecord) {
				a.logger.Warn(ctx, "remote record rejected", "id", it.ID, "error", err)
				continue
			}
			return err
		}
	}
	return nil
}
