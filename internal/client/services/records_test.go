package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gradekeeper/internal/badgerx"
	"github.com/dmitrijs2005/gradekeeper/internal/client/blobstore"
	"github.com/dmitrijs2005/gradekeeper/internal/client/kv"
	"github.com/dmitrijs2005/gradekeeper/internal/client/records"
	"github.com/dmitrijs2005/gradekeeper/internal/client/repositories/fastblobs"
	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

func setupRepo(t *testing.T) *records.Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE fast_blobs (id TEXT PRIMARY KEY, payload TEXT NOT NULL);`)
	require.NoError(t, err)

	bdb, err := badgerx.Open(badgerx.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })

	logger := logging.NewNopLogger()
	blobs, err := blobstore.NewTwoTier(logger, kv.NewMemoryStore(logger), fastblobs.NewSQLiteRepository(db), bdb, 0)
	require.NoError(t, err)
	return records.NewRepository(blobs, records.Options{}, logger)
}

// ---- fake queue ----

type queued struct {
	id      string
	version int64
	deleted bool
	doc     any
}

type fakeQueue struct {
	items []queued
	err   error
}

func (q *fakeQueue) QueueUpsert(_ context.Context, id string, version int64, doc any) error {
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, queued{id: id, version: version, doc: doc})
	return nil
}

func (q *fakeQueue) QueueDelete(_ context.Context, id string, version int64) error {
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, queued{id: id, version: version, deleted: true})
	return nil
}

func sample() records.Record {
	return records.Record{
		Subject:        "Mathematics",
		AssessmentType: "CAT1",
		Timestamp:      1700000000000,
		Results:        []records.Result{{StudentID: "S001", CAT1: 8, Exam: 88}},
	}
}

func TestRecordService_QueuesMutations(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{}
	svc := NewRecordService(setupRepo(t), q, logging.NewNopLogger())

	saved, err := svc.Save(ctx, sample())
	require.NoError(t, err)

	_, err = svc.Update(ctx, saved.ID, map[string]any{"subject": "Maths"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, saved.ID))
	require.NoError(t, svc.Delete(ctx, "unknown"))

	require.Len(t, q.items, 3)
	assert.Equal(t, queued{id: saved.ID, version: 1, doc: saved}, q.items[0])
	assert.Equal(t, int64(2), q.items[1].version)
	assert.False(t, q.items[1].deleted)
	assert.Equal(t, queued{id: saved.ID, version: 3, deleted: true}, q.items[2])

	got, err := svc.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordService_QueueFailureKeepsLocalWrite(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{err: errors.New("queue broken")}
	svc := NewRecordService(setupRepo(t), q, logging.NewNopLogger())

	saved, err := svc.Save(ctx, sample())
	require.Error(t, err)
	require.NotNil(t, saved)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordService_InvalidNotQueued(t *testing.T) {
	q := &fakeQueue{}
	svc := NewRecordService(setupRepo(t), q, logging.NewNopLogger())

	_, err := svc.Save(context.Background(), records.Record{Subject: "x"})
	require.ErrorIs(t, err, records.ErrInvalidRecord)
	assert.Empty(t, q.items)
}

func remoteDoc(t *testing.T, r records.Record) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return b
}

func TestRemoteApplier(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	a := NewRemoteApplier(repo, logging.NewNopLogger())

	older := sample()
	older.Results[0].Exam = 50
	newer := sample()
	newer.Results[0].Exam = 95

	err := a.Apply(ctx, []common.RemoteItem{
		{ID: "r1", Version: 2, Doc: remoteDoc(t, newer), UpdatedAt: 10},
		{ID: "r1", Version: 1, Doc: remoteDoc(t, older), UpdatedAt: 11},
		{ID: "bad", Version: 1, Doc: json.RawMessage(`{"subject":""}`), UpdatedAt: 12},
		{ID: "junk", Version: 1, Doc: json.RawMessage(`[1,2]`), UpdatedAt: 13},
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 95.0, got.Results[0].Exam, "stale version ignored")
	assert.Equal(t, int64(2), got.Version)

	bad, err := repo.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, bad)

	require.NoError(t, a.Apply(ctx, []common.RemoteItem{{ID: "r1", Version: 3, Deleted: true, UpdatedAt: 20}}))
	got, err = repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
