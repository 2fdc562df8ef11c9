package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/dbx"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
	"github.com/dmitrijs2005/gradekeeper/internal/server/models"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/gradekeeper/internal/server/repositories/repomanager"
)

func upsert(id string, version int64, client string) common.Change {
	return common.Change{ID: id, Type: common.ChangeUpsert, Doc: json.RawMessage(`{"v":` + jsonInt(version) + `}`), Version: version, ClientID: client}
}

func del(id string, version int64, client string) common.Change {
	return common.Change{ID: id, Type: common.ChangeDelete, Version: version, ClientID: client}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newMemoryService(limit int) *SyncService {
	return NewSyncService(nil, repomanager.NewMemoryRepositoryManager(), logging.NewNopLogger(), limit)
}

func statuses(rs []common.PushResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID+"="+r.Status)
	}
	return out
}

func TestPush_LastWriteWinsByVersion(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		seed  []common.Change
		batch []common.Change
		want  []string
	}{
		{
			name:  "new ids are accepted",
			batch: []common.Change{upsert("a", 1, "c1"), upsert("b", 1, "c2")},
			want:  []string{"a=ok", "b=ok"},
		},
		{
			name:  "higher version wins",
			seed:  []common.Change{upsert("a", 1, "c1")},
			batch: []common.Change{upsert("a", 2, "c2")},
			want:  []string{"a=ok"},
		},
		{
			name:  "lower version conflicts",
			seed:  []common.Change{upsert("a", 3, "c1")},
			batch: []common.Change{upsert("a", 2, "c2")},
			want:  []string{"a=conflict"},
		},
		{
			name:  "same version from another client conflicts",
			seed:  []common.Change{upsert("a", 2, "c1")},
			batch: []common.Change{upsert("a", 2, "c2")},
			want:  []string{"a=conflict"},
		},
		{
			name:  "replay from the same client is acknowledged",
			seed:  []common.Change{upsert("a", 2, "c1")},
			batch: []common.Change{upsert("a", 2, "c1")},
			want:  []string{"a=ok"},
		},
		{
			name:  "same id twice in one batch",
			batch: []common.Change{upsert("a", 1, "c1"), upsert("a", 2, "c1"), upsert("a", 1, "c1")},
			want:  []string{"a=ok", "a=ok", "a=conflict"},
		},
		{
			name: "invalid changes do not stop the batch",
			batch: []common.Change{
				{ID: "x", Type: common.ChangeUpsert, Doc: json.RawMessage(`[1]`), Version: 1},
				{ID: "", Type: common.ChangeDelete, Version: 1},
				{ID: "y", Type: "rename", Version: 1},
				del("z", 1, "c1"),
			},
			want: []string{"x=invalid", "=invalid", "y=invalid", "z=ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemoryService(0)
			if len(tt.seed) > 0 {
				_, err := s.Push(ctx, tt.seed)
				require.NoError(t, err)
			}
			got, err := s.Push(ctx, tt.batch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, statuses(got))
		})
	}
}

func TestPull_ReturnsItemsAfterCheckpoint(t *testing.T) {
	ctx := context.Background()
	s := newMemoryService(0)

	_, err := s.Push(ctx, []common.Change{upsert("a", 1, "c1"), upsert("b", 1, "c1"), del("a", 2, "c2")})
	require.NoError(t, err)

	all, err := s.Pull(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, "a", all[1].ID, "overwritten item moves to the end")
	assert.True(t, all[1].Deleted)
	assert.Empty(t, all[1].Doc)
	assert.Equal(t, "c2", all[1].ClientID)

	none, err := s.Pull(ctx, all[1].UpdatedAt)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPull_MonotonicAndLimited(t *testing.T) {
	ctx := context.Background()
	s := newMemoryService(2)

	_, err := s.Push(ctx, []common.Change{upsert("a", 1, "c"), upsert("b", 1, "c"), upsert("c", 1, "c")})
	require.NoError(t, err)

	first, err := s.Pull(ctx, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Less(t, first[0].UpdatedAt, first[1].UpdatedAt)

	rest, err := s.Pull(ctx, first[1].UpdatedAt)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)

	_, err = s.Push(ctx, []common.Change{del("a", 2, "c")})
	require.NoError(t, err)
	latest, err := s.Pull(ctx, rest[0].UpdatedAt)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.True(t, latest[0].Deleted)
	assert.Greater(t, latest[0].UpdatedAt, rest[0].UpdatedAt)
}

func TestPing_Memory(t *testing.T) {
	require.NoError(t, newMemoryService(0).Ping(context.Background()))
}

// -------- transactional path --------

type fakeItemsRepo struct {
	items.Repository
	getErr    error
	upsertErr error
	upserted  []*models.Item
}

func (f *fakeItemsRepo) Get(context.Context, string) (*models.Item, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return nil, common.ErrorNotFound
}

func (f *fakeItemsRepo) Upsert(_ context.Context, it *models.Item) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	it.UpdatedAt = int64(len(f.upserted) + 1)
	f.upserted = append(f.upserted, it)
	return nil
}

func (f *fakeItemsRepo) SelectUpdated(context.Context, int64, int) ([]*models.Item, error) {
	return []*models.Item{{ID: "a", Version: 1, UpdatedAt: 9}}, nil
}

type fakeManager struct {
	repomanager.RepositoryManager
	repo *fakeItemsRepo
	txs  []dbx.DBTX
}

func (m *fakeManager) Items(db dbx.DBTX) items.Repository {
	m.txs = append(m.txs, db)
	return m.repo
}

func TestPush_CommitsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	m := &fakeManager{repo: &fakeItemsRepo{}}
	s := NewSyncService(db, m, logging.NewNopLogger(), 0)

	got, err := s.Push(context.Background(), []common.Change{upsert("a", 1, "c")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a=ok"}, statuses(got))
	require.Len(t, m.txs, 1)
	assert.IsType(t, &sql.Tx{}, m.txs[0], "repository is bound to the transaction")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPush_StorageErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	m := &fakeManager{repo: &fakeItemsRepo{upsertErr: errors.New("disk full")}}
	s := NewSyncService(db, m, logging.NewNopLogger(), 0)

	_, err = s.Push(context.Background(), []common.Change{upsert("a", 1, "c")})
	require.ErrorContains(t, err, "apply a: disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPush_GetErrorFailsBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	m := &fakeManager{repo: &fakeItemsRepo{getErr: errors.New("db down")}}
	s := NewSyncService(db, m, logging.NewNopLogger(), 0)

	_, err = s.Push(context.Background(), []common.Change{upsert("a", 1, "c")})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPush_RepositoryConflictMapsToStatus(t *testing.T) {
	m := &fakeManager{repo: &fakeItemsRepo{upsertErr: common.ErrVersionConflict}}
	s := NewSyncService(nil, m, logging.NewNopLogger(), 0)

	got, err := s.Push(context.Background(), []common.Change{upsert("a", 1, "c")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a=conflict"}, statuses(got))
}

func TestPull_Transactional(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectPing()

	s := NewSyncService(db, &fakeManager{repo: &fakeItemsRepo{}}, logging.NewNopLogger(), 10)
	got, err := s.Pull(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []common.RemoteItem{{ID: "a", Version: 1, UpdatedAt: 9}}, got)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
