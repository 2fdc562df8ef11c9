package blobstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gradekeeper/internal/client/kv"
	"github.com/dmitrijs2005/gradekeeper/internal/client/repositories/fastblobs"
)

// DefaultFastQuota is the fast tier byte ceiling.
const DefaultFastQuota int64 = 5 * 1024 * 1024

// IndexKey is the key/value document mapping id to Meta for the fast tier.
const IndexKey = "blob:index"

// FastTier keeps base64 payloads in the fast_blobs table and their metadata
// in a single index document. Usage counts encoded payload bytes.
type FastTier struct {
	mu    sync.Mutex
	repo  fastblobs.Repository
	kv    *kv.Store
	quota int64
}

func NewFastTier(repo fastblobs.Repository, store *kv.Store, quota int64) *FastTier {
	if quota <= 0 {
		quota = DefaultFastQuota
	}
	return &FastTier{repo: repo, kv: store, quota: quota}
}

func (t *FastTier) Name() string { return "fast" }

// index loads the index document. A missing document is an empty index; an
// unreadable one is an error so that nothing gets written over it.
func (t *FastTier) index(ctx context.Context) (map[string]Meta, error) {
	idx, p := kv.Lookup[map[string]Meta](ctx, t.kv, kv.ScopeDurable, IndexKey)
	switch {
	case p == kv.Failed:
		return nil, ErrIndexRead
	case idx == nil:
		return make(map[string]Meta), nil
	}
	return idx, nil
}

func (t *FastTier) Put(ctx context.Context, rec *Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, err := t.index(ctx)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(rec.Data)

	used, err := t.repo.TotalBytes(ctx)
	if err != nil {
		return err
	}
	if used+int64(len(encoded)) >= t.quota {
		return fmt.Errorf("%w: %d + %d >= %d", ErrQuotaExceeded, used, len(encoded), t.quota)
	}

	if err := t.repo.Put(ctx, rec.Meta.ID, encoded); err != nil {
		return err
	}

	idx[rec.Meta.ID] = rec.Meta
	if !t.kv.Set(ctx, kv.ScopeDurable, IndexKey, idx) {
		_ = t.repo.Delete(ctx, rec.Meta.ID)
		return ErrIndexWrite
	}
	return nil
}

func (t *FastTier) Get(ctx context.Context, id string) (*Record, error) {
	t.mu.Lock()
	idx, err := t.index(ctx)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	meta, ok := idx[id]
	if !ok {
		return nil, nil
	}

	encoded, found, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode fast payload %s: %w", id, err)
	}
	return &Record{Meta: meta, Data: data}, nil
}

// Delete leaves the payload row in place when the index cannot be read, so
// the two never disagree about what the tier holds.
func (t *FastTier) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, err := t.index(ctx)
	if err != nil {
		return err
	}
	if err := t.repo.Delete(ctx, id); err != nil {
		return err
	}
	if _, ok := idx[id]; !ok {
		return nil
	}
	delete(idx, id)
	if !t.kv.Set(ctx, kv.ScopeDurable, IndexKey, idx) {
		return ErrIndexWrite
	}
	return nil
}

func (t *FastTier) List(ctx context.Context, f Filter) ([]Meta, error) {
	t.mu.Lock()
	idx, err := t.index(ctx)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Meta, 0, len(idx))
	for _, m := range idx {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *FastTier) Usage(ctx context.Context) (TierUsage, error) {
	used, err := t.repo.TotalBytes(ctx)
	if err != nil {
		return TierUsage{}, err
	}
	t.mu.Lock()
	idx, err := t.index(ctx)
	t.mu.Unlock()
	if err != nil {
		return TierUsage{}, err
	}
	return TierUsage{Name: t.Name(), Used: used, Quota: t.quota, Items: len(idx)}, nil
}
