package items

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/server/models"
)

// MemoryRepository keeps items in a map. Its clock starts at zero for every
// instance.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]models.Item
	clock int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]models.Item)}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &it, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.items[item.ID]; ok && cur.Version >= item.Version {
		return common.ErrVersionConflict
	}
	r.clock++
	item.UpdatedAt = r.clock
	stored := *item
	stored.Doc = append([]byte(nil), item.Doc...)
	r.items[item.ID] = stored
	return nil
}

func (r *MemoryRepository) SelectUpdated(_ context.Context, since int64, limit int) ([]*models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Item
	for _, it := range r.items {
		if it.UpdatedAt > since {
			it := it
			out = append(out, &it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt < out[j].UpdatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
