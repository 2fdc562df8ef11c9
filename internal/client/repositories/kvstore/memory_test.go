package kvstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CRUD(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	v, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, r.Set(ctx, "a", []byte("1")))
	require.NoError(t, r.Set(ctx, "b", []byte("2")))

	v, err = r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	keys, err := r.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))
	keys, _ = r.Keys(ctx)
	assert.Equal(t, []string{"b"}, keys)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, r.Set(ctx, "k", in))
	in[0] = 'X'

	got, _ := r.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'Y'
	again, _ := r.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Set(ctx, "k", []byte{byte(i)})
			_, _ = r.Get(ctx, "k")
			_, _ = r.Keys(ctx)
		}(i)
	}
	wg.Wait()
}
