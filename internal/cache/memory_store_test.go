package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/irfndi/dealer-trust-engine/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.KeyValueStore = (*MemoryStore)(nil)

func TestMemoryStore_SetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "geo_pool:austin|tx", []byte(`{"base_score":82}`), 0))

	value, found, err := store.Get(ctx, "geo_pool:austin|tx")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"base_score":82}`, string(value))
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	value, found, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestMemoryStore_ValueIsCopied(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", original, 0))
	original[0] = 'z'

	value, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(value))

	value[1] = 'q'
	again, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "confidence:t1", []byte("0.85"), time.Minute))
	_, found, _ := store.Get(ctx, "confidence:t1")
	assert.True(t, found)

	now = now.Add(time.Minute)
	_, found, _ = store.Get(ctx, "confidence:t1")
	assert.False(t, found)

	keys, err := store.Keys(ctx, "confidence:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore_DeleteAndKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "geo_pool:b", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "geo_pool:a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "confidence:t1", []byte("1"), 0))

	keys, err := store.Keys(ctx, "geo_pool:")
	require.NoError(t, err)
	assert.Equal(t, []string{"geo_pool:a", "geo_pool:b"}, keys)

	require.NoError(t, store.Delete(ctx, "geo_pool:a"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	keys, err = store.Keys(ctx, "geo_pool:")
	require.NoError(t, err)
	assert.Equal(t, []string{"geo_pool:b"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"confidence:t1", "geo_pool:b"}, all)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + string(rune('a'+i%26))
			_ = store.Set(ctx, key, []byte{byte(i)}, 0)
			_, _, _ = store.Get(ctx, key)
			_, _ = store.Keys(ctx, "k")
		}(i)
	}
	wg.Wait()

	keys, err := store.Keys(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, keys, 26)
}
