package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/irfndi/dealer-trust-engine/pkg/interfaces"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.KeyValueStore = (*RedisStore)(nil)
var _ interfaces.HealthChecker = (*RedisStore)(nil)

// setupTestRedis creates a test Redis instance using miniredis
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, func()) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	cleanup := func() {
		client.Close()
		s.Close()
	}

	return s, client, cleanup
}

func TestNewRedisStore(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "dte:", nil)

	assert.NotNil(t, store)
	assert.Equal(t, client, store.redis)
	assert.Equal(t, "dte:", store.namespace)
	assert.NotNil(t, store.logger)
}

func TestRedisStore_SetGet(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "dte:", nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "geo_pool:austin|tx", []byte(`{"base_score":82}`), 0))

	raw, err := mr.Get("dte:geo_pool:austin|tx")
	require.NoError(t, err)
	assert.Equal(t, `{"base_score":82}`, raw)

	value, found, err := store.Get(ctx, "geo_pool:austin|tx")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"base_score":82}`, string(value))
}

func TestRedisStore_GetMissing(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "dte:", nil)

	value, found, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "", nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("short"))

	mr.FastForward(2 * time.Minute)

	_, found, err := store.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_DeleteAndKeys(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "dte:", nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "geo_pool:a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "geo_pool:b", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "confidence:t1", []byte("0.85"), 0))

	keys, err := store.Keys(ctx, "geo_pool:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"geo_pool:a", "geo_pool:b"}, keys)

	require.NoError(t, store.Delete(ctx, "geo_pool:a"))

	keys, err = store.Keys(ctx, "geo_pool:")
	require.NoError(t, err)
	assert.Equal(t, []string{"geo_pool:b"}, keys)
}

func TestRedisStore_HealthCheck(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "", nil)
	assert.NoError(t, store.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, store.HealthCheck(context.Background()))
}

func TestRedisStore_ErrorsAreWrapped(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "", nil)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis get k")

	err = store.Set(context.Background(), "k", []byte("v"), 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis set k")
}
