package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"kerotrack/internal/cache"
)

func newMiniredisKV(t *testing.T) *cache.RedisKVStore {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return cache.NewRedisKVStore(client)
}

func TestRedisKVStore_SetGet(t *testing.T) {
	kv := newMiniredisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))

	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", val)
}

func TestRedisKVStore_MissingKeyIsCacheMiss(t *testing.T) {
	kv := newMiniredisKV(t)

	_, err := kv.Get(context.Background(), "nope")
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}
