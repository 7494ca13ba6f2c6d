package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const holdTTL = 120 * time.Second

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var t0 = time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)

func TestHoldStoreAcquire(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := NewHoldStore(rdb, zap.NewNop())

	conflicts, err := store.Acquire(ctx, 42, []int64{1, 2}, "s1", "a@example.com", t0, holdTTL)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	holds, err := store.Get(ctx, 42, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, holds, 2)
	assert.Equal(t, "s1", holds[1].SessionID)
	assert.Equal(t, "a@example.com", holds[1].CustomerEmail)
	assert.Equal(t, t0, holds[1].CreatedAt)
	assert.Equal(t, t0.Add(holdTTL), holds[2].ExpiresAt)
	assert.NotContains(t, holds, int64(3))
}

func TestHoldStoreAcquirePartialConflict(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := NewHoldStore(rdb, zap.NewNop())

	_, err := store.Acquire(ctx, 42, []int64{1, 2}, "s1", "", t0, holdTTL)
	require.NoError(t, err)

	conflicts, err := store.Acquire(ctx, 42, []int64{2, 3}, "s2", "", t0.Add(time.Second), holdTTL)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, conflicts)

	holds, err := store.Get(ctx, 42, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "s1", holds[1].SessionID)
	assert.Equal(t, "s1", holds[2].SessionID)
	assert.Equal(t, "s2", holds[3].SessionID)
}

func TestHoldStoreAcquireOwnSeatRefreshes(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := NewHoldStore(rdb, zap.NewNop())

	_, err := store.Acquire(ctx, 42, []int64{1}, "s1", "", t0, holdTTL)
	require.NoError(t, err)

	later := t0.Add(30 * time.Second)
	conflicts, err := store.Acquire(ctx, 42, []int64{1}, "s1", "", later, holdTTL)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	holds, err := store.Get(ctx, 42, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, later.Add(holdTTL), holds[1].ExpiresAt)
}

func TestHoldStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	store := NewHoldStore(rdb, zap.NewNop())

	_, err := store.Acquire(ctx, 42, []int64{1}, "s1", "", t0, holdTTL)
	require.NoError(t, err)

	t.Run("stale hold is taken over before eviction", func(t *testing.T) {
		conflicts, err := store.Acquire(ctx, 42, []int64{1}, "s2", "", t0.Add(121*time.Second), holdTTL)
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("key ttl evicts the hold", func(t *testing.T) {
		mr.FastForward(holdTTL + time.Second)
		holds, err := store.Get(ctx, 42, []int64{1})
		require.NoError(t, err)
		assert.Empty(t, holds)
	})
}

func TestHoldStoreRelease(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := NewHoldStore(rdb, zap.NewNop())

	_, err := store.Acquire(ctx, 42, []int64{1, 2}, "s1", "", t0, holdTTL)
	require.NoError(t, err)

	n, err := store.Release(ctx, 42, []int64{1, 2}, "s2")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "another session cannot release")

	n, err = store.Release(ctx, 42, []int64{1}, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.Release(ctx, 42, []int64{1}, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second release is a no-op")

	holds, err := store.Get(ctx, 42, []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, holds, 1)
	assert.Contains(t, holds, int64(2))
}

func TestHoldStoreExtend(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	store := NewHoldStore(rdb, zap.NewNop())

	_, err := store.Acquire(ctx, 42, []int64{1, 2}, "s1", "", t0, holdTTL)
	require.NoError(t, err)

	n, err := store.Extend(ctx, 42, []int64{1, 2}, "s2", time.Minute, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.Extend(ctx, 42, []int64{1}, "s1", time.Minute, t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	holds, err := store.Get(ctx, 42, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(holdTTL+time.Minute), holds[1].ExpiresAt)
	assert.Equal(t, t0.Add(holdTTL), holds[2].ExpiresAt)
	assert.Equal(t, holdTTL+time.Minute, mr.TTL(holdKey(42, 1)))

	n, err = store.Extend(ctx, 42, []int64{2}, "s1", time.Minute, t0.Add(holdTTL+time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "expired hold is not revived")
}

func TestHoldStoreDelete(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := NewHoldStore(rdb, zap.NewNop())

	_, err := store.Acquire(ctx, 42, []int64{1, 2}, "s1", "", t0, holdTTL)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, 42, []int64{1, 2}))
	require.NoError(t, store.Delete(ctx, 42, nil))

	holds, err := store.Get(ctx, 42, []int64{1, 2})
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestSessionHoldIndex(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	index := NewSessionHoldIndex(rdb, zap.NewNop())

	require.NoError(t, index.Put(ctx, "s1", 42, []int64{3, 1}, holdTTL))
	require.NoError(t, index.Put(ctx, "s1", 43, []int64{7}, holdTTL))

	seats, err := index.Get(ctx, "s1", 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, seats)
	assert.Equal(t, "3,1", mr.HGet(sessionKey("s1"), "42"))

	require.NoError(t, index.Extend(ctx, "s1", time.Minute))
	assert.Equal(t, holdTTL+time.Minute, mr.TTL(sessionKey("s1")))

	require.NoError(t, index.Remove(ctx, "s1", 42))
	seats, err = index.Get(ctx, "s1", 42)
	require.NoError(t, err)
	assert.Empty(t, seats)

	require.NoError(t, index.Put(ctx, "s1", 43, nil, holdTTL))
	seats, err = index.Get(ctx, "s1", 43)
	require.NoError(t, err)
	assert.Empty(t, seats)

	seats, err = index.Get(ctx, "unknown", 42)
	require.NoError(t, err)
	assert.Nil(t, seats)
}

func TestSplitSeatIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2}, splitSeatIDs("1, 2,x"))
	assert.Nil(t, splitSeatIDs(""))
	assert.Equal(t, "5,6", joinSeatIDs([]int64{5, 6}))
}
