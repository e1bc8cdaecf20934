package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// backends returns both store variants so every test runs against each.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	mem := NewMemoryStore(100)
	t.Cleanup(mem.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory": mem,
		"redis":  NewRedisStore(rdb, nil),
	}
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store.Set(ctx, "k1", payload{Name: "order", Count: 3}, time.Minute, false)

			got, ok := GetJSON[payload](ctx, store, "k1", GetOptions{})
			require.True(t, ok)
			assert.Equal(t, payload{Name: "order", Count: 3}, got)
			assert.True(t, store.Has(ctx, "k1"))
		})
	}
}

func TestStore_MissOnUnknownKey(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := store.Get(ctx, "nope", GetOptions{})
			assert.False(t, ok)

			stats := store.Stats(ctx)
			assert.Equal(t, int64(1), stats.Misses)
		})
	}
}

func TestStore_PIIExclusion(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store.Set(ctx, "pii", payload{Name: "phone"}, time.Minute, true)
			store.Set(ctx, "plain", payload{Name: "ok"}, time.Minute, false)

			_, ok := store.Get(ctx, "pii", GetOptions{ExcludePII: true})
			assert.False(t, ok)

			_, ok = store.Get(ctx, "pii", GetOptions{})
			assert.True(t, ok)

			_, ok = store.Get(ctx, "plain", GetOptions{ExcludePII: true})
			assert.True(t, ok)
		})
	}
}

func TestStore_DelAndClear(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store.Set(ctx, "a", 1, time.Minute, false)
			store.Set(ctx, "b", 2, time.Minute, false)

			store.Del(ctx, "a")
			assert.False(t, store.Has(ctx, "a"))
			assert.True(t, store.Has(ctx, "b"))

			store.Clear(ctx)
			assert.False(t, store.Has(ctx, "b"))
			assert.Equal(t, int64(0), store.Stats(ctx).Size)
		})
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	defer store.Close()

	store.Set(ctx, "short", "v", 10*time.Millisecond, false)
	_, ok := store.Get(ctx, "short", GetOptions{})
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = store.Get(ctx, "short", GetOptions{})
	assert.False(t, ok, "expired value must not be returned")
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb, nil)

	store.Set(ctx, "short", "v", time.Second, false)
	_, ok := store.Get(ctx, "short", GetOptions{})
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok = store.Get(ctx, "short", GetOptions{})
	assert.False(t, ok, "expired value must not be returned")
}

func TestRedisStore_TransportFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb, nil)

	store.Set(ctx, "k", "v", time.Minute, false)
	mr.Close()

	// Neither call may panic or error out; Get degrades to a miss.
	_, ok := store.Get(ctx, "k", GetOptions{})
	assert.False(t, ok)
	store.Set(ctx, "k2", "v2", time.Minute, false)
	store.Del(ctx, "k")
}

func TestMemoryStore_MaxEntriesEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	defer store.Close()

	store.Set(ctx, "a", 1, time.Minute, false)
	store.Set(ctx, "b", 2, 2*time.Minute, false)
	store.Set(ctx, "c", 3, 3*time.Minute, false)

	stats := store.Stats(ctx)
	assert.Equal(t, int64(2), stats.Size)
	// "a" expires soonest, so it is the eviction victim.
	assert.False(t, store.Has(ctx, "a"))
	assert.True(t, store.Has(ctx, "c"))
}

func TestStore_Hits_Misses(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	defer store.Close()

	store.Set(ctx, "k", "v", time.Minute, false)
	store.Get(ctx, "k", GetOptions{})
	store.Get(ctx, "k", GetOptions{})
	store.Get(ctx, "missing", GetOptions{})

	stats := store.Stats(ctx)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
