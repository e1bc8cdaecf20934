package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the durable cache backend. TTLs are native Redis expiries,
// so there is no eviction loop.
type RedisStore struct {
	rdb      *redis.Client
	recorder HealthRecorder

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore creates a Redis-backed cache store. recorder may be nil.
func NewRedisStore(rdb *redis.Client, recorder HealthRecorder) *RedisStore {
	return &RedisStore{rdb: rdb, recorder: recorder}
}

func (s *RedisStore) Get(ctx context.Context, key string, opts GetOptions) (json.RawMessage, bool) {
	data, err := s.rdb.Get(ctx, Namespace+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Cache get failed, treating as miss", "key", key, "error", err)
			s.recordFailure()
		}
		s.misses.Add(1)
		return nil, false
	}
	s.recordSuccess()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("Cache entry corrupt, treating as miss", "key", key, "error", err)
		s.misses.Add(1)
		return nil, false
	}
	if opts.ExcludePII && env.ContainsPII {
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return env.Value, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration, containsPII bool) {
	data, err := marshalEnvelope(value, containsPII)
	if err != nil {
		slog.Warn("Cache set skipped: value not marshalable", "key", key, "error", err)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, Namespace+key, data, ttl).Err(); err != nil {
		slog.Warn("Cache set failed", "key", key, "error", err)
		s.recordFailure()
		return
	}
	s.recordSuccess()
}

func (s *RedisStore) Del(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, Namespace+key).Err(); err != nil {
		slog.Warn("Cache del failed", "key", key, "error", err)
		s.recordFailure()
		return
	}
	s.recordSuccess()
}

func (s *RedisStore) Has(ctx context.Context, key string) bool {
	n, err := s.rdb.Exists(ctx, Namespace+key).Result()
	if err != nil {
		s.recordFailure()
		return false
	}
	s.recordSuccess()
	return n > 0
}

// Clear scans and deletes every key under the cache namespace.
func (s *RedisStore) Clear(ctx context.Context) {
	iter := s.rdb.Scan(ctx, 0, Namespace+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 500 {
			s.deleteBatch(ctx, keys)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("Cache clear scan failed", "error", err)
		s.recordFailure()
	}
	if len(keys) > 0 {
		s.deleteBatch(ctx, keys)
	}
}

func (s *RedisStore) deleteBatch(ctx context.Context, keys []string) {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("Cache clear delete failed", "count", len(keys), "error", err)
		s.recordFailure()
	}
}

func (s *RedisStore) Stats(ctx context.Context) Stats {
	var size int64
	iter := s.rdb.Scan(ctx, 0, Namespace+"*", 0).Iterator()
	for iter.Next(ctx) {
		size++
	}
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Size:   size,
	}
}

func (s *RedisStore) recordSuccess() {
	if s.recorder != nil {
		s.recorder.RecordSuccess("redis")
	}
}

func (s *RedisStore) recordFailure() {
	if s.recorder != nil {
		s.recorder.RecordFailure("redis")
	}
}
