// Package cache provides the TTL'd key-value cache store with hit/miss
// accounting. Two backends share identical semantics: a Redis store with
// native TTL and a bounded in-memory store with periodic eviction.
//
// The cache must never fail its caller: transport errors turn Get into a
// miss and are swallowed by Set/Del.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace prefixes every cache key so Clear cannot touch foreign keys.
const Namespace = "resolvr:cache:"

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int64 `json:"size"`
}

// GetOptions modifies Get behavior.
type GetOptions struct {
	// ExcludePII turns entries flagged as containing PII into misses.
	ExcludePII bool
}

// Store is the cache capability set shared by both backends.
type Store interface {
	// Get returns the raw JSON value for key, or ok=false on miss, expiry,
	// transport failure, or PII exclusion.
	Get(ctx context.Context, key string, opts GetOptions) (json.RawMessage, bool)
	// Set stores value (JSON-marshaled) under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration, containsPII bool)
	// Del removes key.
	Del(ctx context.Context, key string)
	// Has reports whether key holds an unexpired value.
	Has(ctx context.Context, key string) bool
	// Clear removes every key in the cache namespace.
	Clear(ctx context.Context)
	// Stats returns hit/miss/size counters.
	Stats(ctx context.Context) Stats
}

// HealthRecorder receives dependency success/failure signals. Satisfied by
// the health tracker; nil disables recording.
type HealthRecorder interface {
	RecordSuccess(name string)
	RecordFailure(name string)
}

// New picks the backend: Redis when a client is supplied, otherwise the
// bounded in-memory store.
func New(rdb *redis.Client, recorder HealthRecorder) Store {
	if rdb != nil {
		return NewRedisStore(rdb, recorder)
	}
	return NewMemoryStore(DefaultMaxEntries)
}

// GetJSON fetches key and unmarshals it into T.
func GetJSON[T any](ctx context.Context, s Store, key string, opts GetOptions) (T, bool) {
	var zero T
	raw, ok := s.Get(ctx, key, opts)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

// envelope is the stored wire form: the value plus the PII flag.
type envelope struct {
	Value       json.RawMessage `json:"v"`
	ContainsPII bool            `json:"pii,omitempty"`
}

func marshalEnvelope(value any, containsPII bool) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Value: raw, ContainsPII: containsPII})
}
