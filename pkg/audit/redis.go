package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis key layout.
const (
	eventsKey    = "resolvr:audit:events"
	convKeyPfx   = "resolvr:audit:conv:"
	chainHeadKey = "resolvr:audit:chain_head"
)

// RedisChain is the durable audit backend. The head update runs under a
// process-local mutex so previousHash chaining stays linear; the deployment
// runs one appender process per chain.
type RedisChain struct {
	rdb *redis.Client
	mu  sync.Mutex
}

// NewRedisChain creates a Redis-backed chain.
func NewRedisChain(rdb *redis.Client) *RedisChain {
	return &RedisChain{rdb: rdb}
}

func (c *RedisChain) Append(ctx context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	head, err := c.rdb.Get(ctx, chainHeadKey).Result()
	if errors.Is(err, redis.Nil) {
		head = GenesisHash
	} else if err != nil {
		return fmt.Errorf("reading chain head: %w", err)
	}

	seal(&ev, head)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, eventsKey, data)
	if ev.ConversationID != "" {
		pipe.RPush(ctx, convKeyPfx+ev.ConversationID, data)
	}
	pipe.Set(ctx, chainHeadKey, ev.DataHash, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

func (c *RedisChain) Query(ctx context.Context, f Filter) ([]Event, error) {
	// The per-conversation list is much shorter; use it when the filter
	// names a conversation.
	key := eventsKey
	if f.ConversationID != "" {
		key = convKeyPfx + f.ConversationID
	}

	events, err := c.loadList(ctx, key)
	if err != nil {
		return nil, err
	}

	var out []Event
	for i := range events {
		if f.matches(&events[i]) {
			out = append(out, events[i])
			if f.Limit > 0 && len(out) >= f.Limit {
				break
			}
		}
	}
	return out, nil
}

func (c *RedisChain) VerifyIntegrity(ctx context.Context, conversationID string) (Verification, error) {
	if conversationID != "" {
		events, err := c.loadList(ctx, convKeyPfx+conversationID)
		if err != nil {
			return Verification{}, err
		}
		return verifyContent(events), nil
	}

	events, err := c.loadList(ctx, eventsKey)
	if err != nil {
		return Verification{}, err
	}
	return verifyEvents(events), nil
}

func (c *RedisChain) loadList(ctx context.Context, key string) ([]Event, error) {
	raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reading audit list %s: %w", key, err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decoding audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
