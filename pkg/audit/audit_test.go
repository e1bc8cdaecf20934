package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chains(t *testing.T) map[string]Chain {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Chain{
		"memory": NewMemoryChain(),
		"redis":  NewRedisChain(rdb),
	}
}

func appendN(t *testing.T, chain Chain, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		err := chain.Append(ctx, Event{
			Actor:          "orchestrator",
			Action:         "message_processed",
			Category:       CategoryConversation,
			ConversationID: "c1",
			TenantID:       "default",
			Details:        map[string]any{"seq": fmt.Sprintf("%d", i)},
		})
		require.NoError(t, err)
	}
}

func TestChain_VerifyAfterAppends(t *testing.T) {
	ctx := context.Background()
	for name, chain := range chains(t) {
		t.Run(name, func(t *testing.T) {
			appendN(t, chain, 5)

			v, err := chain.VerifyIntegrity(ctx, "")
			require.NoError(t, err)
			assert.True(t, v.Valid)
			assert.Empty(t, v.BrokenAt)
		})
	}
}

func TestChain_QueryFilters(t *testing.T) {
	ctx := context.Background()
	for name, chain := range chains(t) {
		t.Run(name, func(t *testing.T) {
			appendN(t, chain, 3)
			require.NoError(t, chain.Append(ctx, Event{
				Actor:          "tool_runtime",
				Action:         "tool_executed",
				Category:       CategoryToolExecution,
				ConversationID: "c2",
				TenantID:       "acme",
			}))

			byConv, err := chain.Query(ctx, Filter{ConversationID: "c1"})
			require.NoError(t, err)
			assert.Len(t, byConv, 3)

			byCategory, err := chain.Query(ctx, Filter{Category: CategoryToolExecution})
			require.NoError(t, err)
			require.Len(t, byCategory, 1)
			assert.Equal(t, "tool_executed", byCategory[0].Action)

			limited, err := chain.Query(ctx, Filter{ConversationID: "c1", Limit: 2})
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			byActor, err := chain.Query(ctx, Filter{Actor: "tool_runtime"})
			require.NoError(t, err)
			assert.Len(t, byActor, 1)

			none, err := chain.Query(ctx, Filter{Since: time.Now().Add(time.Hour)})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestMemoryChain_TamperDetection(t *testing.T) {
	ctx := context.Background()
	chain := NewMemoryChain()
	appendN(t, chain, 5)

	tamperedID := chain.events[2].EventID
	chain.TamperWith(2, "seq", "tampered")

	v, err := chain.VerifyIntegrity(ctx, "")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, tamperedID, v.BrokenAt)
}

func TestRedisChain_TamperDetection(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	chain := NewRedisChain(rdb)

	appendN(t, chain, 5)

	// Mutate the stored JSON of the third event directly in Redis.
	events, err := chain.loadList(ctx, eventsKey)
	require.NoError(t, err)
	require.Len(t, events, 5)
	tamperedID := events[2].EventID

	events[2].Details["seq"] = "tampered"
	raw, err := json.Marshal(events[2])
	require.NoError(t, err)
	require.NoError(t, rdb.LSet(ctx, eventsKey, 2, string(raw)).Err())

	v, err := chain.VerifyIntegrity(ctx, "")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, tamperedID, v.BrokenAt)
}

func TestChain_PerConversationVerify(t *testing.T) {
	ctx := context.Background()
	for name, chain := range chains(t) {
		t.Run(name, func(t *testing.T) {
			appendN(t, chain, 2)
			v, err := chain.VerifyIntegrity(ctx, "c1")
			require.NoError(t, err)
			assert.True(t, v.Valid)
		})
	}
}

func TestChain_FirstEventLinksGenesis(t *testing.T) {
	ctx := context.Background()
	for name, chain := range chains(t) {
		t.Run(name, func(t *testing.T) {
			appendN(t, chain, 1)
			events, err := chain.Query(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, GenesisHash, events[0].PreviousHash)
			assert.NotEmpty(t, events[0].DataHash)
			assert.NotEmpty(t, events[0].EventID)
		})
	}
}
