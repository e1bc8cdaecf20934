package convstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(rdb),
	}
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			conv := models.NewConversation("conv-1", "default", "visitor-1", models.ChannelWeb)
			conv.AppendTurn(models.RoleUser, "where is my order")
			conv.Memory.Set("name", "Priya")
			conv.Memory.AddOrderNumber("Q12345")

			require.NoError(t, store.Save(ctx, conv))

			got, err := store.Get(ctx, "conv-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "conv-1", got.ID)
			assert.Equal(t, models.StateNew, got.State)
			assert.Equal(t, 1, got.TurnCount)
			assert.Equal(t, "Priya", got.Memory.Name)
			assert.Equal(t, []string{"Q12345"}, got.Memory.OrderNumbers)
		})
	}
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Get(ctx, "no-such-conversation")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_SaveBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			conv := models.NewConversation("conv-2", "default", "v", models.ChannelWeb)
			stale := time.Now().Add(-time.Hour)
			conv.UpdatedAt = stale

			require.NoError(t, store.Save(ctx, conv))

			got, err := store.Get(ctx, "conv-2")
			require.NoError(t, err)
			assert.True(t, got.UpdatedAt.After(stale))
		})
	}
}

func TestStore_TrimKeepsSystemTurns(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			conv := models.NewConversation("conv-3", "default", "v", models.ChannelWeb)
			conv.AppendTurn(models.RoleSystem, "continuation context")
			for i := 0; i < 30; i++ {
				conv.AppendTurn(models.RoleUser, fmt.Sprintf("user %d", i))
			}
			conv.AppendTurn(models.RoleSystem, "handoff note")

			require.NoError(t, store.Save(ctx, conv))

			got, err := store.Get(ctx, "conv-3")
			require.NoError(t, err)

			var system, nonSystem []string
			for _, turn := range got.Turns {
				if turn.Role == models.RoleSystem {
					system = append(system, turn.Content)
				} else {
					nonSystem = append(nonSystem, turn.Content)
				}
			}
			assert.Equal(t, []string{"continuation context", "handoff note"}, system)
			require.Len(t, nonSystem, MaxTurns)
			assert.Equal(t, "user 10", nonSystem[0], "oldest surviving non-system turn")
			assert.Equal(t, "user 29", nonSystem[len(nonSystem)-1])

			// System turns keep their relative position in the sequence.
			assert.Equal(t, models.RoleSystem, got.Turns[0].Role)
			assert.Equal(t, models.RoleSystem, got.Turns[len(got.Turns)-1].Role)
		})
	}
}

func TestStore_TrimNoopUnderLimit(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			conv := models.NewConversation("conv-4", "default", "v", models.ChannelWeb)
			for i := 0; i < 5; i++ {
				conv.AppendTurn(models.RoleUser, "hello")
				conv.AppendTurn(models.RoleAssistant, "hi")
			}

			require.NoError(t, store.Save(ctx, conv))

			got, err := store.Get(ctx, "conv-4")
			require.NoError(t, err)
			assert.Len(t, got.Turns, 10)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			conv := models.NewConversation("conv-5", "default", "v", models.ChannelWeb)
			require.NoError(t, store.Save(ctx, conv))
			require.NoError(t, store.Delete(ctx, "conv-5"))

			got, err := store.Get(ctx, "conv-5")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestRedisStore_RecordExpires(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb)

	conv := models.NewConversation("conv-ttl", "default", "v", models.ChannelWeb)
	require.NoError(t, store.Save(ctx, conv))

	mr.FastForward(TTL + time.Minute)

	got, err := store.Get(ctx, "conv-ttl")
	require.NoError(t, err)
	assert.Nil(t, got)
}
