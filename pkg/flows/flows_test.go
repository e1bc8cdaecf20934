package flows

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory": NewStore(nil),
		"redis":  NewStore(rdb),
	}
}

func refundFlow() *Flow {
	return &Flow{
		TenantID:      "acme",
		Name:          "refund-walkthrough",
		TriggerIntent: "refund_status",
		Enabled:       true,
		Steps: []Step{
			{ID: "ask-order", Type: StepMessage, Message: "Which order is this about?", Next: "lookup"},
			{ID: "lookup", Type: StepTool, Tool: "lookup_customer_orders", Next: "confirm"},
			{ID: "confirm", Type: StepMessage, Message: "Refund initiated."},
		},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			flow := refundFlow()

			require.NoError(t, store.Create(ctx, flow))
			require.NotEmpty(t, flow.ID, "create assigns an ID")
			assert.Equal(t, 1, flow.Version)
			assert.False(t, flow.CreatedAt.IsZero())

			loaded, err := store.Get(ctx, "acme", flow.ID)
			require.NoError(t, err)
			assert.Equal(t, "refund-walkthrough", loaded.Name)
			require.Len(t, loaded.Steps, 3)
			assert.Equal(t, StepTool, loaded.Steps[1].Type)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "acme", "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListOrderedByCreation(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := refundFlow()
			first.Name = "first"
			require.NoError(t, store.Create(ctx, first))
			time.Sleep(2 * time.Millisecond)
			second := refundFlow()
			second.Name = "second"
			require.NoError(t, store.Create(ctx, second))

			listed, err := store.List(ctx, "acme")
			require.NoError(t, err)
			require.Len(t, listed, 2)
			assert.Equal(t, "first", listed[0].Name)
			assert.Equal(t, "second", listed[1].Name)
		})
	}
}

func TestStore_ListIsolatedPerTenant(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Create(ctx, refundFlow()))

			other, err := store.List(ctx, "globex")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestStore_UpdateBumpsVersion(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			flow := refundFlow()
			require.NoError(t, store.Create(ctx, flow))
			created := flow.CreatedAt

			flow.Name = "refund-walkthrough-v2"
			require.NoError(t, store.Update(ctx, flow))
			assert.Equal(t, 2, flow.Version)
			assert.True(t, flow.CreatedAt.Equal(created), "update keeps creation time")

			loaded, err := store.Get(ctx, "acme", flow.ID)
			require.NoError(t, err)
			assert.Equal(t, "refund-walkthrough-v2", loaded.Name)
			assert.Equal(t, 2, loaded.Version)
		})
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			flow := refundFlow()
			flow.ID = "missing"
			assert.ErrorIs(t, store.Update(context.Background(), flow), ErrNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			flow := refundFlow()
			require.NoError(t, store.Create(ctx, flow))

			require.NoError(t, store.Delete(ctx, "acme", flow.ID))
			_, err := store.Get(ctx, "acme", flow.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, store.Delete(ctx, "acme", flow.ID), ErrNotFound)

			listed, err := store.List(ctx, "acme")
			require.NoError(t, err)
			assert.Empty(t, listed)
		})
	}
}
