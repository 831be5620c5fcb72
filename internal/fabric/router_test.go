package fabric

import (
	"context"
	"testing"

	"github.com/paynet/interbank-ccp/internal/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_PublicBroadcastsToNextTickStream(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	env := intent.New(4, "bank_00", intent.ActionSellAssetStandard, intent.Public, intent.Payload{
		"asset_type": "liquid_bond", "amount": 10.0, "order_type": "market",
	})

	require.NoError(t, Publish(ctx, store, env))

	public, err := ReadPublic(ctx, store, 4)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, env.IntentID, public[0].IntentID)

	queue, err := store.ListRange(ctx, IntentsQueueKey())
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestPublish_PrivateRoutesToTargetAndSender(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	env := intent.New(2, "bank_00", intent.ActionBorrow, intent.Private, intent.Payload{
		"amount": 10.0, "target_agent_id": "bank_01",
	})

	require.NoError(t, Publish(ctx, store, env))

	toTarget, err := DrainPrivate(ctx, store, "bank_01")
	require.NoError(t, err)
	require.Len(t, toTarget, 1)

	toSender, err := DrainPrivate(ctx, store, "bank_00")
	require.NoError(t, err)
	require.Len(t, toSender, 1)
}

func TestPublish_PrivateSelfTargetNoDoubleDelivery(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	env := intent.New(2, "bank_00", intent.ActionReduceExposure, intent.Private, intent.Payload{
		"target_neighbor_id": "bank_00", "amount": 1.0, "target": "bank_00",
	})

	require.NoError(t, Publish(ctx, store, env))

	delivered, err := DrainPrivate(ctx, store, "bank_00")
	require.NoError(t, err)
	assert.Len(t, delivered, 1)
}

func TestDrainMarginCalls_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	env := intent.New(1, "ccp", intent.ActionIssueMarginCall, intent.Private, intent.Payload{
		"target_agent_id": "bank_02", "margin_amount": 5.0, "deadline_tick": 2.0,
	})
	require.NoError(t, store.ListAppend(ctx, MarginCallsKey("bank_02"), mustMarshal(env)))

	first, err := DrainMarginCalls(ctx, store, "bank_02")
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := DrainMarginCalls(ctx, store, "bank_02")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func mustMarshal(env intent.Envelope) string {
	raw, err := env.Marshal()
	if err != nil {
		panic(err)
	}
	return string(raw)
}
