package bank

import (
	"context"
	"testing"

	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_InsolventBankDefaultsAndZeroesBalanceSheet(t *testing.T) {
	ctx := context.Background()
	store := fabric.NewMemStore()
	b := New("bank_00", 0, 2, 3, 0, 0, nil)
	reg := NewRegistry([]*Bank{b})

	require.NoError(t, store.HashSet(ctx, fabric.MarketLatestKey(), map[string]float64{"volatility": 0.1}))
	require.NoError(t, store.StringSet(ctx, fabric.MarketDepthKey(), "100"))

	result, err := b.Step(ctx, store, reg, 1, StepConfig{MinLiquidity: 10}, Effects{Store: store, Registry: reg, MarketDepth: 100})
	require.NoError(t, err)

	assert.True(t, result.JustDefaulted)
	assert.True(t, b.Defaulted)
	assert.Equal(t, 0.0, b.Liquidity)
	assert.Equal(t, 0.0, b.Capital)
}

func TestStep_DefaultedBankNeverRestepsOrRevives(t *testing.T) {
	ctx := context.Background()
	store := fabric.NewMemStore()
	b := New("bank_00", 0, 50, 50, 10, 5, nil)
	b.Default()
	reg := NewRegistry([]*Bank{b})

	result, err := b.Step(ctx, store, reg, 2, StepConfig{}, Effects{Store: store, Registry: reg})
	require.NoError(t, err)

	assert.False(t, result.JustDefaulted)
	assert.True(t, b.Defaulted)
	assert.Equal(t, 0.0, b.Liquidity)
}

func TestStep_HealthyBankEmitsAnIntent(t *testing.T) {
	ctx := context.Background()
	store := fabric.NewMemStore()
	b := New("bank_00", 0, 90, 60, 10, 5, nil)
	reg := NewRegistry([]*Bank{b})

	require.NoError(t, store.HashSet(ctx, fabric.MarketLatestKey(), map[string]float64{"volatility": 0.1}))
	require.NoError(t, store.StringSet(ctx, fabric.MarketDepthKey(), "100"))

	result, err := b.Step(ctx, store, reg, 1, StepConfig{MinLiquidity: 10}, Effects{Store: store, Registry: reg, MarketDepth: 100})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Emitted.IntentID)
}
