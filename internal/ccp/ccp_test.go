package ccp

import (
	"context"
	"testing"

	"github.com/paynet/interbank-ccp/internal/bank"
	"github.com/paynet/interbank-ccp/internal/config"
	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCCP(t *testing.T) *CCP {
	t.Helper()
	cfg := config.Default()
	cfg.CCPInitialDefaultFund = 0
	cfg.MarginCallThreshold = 0.5
	cfg.CCPSafeMultiplier = 3.0
	return New(cfg)
}

func TestCheckPanicMode_ZeroFundWithExposureTriggersPanic(t *testing.T) {
	c := newCCP(t)
	b := bank.New("bank_00", 0, 100, 50, 10, 5, nil)
	b.Exposure[1] = 20
	reg := bank.NewRegistry([]*bank.Bank{b})

	c.observe(reg)
	c.checkPanicMode()

	assert.True(t, c.PanicMode)
	assert.InDelta(t, 0.3, c.MarginCallThreshold, 1e-9)
}

func TestCheckPanicMode_RelaxesOnFallingEdge(t *testing.T) {
	c := newCCP(t)
	c.PanicMode = true
	c.MarginCallThreshold = 0.2
	c.baselineThreshold = 0.5
	c.DefaultFund = 1000
	reg := bank.NewRegistry([]*bank.Bank{bank.New("bank_00", 0, 100, 50, 0, 0, nil)})

	c.observe(reg)
	c.checkPanicMode()

	assert.False(t, c.PanicMode)
	assert.InDelta(t, 0.24, c.MarginCallThreshold, 1e-9)
}

func TestIssueMarginCalls_BreachingRatioGetsExactlyOneCall(t *testing.T) {
	ctx := context.Background()
	store := fabric.NewMemStore()
	c := newCCP(t)
	c.DefaultFund = 500
	c.CurrentMarginRate = 0.05

	b := bank.New("bank_00", 0, 100, 10, 0, 0, nil)
	b.Exposure[1] = 50 // ratio = 5, well above 0.5 threshold
	reg := bank.NewRegistry([]*bank.Bank{b})

	c.observe(reg)
	c.computeRiskScores(reg)
	n, err := c.issueMarginCalls(ctx, store, reg, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	calls, err := fabric.DrainMarginCalls(ctx, store, "bank_00")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "exposure_ratio_breach", calls[0].Payload["reason"])
}

func TestIssueMarginCalls_PanicModeShortensDeadline(t *testing.T) {
	ctx := context.Background()
	store := fabric.NewMemStore()
	c := newCCP(t)
	c.PanicMode = true
	c.DefaultFund = 500

	b := bank.New("bank_00", 0, 100, 10, 0, 0, nil)
	b.Exposure[1] = 50
	reg := bank.NewRegistry([]*bank.Bank{b})
	c.observe(reg)
	c.computeRiskScores(reg)

	n, err := c.issueMarginCalls(ctx, store, reg, 5)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	calls, err := fabric.DrainMarginCalls(ctx, store, "bank_00")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.EqualValues(t, 6, calls[0].Payload["deadline_tick"])
	assert.Equal(t, "panic_mode_breach", calls[0].Payload["reason"])
}

func TestComputeUtility_PanicAndDefaultsLowerUtility(t *testing.T) {
	c := newCCP(t)
	c.DefaultFund = 100
	c.SafeMultiplier = 10
	reg := bank.NewRegistry([]*bank.Bank{bank.New("bank_00", 0, 50, 50, 0, 0, nil)})

	c.PanicMode = false
	c.NumDefaultsThisTick = 0
	c.FireSaleVolume = 0
	calm := c.computeUtility(reg)

	c.PanicMode = true
	c.NumDefaultsThisTick = 1
	c.FireSaleVolume = 25
	stressed := c.computeUtility(reg)

	assert.Less(t, stressed, calm)
}
