package scheduler

import (
	"context"
	"testing"

	"github.com/paynet/interbank-ccp/internal/bank"
	"github.com/paynet/interbank-ccp/internal/ccp"
	"github.com/paynet/interbank-ccp/internal/config"
	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsPopulationAndClearsFabric(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.NBanks = 6
	cfg.Steps = 3

	s, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	assert.Len(t, s.registry.InOrder(), 6)

	depth, ok, err := s.store.StringGet(ctx, fabric.MarketDepthKey())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "100", depth)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.NBanks = 0
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestRun_NoShockBaselineProducesNoDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.NBanks = 10
	cfg.Steps = 20
	cfg.Seed = 99
	cfg.BaseVolatility = 0.12
	cfg.ShockStep = 0

	s, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 0, s.Summary.DefaultsTotal)
	assert.Equal(t, 0, s.Summary.PanicModeTicks)
	assert.Equal(t, 10, s.Summary.FinalActiveBanks)
}

func TestRunTick_InsolventBankDefaultTriggersWaterfall(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.NBanks = 3
	cfg.CCPInitialDefaultFund = 1000
	// Zero out the liquidity-shortfall utility term so HOARD_LIQUIDITY can't
	// outscore an insolvent bank's DECLARE_DEFAULT — this test is about the
	// waterfall, not the action-selection tie structure.
	cfg.MinLiquidity = 0

	s, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	failing := bank.New("bank_00", 0, 2, 2, 0, 0, []int{1, 2})
	healthy1 := bank.New("bank_01", 1, 90, 60, 10, 5, []int{0, 2})
	healthy2 := bank.New("bank_02", 2, 90, 60, 10, 5, []int{0, 1})
	healthy1.Exposure[0] = 20
	healthy2.Exposure[0] = 15
	s.registry = bank.NewRegistry([]*bank.Bank{failing, healthy1, healthy2})
	s.ccp = ccp.New(cfg)

	require.NoError(t, s.runTick(ctx, 1, "test-run"))

	assert.True(t, failing.Defaulted)
	assert.Equal(t, 1, s.Summary.DefaultsTotal)
	// the default fund absorbed the bilateral loss CCP values at 0.6 LGD,
	// on top of any deposits the healthy banks made into it this tick
	absorbed := 0.6 * (healthy1.Exposure[0] + healthy2.Exposure[0])
	deposits := healthy1.DefaultFundContribution + healthy2.DefaultFundContribution
	assert.Greater(t, absorbed, 0.0)
	assert.InDelta(t, cfg.CCPInitialDefaultFund+deposits-absorbed, s.ccp.DefaultFund, 1e-9)
}

// TestRunTick_OTCSettlementDefaultReachesWaterfallSameTick exercises the
// ordering fix: a borrower driven to exactly zero liquidity by a maturing
// OTC repayment (settled inside the lender's own Step, earlier in this
// tick's fixed iteration order) must be recognised as defaulted and run
// through the CCP waterfall in this same tick, not left for its own Step
// call which the scheduler skips outright once it's already marked
// defaulted.
func TestRunTick_OTCSettlementDefaultReachesWaterfallSameTick(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.NBanks = 2
	cfg.MinLiquidity = 0
	cfg.StepOperatingCost = 0
	cfg.CCPInitialDefaultFund = 1000

	s, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	lender := bank.New("bank_00", 0, 60, 50, 0, 0, []int{1})
	borrower := bank.New("bank_01", 1, 10, 50, 0, 0, []int{0})
	lender.Exposure[1] = 10
	lender.OTCLoansGiven = []bank.OTCLoan{
		{ID: "loan-1", Target: 1, Principal: 10, Rate: 0, RemainingTicks: 0},
	}
	s.registry = bank.NewRegistry([]*bank.Bank{lender, borrower})
	s.ccp = ccp.New(cfg)

	require.NoError(t, s.runTick(ctx, 1, "test-run"))

	assert.True(t, borrower.Defaulted)
	assert.False(t, lender.Defaulted)
	assert.Equal(t, 1, s.Summary.DefaultsTotal)
	assert.Less(t, s.ccp.DefaultFund, cfg.CCPInitialDefaultFund)
}
