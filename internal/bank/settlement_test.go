package bank

import (
	"context"
	"testing"

	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleOTCLoans_FullMaturityTransfersPrincipalAndInterest(t *testing.T) {
	lender := New("bank_00", 0, 50, 50, 0, 0, []int{1})
	borrower := New("bank_01", 1, 100, 50, 0, 0, []int{0})
	reg := NewRegistry([]*Bank{lender, borrower})

	lender.OTCLoansGiven = []OTCLoan{
		{ID: "loan-1", Target: borrower.Index, Principal: 10, Rate: 0.05, RemainingTicks: 0},
	}

	defaulted := lender.SettleOTCLoans(reg)

	assert.Empty(t, defaulted)
	assert.Equal(t, 60.5, lender.Liquidity)
	assert.Equal(t, 89.5, borrower.Liquidity)
	assert.Empty(t, lender.OTCLoansGiven)
}

func TestSettleOTCLoans_UnmaturedLoanIsUntouched(t *testing.T) {
	lender := New("bank_00", 0, 50, 50, 0, 0, []int{1})
	borrower := New("bank_01", 1, 100, 50, 0, 0, []int{0})
	reg := NewRegistry([]*Bank{lender, borrower})

	lender.OTCLoansGiven = []OTCLoan{
		{ID: "loan-1", Target: borrower.Index, Principal: 10, Rate: 0.05, RemainingTicks: 3},
	}

	defaulted := lender.SettleOTCLoans(reg)

	assert.Empty(t, defaulted)
	assert.Equal(t, 50.0, lender.Liquidity)
	assert.Equal(t, 100.0, borrower.Liquidity)
	require.Len(t, lender.OTCLoansGiven, 1)
	assert.Equal(t, 3, lender.OTCLoansGiven[0].RemainingTicks)
}

func TestSettleOTCLoans_InsufficientFundsRecoversHalfAndFlagsMissedPayment(t *testing.T) {
	lender := New("bank_00", 0, 50, 50, 0, 0, []int{1})
	borrower := New("bank_01", 1, 6, 50, 0, 0, []int{0})
	reg := NewRegistry([]*Bank{lender, borrower})

	lender.OTCLoansGiven = []OTCLoan{
		{ID: "loan-1", Target: borrower.Index, Principal: 10, Rate: 0, RemainingTicks: 0},
	}

	defaulted := lender.SettleOTCLoans(reg)

	assert.Empty(t, defaulted)
	assert.Equal(t, 3.0, borrower.Liquidity)
	assert.Equal(t, 53.0, lender.Liquidity)
	assert.True(t, borrower.MissedPaymentThisTick)
	assert.Empty(t, lender.OTCLoansGiven)
}

func TestSettleOTCLoans_TargetDefaultsImmediatelyNotNextTick(t *testing.T) {
	lender := New("bank_00", 0, 50, 50, 0, 0, []int{1})
	borrower := New("bank_01", 1, 6, 0, 0, 0, []int{0}) // already capital-insolvent
	reg := NewRegistry([]*Bank{lender, borrower})

	lender.OTCLoansGiven = []OTCLoan{
		{ID: "loan-1", Target: borrower.Index, Principal: 10, Rate: 0, RemainingTicks: 0},
	}

	defaulted := lender.SettleOTCLoans(reg)

	require.Len(t, defaulted, 1)
	assert.Same(t, borrower, defaulted[0])
	assert.True(t, borrower.Defaulted)
	assert.Equal(t, 0.0, borrower.Liquidity)
}

func TestSettleOTCLoans_DefaultedTargetWritesOffLoanWithoutTransfer(t *testing.T) {
	lender := New("bank_00", 0, 50, 50, 0, 0, []int{1})
	borrower := New("bank_01", 1, 100, 50, 0, 0, []int{0})
	borrower.Default()
	reg := NewRegistry([]*Bank{lender, borrower})

	lender.OTCLoansGiven = []OTCLoan{
		{ID: "loan-1", Target: borrower.Index, Principal: 10, Rate: 0, RemainingTicks: 0},
	}

	defaulted := lender.SettleOTCLoans(reg)

	assert.Empty(t, defaulted)
	assert.Equal(t, 50.0, lender.Liquidity)
	assert.Empty(t, lender.OTCLoansGiven)
}

// TestStep_MaturedOTCRepaymentSavesAnOtherwiseInsolventLender exercises the
// ordering fix end to end: a lender whose liquidity is already negative for
// an unrelated reason still receives a maturing OTC repayment within the
// same Step, before its own default check runs, instead of the repayment
// being deferred to a later scheduler pass that only fires on solvent banks.
func TestStep_MaturedOTCRepaymentSavesAnOtherwiseInsolventLender(t *testing.T) {
	ctx := context.Background()
	store := fabric.NewMemStore()
	require.NoError(t, store.HashSet(ctx, fabric.MarketLatestKey(), map[string]float64{"volatility": 0.1}))
	require.NoError(t, store.StringSet(ctx, fabric.MarketDepthKey(), "100"))

	lender := New("bank_00", 0, -5, 50, 0, 0, []int{1})
	borrower := New("bank_01", 1, 100, 50, 0, 0, []int{0})
	reg := NewRegistry([]*Bank{lender, borrower})

	lender.OTCLoansGiven = []OTCLoan{
		{ID: "loan-1", Target: borrower.Index, Principal: 10, Rate: 0, RemainingTicks: 0},
	}

	result, err := lender.Step(ctx, store, reg, 1, StepConfig{MinLiquidity: 10}, Effects{Store: store, Registry: reg, MarketDepth: 100})
	require.NoError(t, err)

	assert.False(t, result.JustDefaulted)
	assert.False(t, lender.Defaulted)
	assert.Greater(t, lender.Liquidity, 0.0)
}
