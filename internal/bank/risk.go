package bank

// LGD is the loss-given-default fraction applied to expected-loss
// computations. The reduced 0.3 capital / 0.045 liquidity pair applies only
// to the CCP waterfall's bilateral contagion (internal/ccp/waterfall.go), see
// DESIGN.md "Open Question decisions".
const LGD = 0.6

// Risk bundles the per-tick risk measures computed in spec.md §4.4 step 3.
type Risk struct {
	ExpectedLoss       float64
	LiquidityShortfall float64
	MarginUrgency      float64
	RepayUrgency       float64
}

// ComputeRisk evaluates the four risk measures from the bank's current
// state and the belief channels updated this tick.
func (b *Bank) ComputeRisk(tick int, minLiquidity float64) Risk {
	expectedLoss := b.Beliefs.ExpectedLoss(b.Exposure, LGD)

	expectedMargin := b.Beliefs.MarginExpected.Mean()
	shortfall := minLiquidity + expectedMargin - b.Liquidity
	if shortfall < 0 {
		shortfall = 0
	}

	denom := b.Liquidity
	if denom < 1 {
		denom = 1
	}
	marginUrgency := b.TotalMarginDue() / denom
	repayUrgency := b.TotalRepaymentDue(tick) / denom

	return Risk{
		ExpectedLoss:       expectedLoss,
		LiquidityShortfall: shortfall,
		MarginUrgency:      marginUrgency,
		RepayUrgency:       repayUrgency,
	}
}
