package bank

import (
	"math"

	"github.com/paynet/interbank-ccp/internal/intent"
)

const negInf = math.Inf(-1)

// Decision is the argmax action chosen for this tick, carrying whatever
// inputs its execution effect needs.
type Decision struct {
	Action  intent.ActionType
	Utility float64
}

// utilityInputs bundles everything the eleven utility formulas in spec.md
// §4.4 step 4 read.
type utilityInputs struct {
	risk           Risk
	volatility     float64
	stressBelief   float64 // E[liquidity stress]
	liveNeighbors  bool
	stressed       bool
}

// utilityFns evaluates every action's utility, with -Inf for a failed guard.
// The returned map carries no order: SelectAction walks
// intent.BankActionOrder, so within one bank, ties across its own action
// candidates break by that slice's order (spec.md §4.2: "ties are broken by
// the scheduler's fixed agent iteration order, not by emission time").
func (b *Bank) utilityFns(in utilityInputs) map[intent.ActionType]float64 {
	liq := b.Liquidity
	cap_ := b.Capital

	u := make(map[intent.ActionType]float64, len(intent.BankActionOrder))

	// REPAY_INTERBANK_LOAN
	if b.hasLoansDue() {
		u[intent.ActionRepayInterbankLoan] = 60 + 20*in.risk.RepayUrgency
	} else {
		u[intent.ActionRepayInterbankLoan] = negInf
	}

	// DECLARE_DEFAULT
	if liq < 5 && cap_ < 10 {
		recoveryProb := math.Max(0, liq/50+cap_/100)
		u[intent.ActionDeclareDefault] = math.Max(0, (1-recoveryProb)*30-15)
	} else {
		u[intent.ActionDeclareDefault] = negInf
	}

	// DEPOSIT_DEFAULT_FUND
	if liq > 80 && in.stressBelief < 0.2 && !in.stressed {
		u[intent.ActionDepositDefaultFund] = 5 + (liq-80)*0.1
	} else {
		u[intent.ActionDepositDefaultFund] = negInf
	}

	// PROVIDE_INTERBANK_CREDIT
	if in.liveNeighbors && liq > 100 {
		u[intent.ActionProvideInterbankCredit] = math.Max(0, (liq-100)*0.3-0.5*in.risk.ExpectedLoss-5*in.stressBelief)
	} else {
		u[intent.ActionProvideInterbankCredit] = negInf
	}

	// FIRE_SALE_ASSET
	if b.TotalAssets() > 0 && (in.risk.LiquidityShortfall > 5 || in.risk.MarginUrgency > 0.5 || liq < 15) {
		u[intent.ActionFireSaleAsset] = 5*in.risk.LiquidityShortfall + 4*in.risk.MarginUrgency + math.Max(0, (20-liq)*0.8) + 2*in.volatility
	} else {
		u[intent.ActionFireSaleAsset] = negInf
	}

	// pay_margin_call
	if len(b.PendingMarginCalls) > 0 {
		u[intent.ActionPayMarginCall] = 50 + 20*in.risk.MarginUrgency
	} else {
		u[intent.ActionPayMarginCall] = negInf
	}

	// sell_asset_standard
	if b.Assets[AssetLiquidBond] > 0 {
		u[intent.ActionSellAssetStandard] = 3*in.risk.LiquidityShortfall + 2*in.volatility + 1.5*in.risk.MarginUrgency + math.Max(0, (30-liq)*0.3)
	} else {
		u[intent.ActionSellAssetStandard] = negInf
	}

	// hoard_liquidity — always available
	u[intent.ActionHoardLiquidity] = 2*in.risk.LiquidityShortfall + 3*in.stressBelief + 1*in.volatility

	// reduce_exposure — always available
	u[intent.ActionReduceExposure] = 1.5*in.risk.ExpectedLoss + 1*b.Beliefs.MarginExpected.Mean() + 0.5*in.volatility

	// borrow
	denom := liq
	if denom < 1 {
		denom = 1
	}
	if cap_/denom > 1 {
		u[intent.ActionBorrow] = math.Max(0, (40-liq)*0.5)
	} else {
		u[intent.ActionBorrow] = 0
	}

	// route_otc_proposal — always available
	u[intent.ActionRouteOTCProposal] = math.Max(0, (liq-80)*0.4-in.risk.ExpectedLoss-10*in.stressBelief-5*in.volatility)

	return u
}

func (b *Bank) hasLoansDue() bool {
	return len(b.InterbankLoansReceived) > 0
}

// SelectAction runs the expected-utility argmax with enumeration-order
// tie-breaking (spec.md §4.4 step 4).
func (b *Bank) SelectAction(in utilityInputs) Decision {
	utils := b.utilityFns(in)

	best := intent.BankActionOrder[0]
	bestUtil := negInf
	for _, a := range intent.BankActionOrder {
		v := utils[a]
		if v > bestUtil {
			bestUtil = v
			best = a
		}
	}
	return Decision{Action: best, Utility: bestUtil}
}
