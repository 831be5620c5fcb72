// Package bank implements the Bank agent: balance-sheet state, private
// Bayesian beliefs, and the per-tick decide/execute pipeline (spec.md §3,
// §4.4). Grounded on original_source/model/agents/BankAgent.py.
package bank

import (
	"github.com/paynet/interbank-ccp/internal/belief"
	"github.com/paynet/interbank-ccp/internal/intent"
)

// Asset identifiers (spec.md §3: "standard types liquid_bond, illiquid_asset").
const (
	AssetLiquidBond   = "liquid_bond"
	AssetIlliquid     = "illiquid_asset"
)

// OTCLoan is a CCP-routed OTC loan this bank has extended to a neighbour
// (spec.md §3: "ordered sequence; each: loan id, target, principal, rate,
// remaining ticks").
type OTCLoan struct {
	ID             string
	Target         int
	Principal      float64
	Rate           float64
	RemainingTicks int
}

// InterbankLoan is a direct bilateral loan (spec.md §3: "loan id, borrower,
// lender, principal, interest rate, maturity tick").
type InterbankLoan struct {
	ID           string
	Borrower     string
	Lender       string
	Principal    float64
	Rate         float64
	MaturityTick int
}

// Bank is the full per-agent state (spec.md §3).
type Bank struct {
	ID    string
	Index int

	Liquidity float64
	Capital   float64
	Assets    map[string]float64

	// Exposure maps neighbour bank index to outstanding lent amount
	// (spec.md §9: "store exposures as a mapping keyed on the
	// counterparty's integer index").
	Exposure map[int]float64

	PendingMarginCalls      []intent.Envelope
	OTCLoansGiven           []OTCLoan
	InterbankLoansGiven     []InterbankLoan
	InterbankLoansReceived  []InterbankLoan
	DefaultFundContribution float64

	Beliefs belief.Channels

	Defaulted              bool
	Stressed               bool
	MissedPaymentThisTick  bool

	LastIntent *intent.Envelope

	Neighbors []int
}

// New constructs a bank with the given initial balance sheet and neighbour
// set, with beliefs initialised to the configured priors (spec.md §4.6).
func New(id string, index int, liquidity, capital, liquidBond, illiquid float64, neighbors []int) *Bank {
	return &Bank{
		ID:        id,
		Index:     index,
		Liquidity: liquidity,
		Capital:   capital,
		Assets: map[string]float64{
			AssetLiquidBond: liquidBond,
			AssetIlliquid:   illiquid,
		},
		Exposure:  make(map[int]float64),
		Beliefs:   belief.NewChannels(neighbors),
		Neighbors: neighbors,
	}
}

// TotalExposure sums this bank's exposure to every neighbour (spec.md §3
// invariant: total_exposure(B) = Σ exposure_to_neighbors(B)).
func (b *Bank) TotalExposure() float64 {
	var total float64
	for _, v := range b.Exposure {
		total += v
	}
	return total
}

// TotalAssets sums every asset holding.
func (b *Bank) TotalAssets() float64 {
	var total float64
	for _, v := range b.Assets {
		total += v
	}
	return total
}

// TotalMarginDue sums the amounts of every pending margin call.
func (b *Bank) TotalMarginDue() float64 {
	var total float64
	for _, call := range b.PendingMarginCalls {
		if amt, ok := call.Payload.PayloadFloat("margin_amount"); ok {
			total += amt
		}
	}
	return total
}

// TotalRepaymentDue sums principal+interest for every received interbank
// loan already at or past maturity.
func (b *Bank) TotalRepaymentDue(tick int) float64 {
	var total float64
	for _, l := range b.InterbankLoansReceived {
		if tick >= l.MaturityTick {
			total += l.Principal * (1 + l.Rate)
		}
	}
	return total
}
