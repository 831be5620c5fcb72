package bank

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/paynet/interbank-ccp/internal/exchange"
	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/paynet/interbank-ccp/internal/intent"
)

// Effects bundles everything the self-execute phase needs beyond the two
// counterparties themselves (spec.md §4.4 step 5): the fabric for sale
// pricing, the prevailing market snapshot, and the CCP's default-fund
// sink for deposits.
type Effects struct {
	Store       fabric.Store
	Registry    *Registry
	MarketDepth float64
	Volatility  float64
	Tick        int
	DefaultFund *float64 // CCP.DefaultFund, mutated on DEPOSIT_DEFAULT_FUND
}

// Execute applies the chosen action's balance-sheet effect to self and the
// counterparty, exactly as specified (spec.md §4.4 "Execution effects").
// It returns the emitted intent so the caller can publish it to the fabric.
func (b *Bank) Execute(ctx context.Context, action intent.ActionType, eff Effects) (intent.Envelope, error) {
	switch action {
	case intent.ActionRouteOTCProposal:
		return b.executeOTCProposal(eff)
	case intent.ActionBorrow:
		return b.executeBorrow(eff)
	case intent.ActionReduceExposure:
		return b.executeReduceExposure(eff)
	case intent.ActionHoardLiquidity:
		return b.executeHoard(eff)
	case intent.ActionPayMarginCall:
		return b.executePayMarginCall(eff)
	case intent.ActionSellAssetStandard:
		return b.executeSell(ctx, eff, exchange.SaleStandard, intent.ActionSellAssetStandard)
	case intent.ActionFireSaleAsset:
		return b.executeSell(ctx, eff, exchange.SaleFire, intent.ActionFireSaleAsset)
	case intent.ActionProvideInterbankCredit:
		return b.executeProvideCredit(eff)
	case intent.ActionRepayInterbankLoan:
		return b.executeRepay(eff)
	case intent.ActionDeclareDefault:
		return b.executeDeclareDefault(eff)
	case intent.ActionDepositDefaultFund:
		return b.executeDepositDefaultFund(eff)
	default:
		return intent.Envelope{}, nil
	}
}

func (b *Bank) executeOTCProposal(eff Effects) (intent.Envelope, error) {
	target, ok := b.bestNeighbor(eff.Registry)
	env := intent.New(eff.Tick, b.ID, intent.ActionRouteOTCProposal, intent.Private, intent.Payload{
		"target_agent_id": "",
	})
	if !ok {
		return env, nil
	}
	amount := math.Min(20, b.Liquidity*0.1)
	rate := 0.05
	tenor := 5

	b.Liquidity -= amount
	target.Liquidity += amount
	b.Exposure[target.Index] += amount

	loan := OTCLoan{ID: uuid.NewString(), Target: target.Index, Principal: amount, Rate: rate, RemainingTicks: tenor}
	b.OTCLoansGiven = append(b.OTCLoansGiven, loan)

	env.Payload = intent.Payload{
		"target_agent_id": target.ID,
		"encrypted_content": map[string]any{
			"type": "otc_proposal", "amount": amount, "interest_rate": rate, "tenor_ticks": tenor,
		},
	}
	return env, nil
}

func (b *Bank) executeBorrow(eff Effects) (intent.Envelope, error) {
	lender, ok := b.bestNeighbor(eff.Registry)
	amount := math.Max(0, 40-b.Liquidity)
	env := intent.New(eff.Tick, b.ID, intent.ActionBorrow, intent.Private, intent.Payload{
		"amount": amount,
	})
	if !ok {
		b.MissedPaymentThisTick = true
		return env, nil
	}
	env.Payload["target_agent_id"] = lender.ID

	// Lender will only extend up to 10% of its own liquidity (spec.md §4.4
	// "only if lender has ≥ 0.10·lender.liquidity available").
	if amount > 0 && amount <= 0.10*lender.Liquidity {
		lender.Liquidity -= amount
		b.Liquidity += amount
	} else {
		b.MissedPaymentThisTick = true
	}
	return env, nil
}

func (b *Bank) executeReduceExposure(eff Effects) (intent.Envelope, error) {
	target, ok := b.largestExposureNeighbor(eff.Registry)
	env := intent.New(eff.Tick, b.ID, intent.ActionReduceExposure, intent.Private, intent.Payload{})
	if !ok {
		return env, nil
	}
	current := b.Exposure[target.Index]
	amount := math.Min(current*0.2, current)
	b.Exposure[target.Index] -= amount
	b.Liquidity += amount * 0.5

	env.Payload = intent.Payload{
		"target_agent_id":    target.ID,
		"target_neighbor_id": target.ID,
		"amount":             amount,
	}
	return env, nil
}

func (b *Bank) executeHoard(eff Effects) (intent.Envelope, error) {
	var recovered float64
	for idx, exposure := range b.Exposure {
		cut := exposure * 0.05
		b.Exposure[idx] -= cut
		recovered += cut * 0.30
	}
	b.Liquidity += recovered
	return intent.New(eff.Tick, b.ID, intent.ActionHoardLiquidity, intent.Private, intent.Payload{
		"estimated_recovery": recovered,
	}), nil
}

func (b *Bank) executePayMarginCall(eff Effects) (intent.Envelope, error) {
	if len(b.PendingMarginCalls) == 0 {
		return intent.Envelope{}, nil
	}
	call := b.PendingMarginCalls[0]
	amount, _ := call.Payload.PayloadFloat("margin_amount")
	callID := call.IntentID

	paid := math.Min(amount, 0.9*b.Liquidity)
	b.Liquidity -= paid
	b.Capital -= 0.10 * paid

	remaining := b.PendingMarginCalls[:0]
	for _, c := range b.PendingMarginCalls {
		if c.IntentID != callID {
			remaining = append(remaining, c)
		}
	}
	b.PendingMarginCalls = remaining

	return intent.New(eff.Tick, b.ID, intent.ActionPayMarginCall, intent.Private, intent.Payload{
		"amount":         paid,
		"margin_call_id": callID,
	}), nil
}

func (b *Bank) executeSell(ctx context.Context, eff Effects, kind exchange.SaleKind, action intent.ActionType) (intent.Envelope, error) {
	assetType := AssetLiquidBond
	holding := b.Assets[assetType]
	if holding <= 0 {
		for t, qty := range b.Assets {
			if qty > 0 {
				assetType = t
				holding = qty
				break
			}
		}
	}
	quantity := math.Min(holding, holding*0.3+1)

	price, err := exchange.Price(ctx, eff.Store, kind, eff.Tick, assetType, quantity, eff.Volatility, eff.MarketDepth)
	if err != nil {
		return intent.Envelope{}, err
	}
	b.Assets[assetType] -= quantity
	b.Liquidity += quantity * price

	payload := intent.Payload{
		"asset_type": assetType,
		"amount":     quantity,
		"order_type": "market",
	}
	if action == intent.ActionFireSaleAsset {
		payload = intent.Payload{
			"exchange_id":             "exchange",
			"asset_id":                assetType,
			"quantity":                quantity,
			"max_acceptable_discount": 0.5,
		}
	}
	return intent.New(eff.Tick, b.ID, action, intent.Public, payload), nil
}

func (b *Bank) executeProvideCredit(eff Effects) (intent.Envelope, error) {
	target, ok := b.bestNeighbor(eff.Registry)
	env := intent.New(eff.Tick, b.ID, intent.ActionProvideInterbankCredit, intent.Private, intent.Payload{})
	if !ok {
		return env, nil
	}
	principal := math.Min(30, 0.5*b.Liquidity)
	rate := 0.04
	maturity := eff.Tick + 5

	b.Liquidity -= principal
	target.Liquidity += principal

	loanID := uuid.NewString()
	b.InterbankLoansGiven = append(b.InterbankLoansGiven, InterbankLoan{
		ID: loanID, Borrower: target.ID, Lender: b.ID, Principal: principal, Rate: rate, MaturityTick: maturity,
	})
	target.InterbankLoansReceived = append(target.InterbankLoansReceived, InterbankLoan{
		ID: loanID, Borrower: target.ID, Lender: b.ID, Principal: principal, Rate: rate, MaturityTick: maturity,
	})

	env.Payload = intent.Payload{
		"borrower_bank_id": target.ID,
		"principal":        principal,
		"interest_rate":    rate,
		"maturity_tick":    maturity,
	}
	return env, nil
}

func (b *Bank) executeRepay(eff Effects) (intent.Envelope, error) {
	if len(b.InterbankLoansReceived) == 0 {
		return intent.Envelope{}, nil
	}
	loan := b.InterbankLoansReceived[0]
	owed := loan.Principal * (1 + loan.Rate)
	pay := math.Min(owed, 0.9*b.Liquidity)
	if pay < owed {
		b.MissedPaymentThisTick = true
	}
	b.Liquidity -= pay

	if lender, ok := eff.Registry.ByID(loan.Lender); ok {
		lender.Liquidity += pay
		lender.InterbankLoansGiven = removeLoan(lender.InterbankLoansGiven, loan.ID)
	}
	b.InterbankLoansReceived = removeLoan(b.InterbankLoansReceived, loan.ID)

	return intent.New(eff.Tick, b.ID, intent.ActionRepayInterbankLoan, intent.Public, intent.Payload{
		"loan_id":   loan.ID,
		"principal": loan.Principal,
		"interest":  loan.Principal * loan.Rate,
	}), nil
}

func (b *Bank) executeDeclareDefault(eff Effects) (intent.Envelope, error) {
	b.Default()
	return intent.New(eff.Tick, b.ID, intent.ActionDeclareDefault, intent.Public, intent.Payload{
		"reason": "voluntary",
	}), nil
}

func (b *Bank) executeDepositDefaultFund(eff Effects) (intent.Envelope, error) {
	amount := math.Min(20, 0.5*b.Liquidity)
	b.Liquidity -= amount
	b.DefaultFundContribution += amount
	if eff.DefaultFund != nil {
		*eff.DefaultFund += amount
	}
	return intent.New(eff.Tick, b.ID, intent.ActionDepositDefaultFund, intent.Public, intent.Payload{
		"amount": amount,
	}), nil
}

func removeLoan(loans []InterbankLoan, id string) []InterbankLoan {
	out := loans[:0]
	for _, l := range loans {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}

func (b *Bank) bestNeighbor(reg *Registry) (*Bank, bool) {
	var best *Bank
	for _, idx := range b.Neighbors {
		nb, ok := reg.ByIndex(idx)
		if !ok || nb.Defaulted || nb.ID == b.ID {
			continue
		}
		if best == nil || nb.Liquidity > best.Liquidity {
			best = nb
		}
	}
	return best, best != nil
}

func (b *Bank) largestExposureNeighbor(reg *Registry) (*Bank, bool) {
	var best *Bank
	var bestExposure float64
	for idx, exposure := range b.Exposure {
		if exposure <= bestExposure {
			continue
		}
		nb, ok := reg.ByIndex(idx)
		if !ok {
			continue
		}
		best = nb
		bestExposure = exposure
	}
	return best, best != nil
}
