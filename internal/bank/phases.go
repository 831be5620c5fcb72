package bank

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/paynet/interbank-ccp/internal/intent"
)

// StepConfig holds the configuration knobs the per-tick pipeline needs
// (spec.md §6).
type StepConfig struct {
	MinLiquidity      float64
	StepOperatingCost float64
}

// StepResult reports what happened this tick, for the scheduler's metrics
// and default-waterfall trigger.
type StepResult struct {
	Emitted       intent.Envelope
	JustDefaulted bool
	ActionTaken   intent.ActionType
	// NeighborDefaults holds any OTC counterparty this bank's own
	// settlement pass pushed into default this tick (spec.md §4.4 step 6
	// happens inside the lender's Step, so a borrower default it causes
	// surfaces here rather than from the borrower's own Step call).
	NeighborDefaults []*Bank
}

// ApplyShock applies the scheduler's exogenous shock to this bank (spec.md
// §4.6 step 1): lose intensity fraction of liquidity and 0.8x that from
// capital, marked stressed.
func (b *Bank) ApplyShock(intensity float64) {
	if b.Defaulted {
		return
	}
	liqLoss := b.Liquidity * intensity
	capLoss := liqLoss * 0.8
	b.Liquidity -= liqLoss
	b.Capital -= capLoss
	b.Stressed = true
}

// Step runs the full per-tick pipeline (spec.md §4.4): ingest, belief
// update, risk compute, action selection, emit+self-execute, loan aging,
// default check.
func (b *Bank) Step(ctx context.Context, store fabric.Store, reg *Registry, tick int, cfg StepConfig, eff Effects) (StepResult, error) {
	if b.Defaulted {
		return StepResult{}, nil
	}
	b.MissedPaymentThisTick = false

	obs, err := b.ingest(ctx, store, tick)
	if err != nil {
		return StepResult{}, fmt.Errorf("bank %s: ingest: %w", b.ID, err)
	}

	b.updateBeliefs(obs)

	risk := b.ComputeRisk(tick, cfg.MinLiquidity)

	decision := b.SelectAction(utilityInputs{
		risk:          risk,
		volatility:    obs.volatility,
		stressBelief:  b.Beliefs.LiquidityStress.Mean(),
		liveNeighbors: b.hasLiveNeighbor(reg),
		stressed:      b.Stressed,
	})

	// Every bank pays its running cost regardless of which action it picks,
	// before that action's own balance-sheet effect (spec.md §6
	// step_operating_cost).
	b.Liquidity -= cfg.StepOperatingCost

	eff.Tick = tick
	eff.Volatility = obs.volatility
	env, err := b.Execute(ctx, decision.Action, eff)
	if err != nil {
		return StepResult{}, fmt.Errorf("bank %s: execute %s: %w", b.ID, decision.Action, err)
	}
	if env.IntentID != "" {
		b.LastIntent = &env
		if err := fabric.Publish(ctx, store, env); err != nil {
			return StepResult{}, fmt.Errorf("bank %s: publish intent: %w", b.ID, err)
		}
	}

	b.ageLoans(tick, reg)

	// OTC settlement (the principal transfer, not just tenor decrement) runs
	// inside this bank's own Step, before the default check below, so a
	// lender that is otherwise underwater still receives a maturing
	// repayment in time to be saved by it, and any counterparty it debits
	// below zero is checked for default immediately rather than a tick late
	// (spec.md §4.4 steps 6-7).
	neighborDefaults := b.SettleOTCLoans(reg)

	// Execute may already have invoked Default() directly (DECLARE_DEFAULT);
	// otherwise a numeric underflow of liquidity/capital triggers it here
	// (spec.md §4.4 step 7, §7 error kind 4).
	if !b.Defaulted && (b.Liquidity <= 0 || b.Capital <= 0) {
		b.Default()
	}

	return StepResult{
		Emitted:          env,
		JustDefaulted:    b.Defaulted,
		ActionTaken:      decision.Action,
		NeighborDefaults: neighborDefaults,
	}, nil
}

func (b *Bank) hasLiveNeighbor(reg *Registry) bool {
	for _, idx := range b.Neighbors {
		if nb, ok := reg.ByIndex(idx); ok && !nb.Defaulted {
			return true
		}
	}
	return false
}

// ageLoans decrements OTC loan tenors and force-settles overdue interbank
// loans (spec.md §4.4 step 6). OTC principal transfer itself is handled by
// SettleOTCLoans, called right after this from Step.
func (b *Bank) ageLoans(tick int, reg *Registry) {
	for i := range b.OTCLoansGiven {
		b.OTCLoansGiven[i].RemainingTicks--
	}

	remaining := b.InterbankLoansReceived[:0]
	for _, loan := range b.InterbankLoansReceived {
		if tick > loan.MaturityTick+2 {
			forced := math.Max(0, math.Min(loan.Principal*(1+loan.Rate), 0.8*b.Liquidity))
			b.Liquidity -= forced
			b.MissedPaymentThisTick = true
			if lender, ok := reg.ByID(loan.Lender); ok {
				lender.Liquidity += forced
				lender.InterbankLoansGiven = removeLoan(lender.InterbankLoansGiven, loan.ID)
			}
			continue
		}
		remaining = append(remaining, loan)
	}
	b.InterbankLoansReceived = remaining
}

// SettleOTCLoans transfers matured OTC loan principal+interest from target
// to self, or recovers a partial amount on missed payment (spec.md §4.4
// step 6). A target driven to or past zero by this transfer is defaulted
// immediately rather than left to be discovered on its own next Step, and
// is returned so the caller's tick-level default bookkeeping (the CCP
// waterfall trigger) picks it up even though it happened inside this
// bank's Step, not the target's.
func (b *Bank) SettleOTCLoans(reg *Registry) []*Bank {
	var defaulted []*Bank
	remaining := b.OTCLoansGiven[:0]
	for _, loan := range b.OTCLoansGiven {
		if loan.RemainingTicks > 0 {
			remaining = append(remaining, loan)
			continue
		}
		target, ok := reg.ByIndex(loan.Target)
		if !ok || target.Defaulted {
			// loan is written off against a defaulted or unknown target and
			// dropped from the book either way.
			continue
		}
		owed := loan.Principal * (1 + loan.Rate)
		if target.Liquidity >= owed {
			target.Liquidity -= owed
			b.Liquidity += owed
		} else {
			recovered := target.Liquidity * 0.5
			target.Liquidity -= recovered
			b.Liquidity += recovered
			target.MissedPaymentThisTick = true
		}
		if !target.Defaulted && (target.Liquidity <= 0 || target.Capital <= 0) {
			target.Default()
			defaulted = append(defaulted, target)
		}
	}
	b.OTCLoansGiven = remaining
	return defaulted
}

// observations bundles what the ingest phase reads from the fabric.
type observations struct {
	marginCalls      []intent.Envelope
	publicPrevTick   []intent.Envelope
	privateInbox     []intent.Envelope
	volatility       float64
	marketDepth      float64
	stressedFraction float64
	sellVolume       float64
	neighborSignals  map[int]float64
	systemMarginRate float64
}

func (b *Bank) ingest(ctx context.Context, store fabric.Store, tick int) (observations, error) {
	marginCalls, err := fabric.DrainMarginCalls(ctx, store, b.ID)
	if err != nil {
		return observations{}, err
	}
	b.PendingMarginCalls = append(b.PendingMarginCalls, marginCalls...)

	var publicPrev []intent.Envelope
	if tick > 1 {
		publicPrev, err = fabric.ReadPublic(ctx, store, tick-1)
		if err != nil {
			return observations{}, err
		}
	}

	private, err := fabric.DrainPrivate(ctx, store, b.ID)
	if err != nil {
		return observations{}, err
	}

	market, _, err := store.HashGet(ctx, fabric.MarketLatestKey())
	if err != nil {
		return observations{}, err
	}

	depth, _, err := store.StringGet(ctx, fabric.MarketDepthKey())
	if err != nil {
		return observations{}, err
	}
	depthVal, _ := parseFloatLocal(depth)

	stressedFrac, _, err := store.StringGet(ctx, fabric.SystemKey("stressed_fraction"))
	if err != nil {
		return observations{}, err
	}
	stressedVal, _ := parseFloatLocal(stressedFrac)

	marginRateStr, _, err := store.StringGet(ctx, fabric.SystemKey("margin_rate"))
	if err != nil {
		return observations{}, err
	}
	marginRateVal, _ := parseFloatLocal(marginRateStr)

	var sellVolume float64
	for _, env := range publicPrev {
		if env.ActionType == intent.ActionSellAssetStandard || env.ActionType == intent.ActionFireSaleAsset {
			if amt, ok := env.Payload.PayloadFloat("amount"); ok {
				sellVolume += amt
			}
			if qty, ok := env.Payload.PayloadFloat("quantity"); ok {
				sellVolume += qty
			}
		}
	}

	neighborSignals := make(map[int]float64, len(b.Neighbors))
	for _, idx := range b.Neighbors {
		neighborSignals[idx] = b.neighborSignal(ctx, store, idx)
	}

	return observations{
		marginCalls:      marginCalls,
		publicPrevTick:   publicPrev,
		privateInbox:     private,
		volatility:       market["volatility"],
		marketDepth:      depthVal,
		stressedFraction: stressedVal,
		sellVolume:       sellVolume,
		neighborSignals:  neighborSignals,
		systemMarginRate: marginRateVal,
	}, nil
}

// neighborSignal reads a neighbour's state snapshot from the fabric
// (bank:{i}:state, published by the scheduler at the start of the tick
// from the previous tick's end-state) and maps it to the observable
// scalar signal of spec.md §4.4 step 2.
func (b *Bank) neighborSignal(ctx context.Context, store fabric.Store, neighborIndex int) float64 {
	fields, ok, err := store.HashGet(ctx, fabric.BankStateKey(neighborID(neighborIndex)))
	if err != nil || !ok {
		return 0
	}
	if fields["defaulted"] >= 1 {
		return 1.0
	}
	if fields["stressed"] >= 1 {
		return 0.7
	}
	if fields["missed_payment"] >= 1 {
		return 0.5
	}
	if fields["liquidity"] < 40 {
		return 0.2
	}
	return 0
}

// neighborID reproduces the scheduler's bank id naming (spec.md §3:
// "bank_NN") from an integer index, so a bank can look up a neighbour's
// state key without holding a live pointer to it.
func neighborID(index int) string {
	return IDFromIndex(index)
}

// IDFromIndex is the canonical "bank_NN" naming the scheduler uses when
// constructing the population (spec.md §3), exported so callers outside
// this package never need to duplicate the format string.
func IDFromIndex(index int) string {
	return fmt.Sprintf("bank_%02d", index)
}

func parseFloatLocal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
