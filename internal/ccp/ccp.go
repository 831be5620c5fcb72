// Package ccp implements the central counterparty: a strategic singleton
// that margins, panics, and mutualises losses across the bank population.
// Grounded on original_source/model/agents/CCPAgent.py.
package ccp

import (
	"context"
	"fmt"
	"math"

	"github.com/paynet/interbank-ccp/internal/bank"
	"github.com/paynet/interbank-ccp/internal/config"
	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/paynet/interbank-ccp/internal/intent"
)

const agentID = "ccp_01"

// CCP is the singleton central counterparty (spec.md §3).
type CCP struct {
	DefaultFund         float64
	BaseMargin          float64
	MarginSensitivity   float64
	CurrentMarginRate   float64
	PanicMode           bool
	SafeMultiplier      float64
	MarginCallThreshold float64
	baselineThreshold   float64
	StressThreshold     float64

	W1, W2, W3, W4 float64

	// Private vantage (spec.md §4.5: "information asymmetry" — banks never
	// see these directly, only the published margin rate).
	TotalExposure      float64
	MemberRiskScores   map[int]float64
	FireSaleVolume     float64
	NumDefaultsThisTick int

	// Running time series for the scheduler's tick report.
	UtilityHistory     []float64
	MarginRateHistory  []float64
	PanicModeHistory   []bool
	DefaultFundHistory []float64
}

// New constructs a CCP from the simulation configuration.
func New(cfg config.Config) *CCP {
	return &CCP{
		DefaultFund:         cfg.CCPInitialDefaultFund,
		BaseMargin:          cfg.CCPBaseMargin,
		MarginSensitivity:   cfg.CCPMarginSensitivity,
		CurrentMarginRate:   cfg.CCPBaseMargin,
		SafeMultiplier:      cfg.CCPSafeMultiplier,
		MarginCallThreshold: cfg.MarginCallThreshold,
		baselineThreshold:   cfg.MarginCallThreshold,
		StressThreshold:     cfg.StressThreshold,
		W1:                  cfg.CCPW1,
		W2:                  cfg.CCPW2,
		W3:                  cfg.CCPW3,
		W4:                  cfg.CCPW4,
		MemberRiskScores:    make(map[int]float64),
	}
}

// SafeLimit is the maximum acceptable total exposure (spec.md §4.5).
func (c *CCP) SafeLimit() float64 {
	return c.DefaultFund * c.SafeMultiplier
}

// StepResult reports what the CCP did this tick.
type StepResult struct {
	MarginCallsIssued int
	Utility           float64
}

// Step runs the full CCP decision cycle (spec.md §4.5, in order): observe,
// update margin rate, check panic mode, compute risk scores, issue margin
// calls, publish the margin rate, compute utility.
func (c *CCP) Step(ctx context.Context, store fabric.Store, reg *bank.Registry, tick int, volatility float64) (StepResult, error) {
	c.observe(reg)
	c.updateMarginRate(volatility)
	c.checkPanicMode()
	c.computeRiskScores(reg)

	n, err := c.issueMarginCalls(ctx, store, reg, tick)
	if err != nil {
		return StepResult{}, fmt.Errorf("ccp: issue margin calls: %w", err)
	}

	if err := c.publishMarginRate(ctx, store); err != nil {
		return StepResult{}, fmt.Errorf("ccp: publish margin rate: %w", err)
	}

	utility := c.computeUtility(reg)
	c.recordMetrics(utility)

	return StepResult{MarginCallsIssued: n, Utility: utility}, nil
}

// observe gathers the CCP's private vantage over the network (spec.md §4.5
// step 1).
func (c *CCP) observe(reg *bank.Registry) {
	c.TotalExposure = 0
	c.FireSaleVolume = 0
	c.NumDefaultsThisTick = 0

	for _, b := range reg.InOrder() {
		if b.Defaulted {
			c.NumDefaultsThisTick++
			continue
		}
		c.TotalExposure += b.TotalExposure()
		if b.LastIntent != nil && b.LastIntent.ActionType == intent.ActionFireSaleAsset {
			if qty, ok := b.LastIntent.Payload.PayloadFloat("quantity"); ok {
				c.FireSaleVolume += qty
			}
		}
	}
}

// updateMarginRate strategically adjusts the margin rate from volatility
// (spec.md §4.5 step 2).
func (c *CCP) updateMarginRate(volatility float64) {
	rate := c.BaseMargin + volatility*c.MarginSensitivity
	if c.PanicMode {
		rate *= 1.5
	}
	c.CurrentMarginRate = clamp(rate, 0.02, 0.30)
}

// checkPanicMode flips panic state and adjusts the margin-call threshold on
// the transition edge (spec.md §4.5 step 3).
func (c *CCP) checkPanicMode() {
	wasPanic := c.PanicMode
	c.PanicMode = c.TotalExposure > c.SafeLimit()

	switch {
	case c.PanicMode && !wasPanic:
		c.MarginCallThreshold = math.Max(0.2, c.MarginCallThreshold*0.6)
	case !c.PanicMode && wasPanic:
		c.MarginCallThreshold = math.Min(c.baselineThreshold, c.MarginCallThreshold*1.2)
	}
}

// computeRiskScores scores every bank's systemic risk (spec.md §4.5 step 4).
// Defaulted banks score 1.0; this is private CCP information never exposed
// to the bank itself.
func (c *CCP) computeRiskScores(reg *bank.Registry) {
	for _, b := range reg.InOrder() {
		if b.Defaulted {
			c.MemberRiskScores[b.Index] = 1.0
			continue
		}
		cap := math.Max(b.Capital, 1.0)
		liq := math.Max(b.Liquidity, 0.0)
		stressThresh := math.Max(c.StressThreshold, 1.0)

		expRatio := b.TotalExposure() / cap
		liqScore := math.Max(0, 1.0-liq/stressThresh)
		stressFlag := 0.0
		if b.Stressed {
			stressFlag = 1.0
		}

		score := 0.5*math.Min(expRatio, 3.0)/3.0 + 0.3*liqScore + 0.2*stressFlag
		c.MemberRiskScores[b.Index] = math.Min(1.0, score)
	}
}

// issueMarginCalls emits issue_margin_call intents to every bank whose
// exposure/capital ratio breaches the threshold (spec.md §4.5 step 5).
func (c *CCP) issueMarginCalls(ctx context.Context, store fabric.Store, reg *bank.Registry, tick int) (int, error) {
	n := 0
	deadline := tick + 2
	reason := "exposure_ratio_breach"
	if c.PanicMode {
		deadline = tick + 1
		reason = "panic_mode_breach"
	}

	for _, b := range reg.InOrder() {
		if b.Defaulted {
			continue
		}
		ratio := b.TotalExposure() / math.Max(b.Capital, 1)
		if ratio <= c.MarginCallThreshold {
			continue
		}

		riskScore := c.MemberRiskScores[b.Index]
		amount := b.TotalExposure() * c.CurrentMarginRate * (1.0 + 0.5*riskScore)

		env := intent.New(tick, agentID, intent.ActionIssueMarginCall, intent.Private, intent.Payload{
			"target_agent_id": b.ID,
			"margin_amount":   amount,
			"deadline_tick":   deadline,
			"reason":          reason,
		})
		if err := fabric.PublishMarginCall(ctx, store, env, b.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// publishMarginRate writes the only CCP signal visible to banks (spec.md
// §4.5 step 6).
func (c *CCP) publishMarginRate(ctx context.Context, store fabric.Store) error {
	return store.StringSet(ctx, fabric.SystemKey("margin_rate"), formatFloat(c.CurrentMarginRate))
}

// computeUtility evaluates the CCP's strategic objective (spec.md §4.5
// step 7).
func (c *CCP) computeUtility(reg *bank.Registry) float64 {
	panicPenalty := 0.0
	if c.PanicMode {
		panicPenalty = 1.0
	}

	fundRatio := math.Min(c.DefaultFund/math.Max(c.SafeLimit(), 1.0), 1.0)

	banks := reg.InOrder()
	nBanks := math.Max(float64(len(banks)), 1)
	normDefaults := float64(c.NumDefaultsThisTick) / nBanks

	totalLiq := 0.0
	for _, b := range banks {
		if !b.Defaulted {
			totalLiq += b.Liquidity
		}
	}
	normFireSale := math.Min(c.FireSaleVolume/math.Max(totalLiq, 1.0), 1.0)

	return c.W1*(1.0-panicPenalty) + c.W2*fundRatio - c.W3*normDefaults - c.W4*normFireSale
}

func (c *CCP) recordMetrics(utility float64) {
	c.UtilityHistory = append(c.UtilityHistory, utility)
	c.MarginRateHistory = append(c.MarginRateHistory, c.CurrentMarginRate)
	c.PanicModeHistory = append(c.PanicModeHistory, c.PanicMode)
	c.DefaultFundHistory = append(c.DefaultFundHistory, c.DefaultFund)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
