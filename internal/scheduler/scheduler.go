package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/paynet/interbank-ccp/internal/bank"
	"github.com/paynet/interbank-ccp/internal/ccp"
	"github.com/paynet/interbank-ccp/internal/fabric"
)

// Run executes ticks 1..Steps (spec.md §4.6 "Per tick"), then finalizes the
// run (summary report, optional graph-sink persistence, fabric flush).
func (s *Scheduler) Run(ctx context.Context) error {
	runID := fmt.Sprintf("run-seed-%d", s.cfg.Seed)
	if err := s.sink.RecordRun(ctx, runID, s.cfg.NBanks); err != nil {
		log.Printf("[scheduler] graphsink record run: %v", err)
	}
	for _, b := range s.registry.InOrder() {
		if err := s.sink.RecordBank(ctx, runID, b.ID, idsOf(b.Neighbors)); err != nil {
			log.Printf("[scheduler] graphsink record bank %s: %v", b.ID, err)
		}
	}

	for t := 1; t <= s.cfg.Steps; t++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.runTick(ctx, t, runID); err != nil {
			return fmt.Errorf("scheduler: tick %d: %w", t, err)
		}
	}

	s.finalize()
	if err := s.sink.Close(ctx); err != nil {
		log.Printf("[scheduler] graphsink close: %v", err)
	}
	return s.store.Flush(ctx)
}

func (s *Scheduler) runTick(ctx context.Context, t int, runID string) error {
	s.tick = t

	s.applyShock(t)

	if err := s.publishSnapshot(ctx, t); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	if _, err := s.exchange.Step(ctx, s.store, t); err != nil {
		return fmt.Errorf("exchange step: %w", err)
	}
	volatility := s.exchange.Latest().Volatility

	ccpResult, err := s.ccp.Step(ctx, s.store, s.registry, t, volatility)
	if err != nil {
		return fmt.Errorf("ccp step: %w", err)
	}

	defaultedThisTick := make([]*bank.Bank, 0)
	stepCfg := bank.StepConfig{MinLiquidity: s.cfg.MinLiquidity, StepOperatingCost: s.cfg.StepOperatingCost}

	for _, b := range s.registry.InOrder() {
		if b.Defaulted {
			continue
		}
		eff := bank.Effects{
			Store:       s.store,
			Registry:    s.registry,
			MarketDepth: s.cfg.MarketDepth,
			DefaultFund: &s.ccp.DefaultFund,
		}
		result, err := b.Step(ctx, s.store, s.registry, t, stepCfg, eff)
		if err != nil {
			return fmt.Errorf("bank %s step: %w", b.ID, err)
		}
		if s.metrics != nil {
			s.metrics.ActionsEmitted.WithLabelValues(string(result.ActionTaken)).Inc()
		}
		if s.mirror != nil && result.Emitted.IntentID != "" {
			s.mirror.Publish(ctx, result.Emitted)
		}
		if err := s.sink.RecordIntent(ctx, runID, result.Emitted.IntentID, b.ID, string(result.ActionTaken), t); err != nil {
			log.Printf("[scheduler] graphsink record intent: %v", err)
		}
		if result.JustDefaulted {
			defaultedThisTick = append(defaultedThisTick, b)
		}
		// A bank's own OTC settlement pass (run inside its Step, spec.md
		// §4.4 step 6) may have pushed a counterparty into default; that
		// counterparty never runs its own Step this tick once it already
		// has (it's skipped above), so it would otherwise never reach the
		// CCP waterfall this tick.
		for _, nb := range result.NeighborDefaults {
			defaultedThisTick = append(defaultedThisTick, nb)
		}
	}

	for _, b := range defaultedThisTick {
		s.ccp.HandleBankDefault(s.registry, b)
		if err := s.sink.RecordDefault(ctx, runID, b.ID, t); err != nil {
			log.Printf("[scheduler] graphsink record default: %v", err)
		}
	}

	s.recordTickMetrics(t, ccpResult, len(defaultedThisTick))
	if s.onTick != nil {
		s.onTick(t)
	}
	return s.sink.RecordTick(ctx, runID, t)
}

// applyShock hits a random subset of non-defaulted banks at the configured
// shock tick (spec.md §4.6 step 1).
func (s *Scheduler) applyShock(t int) {
	if s.cfg.ShockStep == 0 || t != s.cfg.ShockStep {
		return
	}
	for _, b := range s.registry.InOrder() {
		if b.Defaulted {
			continue
		}
		if s.rng.Float64() < s.cfg.ShockFraction {
			b.ApplyShock(s.cfg.ShockIntensity)
		}
	}
}

// publishSnapshot writes every bank's end-of-previous-tick state and the
// scheduler-owned system aggregates to the fabric (spec.md §4.6 step 2).
// This MUST happen before any bank in this tick ingests — belief updates
// observe this snapshot, never a live in-memory neighbour, so within-tick
// processing order never leaks into what a bank can see (spec.md §5
// "Ordering guarantees").
func (s *Scheduler) publishSnapshot(ctx context.Context, t int) error {
	active := 0
	stressed := 0
	for _, b := range s.registry.InOrder() {
		fields := map[string]float64{
			"liquidity": b.Liquidity,
			"capital":   b.Capital,
		}
		if b.Defaulted {
			fields["defaulted"] = 1
		}
		if b.Stressed {
			fields["stressed"] = 1
		}
		if b.MissedPaymentThisTick {
			fields["missed_payment"] = 1
		}
		if err := s.store.HashSet(ctx, fabric.BankStateKey(b.ID), fields); err != nil {
			return err
		}
		if !b.Defaulted {
			active++
			if b.Stressed {
				stressed++
			}
		}
	}

	fraction := 0.0
	if active > 0 {
		fraction = float64(stressed) / float64(active)
	}
	return s.store.StringSet(ctx, fabric.SystemKey("stressed_fraction"), formatFloat(fraction))
}

func (s *Scheduler) recordTickMetrics(t int, ccpResult ccp.StepResult, defaultsThisTick int) {
	active := s.registry.ActiveCount()
	totalExposure := 0.0
	for _, b := range s.registry.InOrder() {
		totalExposure += b.TotalExposure()
	}

	s.Summary.TicksRun = t
	s.Summary.DefaultsTotal += defaultsThisTick
	s.Summary.FinalActiveBanks = active
	s.Summary.FinalTotalExposure = totalExposure
	if s.ccp.PanicMode {
		s.Summary.PanicModeTicks++
	}
	freeze := active > 0 && float64(countStressed(s.registry))/float64(active) > 0.5
	if freeze {
		s.Summary.FreezeEvents++
	}

	if s.metrics == nil {
		return
	}
	s.metrics.Tick.Set(float64(t))
	s.metrics.ActiveBanks.Set(float64(active))
	s.metrics.DefaultsTotal.Add(float64(defaultsThisTick))
	if freeze {
		s.metrics.FreezeEvents.Inc()
	}
	s.metrics.CCPMarginRate.Set(s.ccp.CurrentMarginRate)
	s.metrics.CCPDefaultFund.Set(s.ccp.DefaultFund)
	s.metrics.CCPFireSaleVolume.Set(s.ccp.FireSaleVolume)
	s.metrics.CCPUtility.Set(ccpResult.Utility)
	panicVal := 0.0
	if s.ccp.PanicMode {
		panicVal = 1.0
	}
	s.metrics.CCPPanicMode.Set(panicVal)
}

func countStressed(reg *bank.Registry) int {
	n := 0
	for _, b := range reg.InOrder() {
		if !b.Defaulted && b.Stressed {
			n++
		}
	}
	return n
}

func (s *Scheduler) finalize() {
	log.Printf("[scheduler] run complete: ticks=%d defaults=%d active=%d freeze_events=%d panic_ticks=%d total_exposure=%.2f",
		s.Summary.TicksRun, s.Summary.DefaultsTotal, s.Summary.FinalActiveBanks,
		s.Summary.FreezeEvents, s.Summary.PanicModeTicks, s.Summary.FinalTotalExposure)
}

func idsOf(indices []int) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = bank.IDFromIndex(idx)
	}
	return out
}
