package bank

import (
	"math"

	"github.com/paynet/interbank-ccp/internal/intent"
)

// updateBeliefs folds this tick's observations into the four private
// belief channels (spec.md §4.4 step 2).
func (b *Bank) updateBeliefs(obs observations) {
	var defaultsObserved int
	var fireSalesObserved int
	for _, env := range obs.publicPrevTick {
		switch env.ActionType {
		case intent.ActionDeclareDefault:
			defaultsObserved++
		case intent.ActionFireSaleAsset:
			fireSalesObserved++
		}
	}

	for idx, signal := range obs.neighborSignals {
		if ch, ok := b.Beliefs.NeighborDefault[idx]; ok {
			ch.Update(signal)
		}
	}
	if defaultsObserved > 0 {
		nudge := math.Min(0.3, 0.15*float64(defaultsObserved))
		for _, ch := range b.Beliefs.NeighborDefault {
			ch.Nudge(nudge)
		}
	}

	b.Beliefs.LiquidityStress.Update(obs.stressedFraction, 2.0)
	if obs.sellVolume > 0 {
		depth := obs.marketDepth
		if depth <= 0 {
			depth = 1
		}
		b.Beliefs.LiquidityStress.Update(math.Min(1, obs.sellVolume/depth), 1.5)
	}

	if b.TotalMarginDue() > 0 {
		b.Beliefs.MarginExpected.Update(b.TotalMarginDue(), 3.0)
	} else {
		b.Beliefs.MarginExpected.Update(b.TotalExposure()*obs.systemMarginRate, 1.0)
	}

	b.Beliefs.Volatility.Update(obs.volatility, 2.0)
	if fireSalesObserved > 0 {
		b.Beliefs.Volatility.Update(obs.volatility+math.Min(0.30, 0.05*float64(fireSalesObserved)), 1.5)
	}
}
