// Package belief implements the bank's private Bayesian belief channels
// (spec.md §3, §4.4 step 2): a per-neighbour Beta-Bernoulli posterior over
// default, and three Normal-Normal conjugate posteriors (liquidity stress,
// expected margin magnitude, market volatility).
package belief

import "gonum.org/v1/gonum/stat/distuv"

// BetaBernoulli is a single neighbour's default-probability posterior.
// Prior (alpha=1, beta=9) per spec.md §3.
type BetaBernoulli struct {
	Alpha float64
	Beta  float64
}

// NewBetaBernoulli returns the configured prior.
func NewBetaBernoulli() BetaBernoulli {
	return BetaBernoulli{Alpha: 1, Beta: 9}
}

// Update folds in an observed signal s in [0, 1] (spec.md §4.4 step 2:
// "map observable state to a scalar signal").
func (b *BetaBernoulli) Update(s float64) {
	b.Alpha += s
	b.Beta += 1 - s
}

// Nudge shifts the posterior mean towards default without discarding the
// conjugate shape, used when public defaults are observed this tick
// (spec.md: "nudge all neighbour beliefs by min(0.3, 0.15*count)").
func (b *BetaBernoulli) Nudge(amount float64) {
	total := b.Alpha + b.Beta
	b.Alpha += amount * total
	b.Beta -= amount * total
	if b.Beta < 0.01 {
		b.Beta = 0.01
	}
}

// Mean returns the posterior mean default probability, E[Beta(alpha,beta)].
func (b BetaBernoulli) Mean() float64 {
	dist := distuv.Beta{Alpha: b.Alpha, Beta: b.Beta}
	return dist.Mean()
}

// NormalNormal is a conjugate Normal posterior over an unknown mean with
// known observation precision, used identically for the liquidity-stress,
// margin-magnitude and volatility channels (spec.md §3).
type NormalNormal struct {
	Mu  float64 // posterior mean
	Tau float64 // posterior precision (1/variance)
}

// NewNormalNormal returns a weak prior centered at mu0 with precision tau0.
func NewNormalNormal(mu0, tau0 float64) NormalNormal {
	return NormalNormal{Mu: mu0, Tau: tau0}
}

// Update folds in an observation with the given observation precision,
// using the standard conjugate-Normal update rule:
//
//	tau'  = tau + precision
//	mu'   = (tau*mu + precision*obs) / tau'
func (n *NormalNormal) Update(obs, precision float64) {
	newTau := n.Tau + precision
	n.Mu = (n.Tau*n.Mu + precision*obs) / newTau
	n.Tau = newTau
}

// Mean returns the current posterior mean, the quantity every utility
// formula in spec.md §4.4 reads as E[...].
func (n NormalNormal) Mean() float64 {
	return n.Mu
}

// Channels bundles a bank's four private belief channels.
type Channels struct {
	NeighborDefault map[int]*BetaBernoulli
	LiquidityStress NormalNormal
	MarginExpected  NormalNormal
	Volatility      NormalNormal
}

// NewChannels initializes beliefs for a bank with the given neighbour
// indices, matching the scheduler's setup step (spec.md §4.6:
// "initialise each bank's neighbour beliefs to Beta(1,9)").
func NewChannels(neighbors []int) Channels {
	nd := make(map[int]*BetaBernoulli, len(neighbors))
	for _, n := range neighbors {
		b := NewBetaBernoulli()
		nd[n] = &b
	}
	return Channels{
		NeighborDefault: nd,
		LiquidityStress: NewNormalNormal(0, 1),
		MarginExpected:  NewNormalNormal(0, 1),
		Volatility:      NewNormalNormal(0.12, 1),
	}
}

// ExpectedLoss computes Σ (PD_neighbour · LGD · exposure) (spec.md §4.4
// step 3). exposure maps neighbour index to outstanding bilateral exposure.
func (c Channels) ExpectedLoss(exposure map[int]float64, lgd float64) float64 {
	var total float64
	for idx, amt := range exposure {
		if amt <= 0 {
			continue
		}
		pd := 0.0
		if b, ok := c.NeighborDefault[idx]; ok {
			pd = b.Mean()
		}
		total += pd * lgd * amt
	}
	return total
}
