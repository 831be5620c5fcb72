package bank

// Default transitions this bank to the terminal defaulted state and zeroes
// its balance sheet in the same tick (spec.md §3 invariant: "A bank that
// has declared default never re-transitions to active; its liquidity,
// capital, asset holdings, and exposures are zeroed in the same tick").
// Received interbank loans are left intact deliberately — lenders absorb
// the loss through the CCP's contagion step (spec.md §4.5(e)).
func (b *Bank) Default() {
	if b.Defaulted {
		return
	}
	b.Defaulted = true
	b.Liquidity = 0
	b.Capital = 0
	for k := range b.Assets {
		b.Assets[k] = 0
	}
	for k := range b.Exposure {
		b.Exposure[k] = 0
	}
	b.OTCLoansGiven = nil
	b.PendingMarginCalls = nil
}

// ApplyContagion absorbs the bilateral and mutualized loss assigned to this
// surviving bank by the CCP's default waterfall (spec.md §4.5(c)/(d)). It
// is a no-op on an already-defaulted bank.
func (b *Bank) ApplyContagion(capitalLoss, liquidityLoss float64) {
	if b.Defaulted {
		return
	}
	b.Capital -= capitalLoss
	b.Liquidity -= liquidityLoss
}
