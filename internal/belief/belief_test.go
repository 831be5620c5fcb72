package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBetaBernoulli_PriorMean(t *testing.T) {
	b := NewBetaBernoulli()
	assert.InDelta(t, 0.1, b.Mean(), 1e-9) // 1/(1+9)
}

func TestBetaBernoulli_UpdateMovesTowardSignal(t *testing.T) {
	b := NewBetaBernoulli()
	before := b.Mean()
	b.Update(1.0) // defaulted neighbour signal
	assert.Greater(t, b.Mean(), before)
}

func TestBetaBernoulli_NudgeShiftsMeanByAmount(t *testing.T) {
	b := NewBetaBernoulli()
	before := b.Mean()
	b.Nudge(0.15)
	assert.InDelta(t, before+0.15, b.Mean(), 1e-9)
}

func TestNormalNormal_UpdateWeightsByPrecision(t *testing.T) {
	n := NewNormalNormal(0, 1)
	n.Update(1.0, 3.0)
	// posterior mean = (1*0 + 3*1)/(1+3) = 0.75
	assert.InDelta(t, 0.75, n.Mean(), 1e-9)
	assert.InDelta(t, 4.0, n.Tau, 1e-9)
}

func TestChannels_ExpectedLoss(t *testing.T) {
	c := NewChannels([]int{1, 2})
	c.NeighborDefault[1].Update(1.0)
	exposure := map[int]float64{1: 100, 2: 50}

	loss := c.ExpectedLoss(exposure, 0.6)
	assert.Greater(t, loss, 0.0)
}
