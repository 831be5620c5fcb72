package ccp

import (
	"testing"

	"github.com/paynet/interbank-ccp/internal/bank"
	"github.com/paynet/interbank-ccp/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestHandleBankDefault_FundFullyAbsorbsSmallLoss(t *testing.T) {
	cfg := config.Default()
	cfg.CCPInitialDefaultFund = 1000
	c := New(cfg)

	defaulted := bank.New("bank_00", 0, 0, 0, 0, 0, nil)
	neighbor := bank.New("bank_01", 1, 100, 100, 0, 0, nil)
	neighbor.Exposure[0] = 10 // uncovered = 10*0.6 = 6, well under the fund
	reg := bank.NewRegistry([]*bank.Bank{defaulted, neighbor})

	c.HandleBankDefault(reg, defaulted)

	assert.InDelta(t, 994, c.DefaultFund, 1e-9)
	// bilateral contagion still applies regardless of fund absorption
	assert.InDelta(t, 100-10*bilateralCapitalLGD, neighbor.Capital, 1e-9)
	assert.InDelta(t, 100-10*bilateralLiquidityLGD, neighbor.Liquidity, 1e-9)
}

func TestHandleBankDefault_InsufficientFundMutualisesRemainder(t *testing.T) {
	cfg := config.Default()
	cfg.CCPInitialDefaultFund = 5
	c := New(cfg)

	defaulted := bank.New("bank_00", 0, 0, 0, 0, 0, nil)
	neighbor := bank.New("bank_01", 1, 100, 100, 0, 0, nil)
	neighbor.Exposure[0] = 100 // uncovered = 60, fund only covers 5, remainder = 55
	survivor := bank.New("bank_02", 2, 100, 100, 0, 0, nil)
	reg := bank.NewRegistry([]*bank.Bank{defaulted, neighbor, survivor})

	c.HandleBankDefault(reg, defaulted)

	assert.InDelta(t, 0, c.DefaultFund, 1e-9)

	// remainder 55 split across the two survivors (neighbor and survivor)
	perBank := 55.0 / 2.0
	assert.InDelta(t, 100-100*bilateralCapitalLGD-perBank*0.5, neighbor.Capital, 1e-9)
	assert.InDelta(t, 100-100*bilateralLiquidityLGD-perBank*0.5, neighbor.Liquidity, 1e-9)
	assert.InDelta(t, 100-perBank*0.5, survivor.Capital, 1e-9)
	assert.InDelta(t, 100-perBank*0.5, survivor.Liquidity, 1e-9)
}

func TestHandleBankDefault_SkipsAlreadyDefaultedNeighbor(t *testing.T) {
	cfg := config.Default()
	cfg.CCPInitialDefaultFund = 1000
	c := New(cfg)

	defaulted := bank.New("bank_00", 0, 0, 0, 0, 0, nil)
	alreadyGone := bank.New("bank_01", 1, 0, 0, 0, 0, nil)
	alreadyGone.Default()
	alreadyGone.Exposure[0] = 50
	reg := bank.NewRegistry([]*bank.Bank{defaulted, alreadyGone})

	c.HandleBankDefault(reg, defaulted)

	assert.InDelta(t, 1000, c.DefaultFund, 1e-9)
	assert.Equal(t, 0.0, alreadyGone.Capital)
}

func TestAcceptDefaultFundDeposit_IncreasesFund(t *testing.T) {
	cfg := config.Default()
	cfg.CCPInitialDefaultFund = 10
	c := New(cfg)

	c.AcceptDefaultFundDeposit(5)

	assert.InDelta(t, 15, c.DefaultFund, 1e-9)
}
