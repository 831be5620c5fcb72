package bank

import (
	"testing"

	"github.com/paynet/interbank-ccp/internal/intent"
	"github.com/stretchr/testify/assert"
)

func TestSelectAction_DeclareDefaultWhenInsolvent(t *testing.T) {
	b := New("bank_00", 0, 3, 2, 0, 0, nil)
	decision := b.SelectAction(utilityInputs{risk: Risk{}, volatility: 0.1})
	assert.Equal(t, intent.ActionDeclareDefault, decision.Action)
}

func TestSelectAction_FireSaleGuardFailsWithNoAssets(t *testing.T) {
	b := New("bank_00", 0, 50, 50, 0, 0, nil)
	utils := b.utilityFns(utilityInputs{
		risk: Risk{LiquidityShortfall: 10, MarginUrgency: 0.8},
	})
	assert.Equal(t, negInf, utils[intent.ActionFireSaleAsset])
}

func TestSelectAction_DepositDefaultFundWhenFlush(t *testing.T) {
	b := New("bank_00", 0, 85, 50, 10, 5, nil)
	decision := b.SelectAction(utilityInputs{
		risk:         Risk{},
		stressBelief: 0.05,
		stressed:     false,
	})
	assert.Equal(t, intent.ActionDepositDefaultFund, decision.Action)
}

func TestSelectAction_TieBreaksByEnumerationOrder(t *testing.T) {
	b := New("bank_00", 0, 50, 50, 5, 5, nil)
	// With no risk, stress or volatility, sell_asset_standard,
	// hoard_liquidity, reduce_exposure, borrow and route_otc_proposal all
	// score 0 and every other guard fails; the tie goes to the first of them
	// in BankActionOrder.
	decision := b.SelectAction(utilityInputs{})
	assert.Equal(t, intent.ActionSellAssetStandard, decision.Action)
}
