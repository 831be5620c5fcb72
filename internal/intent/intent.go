// Package intent defines the typed message envelope exchanged between every
// agent in the simulation (banks, the CCP, the exchange) and the visibility
// rule used to route it through the state fabric.
package intent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Visibility controls fan-out through the state fabric's stream keys.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// ActionType is the closed enumeration of every action an agent may emit.
// Enumeration order is authoritative for tie-breaking (spec.md §4.2, §4.4).
type ActionType string

const (
	ActionRepayInterbankLoan     ActionType = "REPAY_INTERBANK_LOAN"
	ActionDeclareDefault         ActionType = "DECLARE_DEFAULT"
	ActionDepositDefaultFund     ActionType = "DEPOSIT_DEFAULT_FUND"
	ActionProvideInterbankCredit ActionType = "PROVIDE_INTERBANK_CREDIT"
	ActionFireSaleAsset          ActionType = "FIRE_SALE_ASSET"
	ActionPayMarginCall          ActionType = "pay_margin_call"
	ActionSellAssetStandard      ActionType = "sell_asset_standard"
	ActionHoardLiquidity         ActionType = "hoard_liquidity"
	ActionReduceExposure         ActionType = "reduce_exposure"
	ActionBorrow                 ActionType = "borrow"
	ActionRouteOTCProposal       ActionType = "route_otc_proposal"

	// Emitted by the CCP and the exchange rather than a bank.
	ActionIssueMarginCall  ActionType = "issue_margin_call"
	ActionUpdateMarketData ActionType = "update_market_data"
)

// BankActionOrder is the fixed enumeration order used to break utility ties
// in the bank's action-selection phase (spec.md §4.4 step 4).
var BankActionOrder = []ActionType{
	ActionRepayInterbankLoan,
	ActionDeclareDefault,
	ActionDepositDefaultFund,
	ActionProvideInterbankCredit,
	ActionFireSaleAsset,
	ActionPayMarginCall,
	ActionSellAssetStandard,
	ActionHoardLiquidity,
	ActionReduceExposure,
	ActionBorrow,
	ActionRouteOTCProposal,
}

// Payload is the type-dependent body of an intent. It is kept as a loosely
// typed map so the envelope round-trips through JSON without a variant type
// per action (spec.md §6: "a self-describing object").
type Payload map[string]any

// BeliefSnapshot is the optional posterior summary an emitter may attach.
type BeliefSnapshot struct {
	NeighborDefaultProb map[string]float64 `json:"neighbor_default_prob,omitempty"`
	LiquidityStressMean float64            `json:"liquidity_stress_mean"`
	MarginExpectedMean  float64            `json:"margin_expected_mean"`
	VolatilityMean      float64            `json:"volatility_mean"`
}

// RiskPreference is the optional risk-posture summary an emitter may attach.
type RiskPreference struct {
	ExpectedLoss       float64 `json:"expected_loss"`
	LiquidityShortfall float64 `json:"liquidity_shortfall"`
	MarginUrgency      float64 `json:"margin_urgency"`
	RepayUrgency       float64 `json:"repay_urgency"`
}

// Envelope is the wire format every emitter produces and every reader
// consumes (spec.md §6).
type Envelope struct {
	IntentID       string          `json:"intent_id"`
	Tick           int             `json:"tick"`
	AgentID        string          `json:"agent_id"`
	ActionType     ActionType      `json:"action_type"`
	Visibility     Visibility      `json:"visibility"`
	Payload        Payload         `json:"payload"`
	BeliefSnapshot *BeliefSnapshot `json:"belief_snapshot,omitempty"`
	RiskPreference *RiskPreference `json:"risk_preference,omitempty"`

	// EmittedAt is carried for analytics only; no core invariant depends on
	// it (the tick number is the ordering authority, spec.md §3).
	EmittedAt time.Time `json:"emitted_at,omitempty"`
}

// New constructs an envelope with a fresh unique intent id.
func New(tick int, agentID string, action ActionType, vis Visibility, payload Payload) Envelope {
	return Envelope{
		IntentID:   uuid.NewString(),
		Tick:       tick,
		AgentID:    agentID,
		ActionType: action,
		Visibility: vis,
		Payload:    payload,
	}
}

// Target resolves the routing target for a private intent by trying payload
// keys in priority order (spec.md §4.1 "Smart routing").
func (e Envelope) Target() (string, bool) {
	if e.Visibility != Private {
		return "", false
	}
	for _, key := range []string{"target", "target_agent_id", "borrower_bank_id", "final_destination"} {
		if v, ok := e.Payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Marshal serializes the envelope to its wire JSON form.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses an envelope from its wire JSON form.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

// PayloadString safely extracts a string field, returning "" if absent or of
// the wrong type — used by receivers handling the "malformed intent" error
// kind (spec.md §7.2) rather than panicking on a type assertion.
func (p Payload) PayloadString(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// PayloadFloat safely extracts a numeric field. JSON round-trips numbers as
// float64; a value set directly as int/float64 at construction time is
// handled too.
func (p Payload) PayloadFloat(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// PayloadInt safely extracts an integer field.
func (p Payload) PayloadInt(key string) (int, bool) {
	f, ok := p.PayloadFloat(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// RequireFields reports whether every named key is present in the payload —
// used to detect the "malformed intent" error kind (spec.md §7.2).
func (p Payload) RequireFields(keys ...string) bool {
	for _, k := range keys {
		if _, ok := p[k]; !ok {
			return false
		}
	}
	return true
}
