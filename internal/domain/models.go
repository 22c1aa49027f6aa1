// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TradeSide represents the side of an order
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// IsValid reports whether the side is BUY or SELL
func (s TradeSide) IsValid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// Action is a per-instrument recommended action
type Action string

const (
	ActionBuy    Action = "BUY"
	ActionSell   Action = "SELL"
	ActionHold   Action = "HOLD"
	ActionAdjust Action = "ADJUST"
)

// Category is the technical-pattern category driving order aggressiveness
type Category string

const (
	Cat1 Category = "Cat1"
	Cat2 Category = "Cat2"
	Cat3 Category = "Cat3"
)

// TimePosition values for the system dynamics cycle position
const (
	TimePositionEarly = "EARLY"
	TimePositionMid   = "MID"
	TimePositionLate  = "LATE"
)

// RiskHigh is the HIGH bucket used by turning point risk
const RiskHigh = "HIGH"

// MarketRegimeBear is the regime label tagged as BEAR_MARKET in scenario memory
const MarketRegimeBear = "BEAR_MARKET"

// MacroIndicators holds the macro inputs that feed the scenario signature
type MacroIndicators struct {
	OilPrice    *float64 `json:"oil_price,omitempty"`
	DollarIndex *float64 `json:"dollar_index,omitempty"`
	BondYield   *float64 `json:"bond_yield,omitempty"`
}

// EvaluationContext is the per-instrument snapshot the governance layer evaluates.
// It is built fresh each cycle and treated as read-only during one evaluation.
type EvaluationContext struct {
	Ticker string `json:"ticker"`

	// Systemic flags
	DefconLevel            int    `json:"defcon_level"` // 1 (most severe) to 5, 0 when unknown
	TimePosition           string `json:"p0_7_time_position"`
	TurningPointRisk       string `json:"p0_7_turning_point_risk"`
	EmergencyExitTriggered bool   `json:"emergency_exit_triggered"`

	// Industry flags
	DivergenceAlert       bool `json:"divergence_alert"`
	IndustryAdvantageLost bool `json:"industry_advantage_lost"`

	// Stock flags
	InsiderSellingAlert   bool     `json:"insider_selling_alert"`
	AbnormalDistribution  bool     `json:"abnormal_13f_distribution"`
	SafetyLockActive      bool     `json:"safety_lock_active"`
	SafetyLockMaxExposure *float64 `json:"safety_lock_max_exposure,omitempty"`
	TechnicalCategory     Category `json:"p3_cat,omitempty"`
	VolumeSurge           bool     `json:"volume_surge"`
	MilestonePending      bool     `json:"milestone_pending"`
	EarningsInDays        *int     `json:"earnings_in_days,omitempty"`
	CurrentPrice          float64  `json:"current_price"`
	ATR                   float64  `json:"atr"`

	// Market environment
	VIX                 *float64           `json:"vix,omitempty"`
	MarketRegime        string             `json:"market_regime,omitempty"`
	MarketTrend         string             `json:"market_trend,omitempty"`
	VolatilityRegime    string             `json:"volatility_regime,omitempty"`
	SectorFlows         map[string]float64 `json:"sector_flows,omitempty"` // weekly flow (USD) per sector
	TotalSectorFlow     float64            `json:"total_sector_flow,omitempty"`
	Macro               MacroIndicators    `json:"macro"`
	NewsSentimentScores []float64          `json:"news_sentiment_scores,omitempty"`
}

// BuyLadder holds the three proposed buy levels
type BuyLadder struct {
	Buy1 float64 `json:"buy1"`
	Buy2 float64 `json:"buy2"`
	Buy3 float64 `json:"buy3"`
}

// OrderPlanEntry is one AI-proposed order. Untrusted.
type OrderPlanEntry struct {
	OrderID             string          `json:"order_id,omitempty"`
	Side                TradeSide       `json:"side"`
	OrderType           string          `json:"order_type"`
	LimitPrice          *float64        `json:"limit_price,omitempty"`
	Trigger             *float64        `json:"trigger,omitempty"`
	QtyPercent          *float64        `json:"qty_percent,omitempty"`
	TimeInForce         string          `json:"time_in_force,omitempty"`
	ExpirationDate      string          `json:"expiration_date,omitempty"`
	OrderValidity       string          `json:"order_validity,omitempty"`
	OCOGroupID          string          `json:"oco_group_id,omitempty"`
	AttachedOrders      []AttachedOrder `json:"attached_orders,omitempty"`
	ExecutionPreference string          `json:"execution_preference,omitempty"`
}

// AttachedOrder is a child order (take profit, stop) attached to a parent order
type AttachedOrder struct {
	OrderType  string   `json:"order_type"`
	LimitPrice *float64 `json:"limit_price,omitempty"`
	Trigger    *float64 `json:"trigger,omitempty"`
}

// AIStrategyProposal is the AI-generated per-instrument strategy. Every field may be
// missing or malformed; absent numeric fields are nil.
type AIStrategyProposal struct {
	Cat                       Category                   `json:"cat,omitempty"`
	MaxU                      *float64                   `json:"max_U,omitempty"`
	MaxPositionCap            *float64                   `json:"max_position_cap,omitempty"`
	FactorWeights             map[string]float64         `json:"factor_weights,omitempty"`
	BuyLadder                 *BuyLadder                 `json:"buy_ladder,omitempty"`
	OrderPlan                 []OrderPlanEntry           `json:"order_plan,omitempty"`
	ParameterAdjustmentVector *ParameterAdjustmentVector `json:"parameter_adjustment_vector,omitempty"`
	RecommendedAction         Action                     `json:"recommended_action,omitempty"`
	Reasoning                 string                     `json:"reasoning,omitempty"`
	EscalationReason          []string                   `json:"escalation_reason,omitempty"`
	StrategyScript            string                     `json:"strategy_script,omitempty"`
}

// ParameterAdjustmentVector is the bounded numeric vector the AI may supply instead of raw prices
type ParameterAdjustmentVector struct {
	BuyBias                 float64  `json:"buy_bias"`
	SellBias                float64  `json:"sell_bias"`
	LadderSpacingAdjustment Percent  `json:"ladder_spacing_adjustment"`
	TrailingStopTightness   Percent  `json:"trailing_stop_tightness"`
	MaxPositionCapOverride  *float64 `json:"max_position_cap_override,omitempty"`
}

// HumanLockDirective is a manual directive overriding every automated layer for one instrument
type HumanLockDirective struct {
	Ticker    string    `json:"ticker"`
	Locked    bool      `json:"locked"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason"`
	SignalID  string    `json:"signal_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PreviousOrder is an order placed in an earlier cycle, kept for cancellation bookkeeping
type PreviousOrder struct {
	OrderID string   `json:"order_id"`
	Side    string   `json:"type"`
	Price   *float64 `json:"price,omitempty"`
	Qty     *float64 `json:"qty,omitempty"`
}

// MarketSnapshot is the read-only market data used by the programmatic override and skeleton
type MarketSnapshot struct {
	CurrentPrice float64 `json:"current_price"`
	ATR          float64 `json:"atr"`
	MA20         float64 `json:"ma20"`
	AvgVolume20d float64 `json:"avg_volume_20d"`
	LatestVolume float64 `json:"volume_latest"`
}

// Bar is one daily OHLCV bar
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// KeyLevels are the technical support/resistance levels from the technical analysis phase
type KeyLevels struct {
	Support1           *float64  `json:"support_1,omitempty"`
	Support2           *float64  `json:"support_2,omitempty"`
	Resistance1        *float64  `json:"resistance_1,omitempty"`
	Resistance2        *float64  `json:"resistance_2,omitempty"`
	InvalidationLevels []float64 `json:"invalidation_levels,omitempty"`
	StopRule           string    `json:"stop_rule,omitempty"`
}

// InstrumentInput bundles everything the collaborators hand in for one instrument
type InstrumentInput struct {
	Ticker         string              `json:"ticker"`
	Context        EvaluationContext   `json:"context"`
	Proposal       *AIStrategyProposal `json:"proposal,omitempty"`
	PreviousOrders []PreviousOrder     `json:"previous_orders,omitempty"`
	Market         *MarketSnapshot     `json:"market,omitempty"`
	Bars           []Bar               `json:"bars,omitempty"`
	KeyLevels      *KeyLevels          `json:"key_levels,omitempty"`
	MaxPosition    *float64            `json:"max_position,omitempty"`

	// malformed names the sections that could not be decoded and cannot be
	// treated as absent
	malformed []string
}

// MalformedInput returns an input that resolves to an instrument error. It stands
// in for a batch element that is not a JSON object.
func MalformedInput(err error) InstrumentInput {
	return InstrumentInput{malformed: []string{"input: " + err.Error()}}
}

// DecodeError reports the sections that failed to decode, or nil. A malformed
// context, ticker or previous_orders section cannot be treated as absent: the
// hard constraints and order bookkeeping depend on them.
func (in InstrumentInput) DecodeError() error {
	if len(in.malformed) == 0 {
		return nil
	}
	return fmt.Errorf("malformed input: %s", strings.Join(in.malformed, "; "))
}

// UnmarshalJSON decodes an input section by section. A proposal, market snapshot,
// bars, key levels or max position that does not decode is treated as absent.
// Any other malformed section is recorded for DecodeError instead of failing the
// decode, so one bad instrument never hides its batch siblings.
func (in *InstrumentInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ticker         json.RawMessage `json:"ticker"`
		Context        json.RawMessage `json:"context"`
		Proposal       json.RawMessage `json:"proposal"`
		PreviousOrders json.RawMessage `json:"previous_orders"`
		Market         json.RawMessage `json:"market"`
		Bars           json.RawMessage `json:"bars"`
		KeyLevels      json.RawMessage `json:"key_levels"`
		MaxPosition    json.RawMessage `json:"max_position"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*in = InstrumentInput{}
	if err := decodeOptional(raw.Ticker, &in.Ticker); err != nil {
		in.Ticker = ""
		in.malformed = append(in.malformed, "ticker: "+err.Error())
	}
	if err := decodeOptional(raw.Context, &in.Context); err != nil {
		// keep only the ticker so the failure can be attributed
		in.Context = EvaluationContext{Ticker: contextTicker(raw.Context)}
		in.malformed = append(in.malformed, "context: "+err.Error())
	}
	if err := decodeOptional(raw.PreviousOrders, &in.PreviousOrders); err != nil {
		in.PreviousOrders = nil
		in.malformed = append(in.malformed, "previous_orders: "+err.Error())
	}

	if decodeOptional(raw.Proposal, &in.Proposal) != nil {
		in.Proposal = nil
	}
	if decodeOptional(raw.Market, &in.Market) != nil {
		in.Market = nil
	}
	if decodeOptional(raw.Bars, &in.Bars) != nil {
		in.Bars = nil
	}
	if decodeOptional(raw.KeyLevels, &in.KeyLevels) != nil {
		in.KeyLevels = nil
	}
	if decodeOptional(raw.MaxPosition, &in.MaxPosition) != nil {
		in.MaxPosition = nil
	}
	return nil
}

func contextTicker(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return ""
	}
	var ticker string
	if json.Unmarshal(fields["ticker"], &ticker) != nil {
		return ""
	}
	return ticker
}

func decodeOptional(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}
