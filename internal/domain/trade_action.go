package domain

import "time"

// EvaluationLayer names the pipeline stage that produced an instrument's order plan
type EvaluationLayer string

const (
	LayerHumanLock        EvaluationLayer = "HUMAN_LOCK"
	LayerAIOrderPlan      EvaluationLayer = "AI_ORDER_PLAN"
	LayerSkeletonFallback EvaluationLayer = "SKELETON_FALLBACK"
	LayerNoPlan           EvaluationLayer = "NO_PLAN"
	LayerInstrumentError  EvaluationLayer = "INSTRUMENT_ERROR"
)

// OrderSpec is one normalized order in a TradeAction
type OrderSpec struct {
	OrderID             string          `json:"order_id"`
	Side                TradeSide       `json:"type"`
	OrderType           string          `json:"order_type"`
	LimitPrice          *float64        `json:"price"`
	Trigger             *float64        `json:"trigger"`
	QtyPercent          *float64        `json:"qty_percent"`
	Formula             string          `json:"formula,omitempty"`
	IsTrailing          bool            `json:"is_trailing,omitempty"`
	TimeInForce         string          `json:"time_in_force"`
	ExpirationDate      string          `json:"expiration_date,omitempty"`
	OrderValidity       string          `json:"order_validity,omitempty"`
	OCOGroupID          string          `json:"oco_group_id,omitempty"`
	AttachedOrders      []AttachedOrder `json:"attached_orders,omitempty"`
	ExecutionPreference string          `json:"execution_preference"`
	HumanOverride       bool            `json:"human_override,omitempty"`
	Reason              string          `json:"reason,omitempty"`
}

// Violation is one triggered hard constraint or failed mathematical bound
type Violation struct {
	Level   string   `json:"level"`
	RuleID  string   `json:"rule_id"`
	Effects []string `json:"effects,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// SafetyLockSummary is the advisory throttle attached to a TradeAction
type SafetyLockSummary struct {
	Active        bool     `json:"active"`
	MortalityRate float64  `json:"mortality_rate"`
	MaxExposure   *float64 `json:"max_exposure"`
	Reason        string   `json:"reason"`
	Analogues     int      `json:"analogues"`
}

// RiskFrame describes the risk envelope of a skeleton-derived plan
type RiskFrame struct {
	MaxPosition                  float64   `json:"max_position"`
	StopRule                     string    `json:"stop_rule"`
	InvalidationLevels           []float64 `json:"invalidation_levels"`
	TrailingStopTightnessApplied float64   `json:"trailing_stop_tightness_applied"`
}

// TradeAction is the per-instrument decision for one weekly cycle. It supersedes the
// previous cycle's TradeAction for the same ticker.
type TradeAction struct {
	Ticker                string             `json:"ticker"`
	CancelPreviousOrders  bool               `json:"cancel_previous_orders"`
	PreviousOrders        []PreviousOrder    `json:"previous_orders"`
	NewOrders             []OrderSpec        `json:"new_orders"`
	StrategyVersion       string             `json:"strategy_version"`
	EvaluationLayer       EvaluationLayer    `json:"evaluation_layer"`
	EscalationReason      []string           `json:"escalation_reason"`
	Reasoning             string             `json:"reasoning"`
	ConstraintOverrides   []string           `json:"constraint_overrides"`
	Violations            []Violation        `json:"violations"`
	ProgrammaticOverrides []string           `json:"programmatic_overrides"`
	GuidanceNotes         []string           `json:"guidance_notes"`
	RecommendedAction     Action             `json:"recommended_action,omitempty"`
	Cat                   Category           `json:"cat,omitempty"`
	MaxU                  *float64           `json:"max_U,omitempty"`
	MaxPositionCap        *float64           `json:"max_position_cap,omitempty"`
	EscalationForced      bool               `json:"escalation_forced,omitempty"`
	HumanOverride         bool               `json:"human_override,omitempty"`
	HumanLockID           string             `json:"human_lock_id,omitempty"`
	SafetyLock            *SafetyLockSummary `json:"safety_lock,omitempty"`
	RiskFrame             *RiskFrame         `json:"risk_frame,omitempty"`
	StrategyScript        string             `json:"strategy_script,omitempty"`
	NoPlanReason          string             `json:"no_plan_reason,omitempty"`
	Error                 string             `json:"error,omitempty"`
}

// Normalize replaces nil slices with empty ones so the JSON form is stable
// regardless of how the action was built or decoded.
func (a *TradeAction) Normalize() {
	if a.PreviousOrders == nil {
		a.PreviousOrders = []PreviousOrder{}
	}
	if a.NewOrders == nil {
		a.NewOrders = []OrderSpec{}
	}
	if a.EscalationReason == nil {
		a.EscalationReason = []string{}
	}
	if a.ConstraintOverrides == nil {
		a.ConstraintOverrides = []string{}
	}
	if a.Violations == nil {
		a.Violations = []Violation{}
	}
	if a.ProgrammaticOverrides == nil {
		a.ProgrammaticOverrides = []string{}
	}
	if a.GuidanceNotes == nil {
		a.GuidanceNotes = []string{}
	}
	if a.RiskFrame != nil && a.RiskFrame.InvalidationLevels == nil {
		a.RiskFrame.InvalidationLevels = []float64{}
	}
}

// Orders returns the new orders on the given side
func (a *TradeAction) Orders(side TradeSide) []OrderSpec {
	var out []OrderSpec
	for _, o := range a.NewOrders {
		if o.Side == side {
			out = append(out, o)
		}
	}
	return out
}

// WeeklyTradeActions is the weekly output document
type WeeklyTradeActions struct {
	GeneratedAt        time.Time     `json:"generated_at"`
	StrategyVersion    string        `json:"strategy_version"`
	WeeklyTradeActions []TradeAction `json:"weekly_trade_actions"`
}
