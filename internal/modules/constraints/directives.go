// Package constraints provides the hard-constraint catalog, its evaluator and the
// applier that merges triggered adjustments into an AI strategy proposal.
package constraints

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/aristath/governor/internal/domain"
)

// Directive names one override an adjustment set can carry
type Directive string

const (
	DirectiveForbidCat3          Directive = "forbid_cat3"
	DirectiveDowngradeCat        Directive = "downgrade_cat"
	DirectiveMaxU                Directive = "max_U"
	DirectiveMaxPositionCap      Directive = "max_position_cap"
	DirectiveForceEscalation     Directive = "force_escalation"
	DirectiveHaltNewBuy          Directive = "halt_new_buy"
	DirectiveHaltAllBuy          Directive = "halt_all_buy"
	DirectiveForceDefensive      Directive = "force_defensive"
	DirectiveExecuteExitPlan     Directive = "execute_exit_plan"
	DirectiveRiskOverlayLevelMin Directive = "risk_overlay_level_min"
	DirectivePhaseOutMode        Directive = "phase_out_mode"
	DirectiveNoNewPosition       Directive = "no_new_position"
	DirectiveWeeklyReduceRate    Directive = "weekly_reduce_rate"
	DirectiveNormalizeWeights    Directive = "normalize_weights"
	DirectiveRejectBuyLadder     Directive = "reject_buy_ladder"
)

type mergeKind int

const (
	mergeFlag  mergeKind = iota // any contribution sets it
	mergeCap                    // tightest (minimum) value wins
	mergeFloor                  // strictest (maximum) value wins
)

func (d Directive) mergeKind() mergeKind {
	switch d {
	case DirectiveMaxU, DirectiveMaxPositionCap:
		return mergeCap
	case DirectiveRiskOverlayLevelMin, DirectiveWeeklyReduceRate:
		return mergeFloor
	default:
		return mergeFlag
	}
}

// EffectKind distinguishes fixed effect values from values computed from the context
type EffectKind string

const (
	EffectStatic  EffectKind = "STATIC"
	EffectDerived EffectKind = "DERIVED"
)

// Effect is what a triggered rule contributes to one directive. It is either STATIC
// (a fixed value, 1 for flags) or DERIVED (computed from the evaluation context).
type Effect struct {
	Directive Directive
	Kind      EffectKind
	Value     float64
	Derive    func(ec domain.EvaluationContext) float64
}

// Flag returns a static boolean effect
func Flag(d Directive) Effect {
	return Effect{Directive: d, Kind: EffectStatic, Value: 1}
}

// Static returns a static numeric effect
func Static(d Directive, value float64) Effect {
	return Effect{Directive: d, Kind: EffectStatic, Value: value}
}

// Derived returns an effect whose value is computed from the context at evaluation time
func Derived(d Directive, derive func(ec domain.EvaluationContext) float64) Effect {
	return Effect{Directive: d, Kind: EffectDerived, Derive: derive}
}

// Resolve returns the effect value for ec
func (e Effect) Resolve(ec domain.EvaluationContext) float64 {
	if e.Kind == EffectDerived && e.Derive != nil {
		return e.Derive(ec)
	}
	return e.Value
}

// Describe renders the effect for violation records, e.g. "max_U=0.50" or "forbid_cat3"
func (e Effect) Describe(ec domain.EvaluationContext) string {
	if e.Directive.mergeKind() == mergeFlag {
		return string(e.Directive)
	}
	return fmt.Sprintf("%s=%s", e.Directive, formatValue(e.Directive, e.Resolve(ec)))
}

// Contribution is one rule's contribution to a directive
type Contribution struct {
	RuleID string     `json:"rule_id"`
	Kind   EffectKind `json:"kind"`
	Value  float64    `json:"value"`
}

// AdjustmentSet is the normalized map of override directives produced by one
// evaluation. Every contribution is kept with its source rule; Value merges them
// tighten-only.
type AdjustmentSet struct {
	contributions map[Directive][]Contribution
	order         []Directive
}

// NewAdjustmentSet returns an empty set
func NewAdjustmentSet() *AdjustmentSet {
	return &AdjustmentSet{contributions: make(map[Directive][]Contribution)}
}

// Add records a contribution. Non-finite values are ignored.
func (a *AdjustmentSet) Add(d Directive, c Contribution) {
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
		return
	}
	if _, seen := a.contributions[d]; !seen {
		a.order = append(a.order, d)
	}
	a.contributions[d] = append(a.contributions[d], c)
}

// Has reports whether any rule contributed to d
func (a *AdjustmentSet) Has(d Directive) bool {
	if a == nil {
		return false
	}
	return len(a.contributions[d]) > 0
}

// Value returns the merged value for d: the minimum for caps, the maximum for
// floors and rates, 1 for set flags.
func (a *AdjustmentSet) Value(d Directive) (float64, bool) {
	if !a.Has(d) {
		return 0, false
	}
	contributions := a.contributions[d]
	merged := contributions[0].Value
	for _, c := range contributions[1:] {
		switch d.mergeKind() {
		case mergeCap:
			merged = math.Min(merged, c.Value)
		case mergeFloor:
			merged = math.Max(merged, c.Value)
		default:
			merged = 1
		}
	}
	if d.mergeKind() == mergeFlag {
		return 1, true
	}
	return merged, true
}

// Sources returns the rule ids that contributed to d, in contribution order
func (a *AdjustmentSet) Sources(d Directive) []string {
	if !a.Has(d) {
		return nil
	}
	ids := make([]string, 0, len(a.contributions[d]))
	for _, c := range a.contributions[d] {
		ids = append(ids, c.RuleID)
	}
	return ids
}

// Binding returns the rule id whose contribution determines the merged value of d
func (a *AdjustmentSet) Binding(d Directive) string {
	value, ok := a.Value(d)
	if !ok {
		return ""
	}
	for _, c := range a.contributions[d] {
		if d.mergeKind() == mergeFlag || c.Value == value {
			return c.RuleID
		}
	}
	return ""
}

// Contributions returns a copy of the contributions to d
func (a *AdjustmentSet) Contributions(d Directive) []Contribution {
	if !a.Has(d) {
		return nil
	}
	return append([]Contribution(nil), a.contributions[d]...)
}

// Directives returns the directives in first-contribution order
func (a *AdjustmentSet) Directives() []Directive {
	if a == nil {
		return nil
	}
	return append([]Directive(nil), a.order...)
}

// Len returns the number of distinct directives
func (a *AdjustmentSet) Len() int {
	if a == nil {
		return 0
	}
	return len(a.order)
}

type adjustmentJSON struct {
	Directive     Directive      `json:"directive"`
	Value         float64        `json:"value"`
	Contributions []Contribution `json:"contributions"`
}

// MarshalJSON renders the set as an ordered list of merged directives
func (a *AdjustmentSet) MarshalJSON() ([]byte, error) {
	out := make([]adjustmentJSON, 0, a.Len())
	for _, d := range a.Directives() {
		value, _ := a.Value(d)
		out = append(out, adjustmentJSON{Directive: d, Value: value, Contributions: a.Contributions(d)})
	}
	return json.Marshal(out)
}

func formatValue(d Directive, v float64) string {
	if d == DirectiveRiskOverlayLevelMin {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.2f", v)
}
