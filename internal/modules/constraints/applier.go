package constraints

import (
	"fmt"
	"math"
	"strings"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// AdjustedProposal is the proposal after every hard constraint has been applied.
// All numeric caps are resolved to concrete values.
type AdjustedProposal struct {
	Cat                       domain.Category                   `json:"cat,omitempty"`
	MaxU                      float64                           `json:"max_U"`
	MaxPositionCap            float64                           `json:"max_position_cap"`
	FactorWeights             map[string]float64                `json:"factor_weights,omitempty"`
	BuyLadder                 *domain.BuyLadder                 `json:"buy_ladder,omitempty"`
	OrderPlan                 []domain.OrderPlanEntry           `json:"order_plan,omitempty"`
	ParameterAdjustmentVector *domain.ParameterAdjustmentVector `json:"parameter_adjustment_vector,omitempty"`
	RecommendedAction         domain.Action                     `json:"recommended_action,omitempty"`
	Reasoning                 string                            `json:"reasoning,omitempty"`
	EscalationReason          []string                          `json:"escalation_reason"`
	EscalationForced          bool                              `json:"escalation_forced"`
	StrategyScript            string                            `json:"strategy_script,omitempty"`

	// Downstream directives
	SuppressBuys     bool    `json:"suppress_buys"`
	HaltReason       string  `json:"halt_reason,omitempty"`
	ForceDefensive   bool    `json:"force_defensive"`
	ExecuteExitPlan  bool    `json:"execute_exit_plan"`
	PhaseOutMode     bool    `json:"phase_out_mode"`
	RiskOverlayLevel int     `json:"risk_overlay_level"`
	WeeklyReduceRate float64 `json:"weekly_reduce_rate"`

	ConstraintOverrides []string `json:"constraint_overrides"`
}

// Applier merges an adjustment set into a proposal. It can only tighten.
type Applier struct {
	bounds config.BoundsParams
	log    zerolog.Logger
}

// NewApplier creates a new constraint applier
func NewApplier(params *config.Params, log zerolog.Logger) *Applier {
	if params == nil {
		params = config.DefaultParams()
	}
	return &Applier{
		bounds: params.Bounds,
		log:    log.With().Str("component", "constraint_applier").Logger(),
	}
}

// Apply returns the adjusted proposal. A nil proposal is treated as empty.
func (a *Applier) Apply(proposal *domain.AIStrategyProposal, adj *AdjustmentSet, ec domain.EvaluationContext) AdjustedProposal {
	if proposal == nil {
		proposal = &domain.AIStrategyProposal{}
	}
	if adj == nil {
		adj = NewAdjustmentSet()
	}

	out := AdjustedProposal{
		Cat:                       proposal.Cat,
		FactorWeights:             copyWeights(proposal.FactorWeights),
		OrderPlan:                 append([]domain.OrderPlanEntry(nil), proposal.OrderPlan...),
		ParameterAdjustmentVector: proposal.ParameterAdjustmentVector,
		RecommendedAction:         proposal.RecommendedAction,
		Reasoning:                 proposal.Reasoning,
		EscalationReason:          append([]string{}, proposal.EscalationReason...),
		StrategyScript:            proposal.StrategyScript,
		ConstraintOverrides:       make([]string, 0),
	}
	if proposal.BuyLadder != nil {
		ladder := *proposal.BuyLadder
		out.BuyLadder = &ladder
	}

	note := func(format string, args ...interface{}) {
		out.ConstraintOverrides = append(out.ConstraintOverrides, fmt.Sprintf(format, args...))
	}

	// ==========================================================================
	// Category
	// ==========================================================================

	if adj.Has(DirectiveDowngradeCat) {
		if lower, ok := downgrade(out.Cat); ok {
			note("cat: %s → %s [%s]", out.Cat, lower, sources(adj, DirectiveDowngradeCat))
			out.Cat = lower
		}
	}
	if adj.Has(DirectiveForbidCat3) && out.Cat == domain.Cat3 {
		note("cat: %s → %s [%s]", domain.Cat3, domain.Cat2, sources(adj, DirectiveForbidCat3))
		out.Cat = domain.Cat2
	}

	// ==========================================================================
	// Exposure caps (min of current and tightest cap)
	// ==========================================================================

	out.MaxU = a.bounds.DefaultMaxU
	if proposal.MaxU != nil && !math.IsNaN(*proposal.MaxU) {
		out.MaxU = clamp(*proposal.MaxU, 0, 1)
	}
	if limit, ok := adj.Value(DirectiveMaxU); ok && limit < out.MaxU {
		note("max_U: %.2f → %.2f [%s]", out.MaxU, limit, adj.Binding(DirectiveMaxU))
		out.MaxU = limit
	}

	out.MaxPositionCap = a.bounds.DefaultPositionCap
	if proposal.MaxPositionCap != nil && !math.IsNaN(*proposal.MaxPositionCap) {
		out.MaxPositionCap = *proposal.MaxPositionCap
	}
	if limit, ok := adj.Value(DirectiveMaxPositionCap); ok && limit < out.MaxPositionCap {
		note("max_position_cap: %.2f → %.2f [%s]", out.MaxPositionCap, limit, adj.Binding(DirectiveMaxPositionCap))
		out.MaxPositionCap = limit
	}
	if clamped := clamp(out.MaxPositionCap, a.bounds.PositionCapMin, a.bounds.PositionCapMax); clamped != out.MaxPositionCap {
		note("max_position_cap: %.2f → %.2f [range clamp]", out.MaxPositionCap, clamped)
		out.MaxPositionCap = clamped
	}

	// ==========================================================================
	// Escalation
	// ==========================================================================

	if adj.Has(DirectiveForceEscalation) {
		out.EscalationForced = true
		for _, id := range adj.Sources(DirectiveForceEscalation) {
			out.EscalationReason = appendUnique(out.EscalationReason, "hard constraint: "+id)
		}
		note("escalation: FORCED [%s]", sources(adj, DirectiveForceEscalation))
	}

	// ==========================================================================
	// Buy halts
	// ==========================================================================

	var halts []string
	for _, d := range []Directive{DirectiveHaltNewBuy, DirectiveHaltAllBuy} {
		halts = append(halts, adj.Sources(d)...)
	}
	if len(halts) > 0 {
		if out.RecommendedAction != domain.ActionHold {
			note("action: %s → %s [%s]", actionOrNone(out.RecommendedAction), domain.ActionHold, strings.Join(halts, ","))
		}
		out.RecommendedAction = domain.ActionHold
		out.SuppressBuys = true
		out.HaltReason = strings.Join(halts, ",")
		note("new buys: SUPPRESSED [%s]", out.HaltReason)
	}
	if adj.Has(DirectiveNoNewPosition) {
		out.SuppressBuys = true
		if out.HaltReason == "" {
			out.HaltReason = sources(adj, DirectiveNoNewPosition)
		}
		note("no_new_position: ON [%s]", sources(adj, DirectiveNoNewPosition))
	}

	// ==========================================================================
	// Posture flags, floors and rates
	// ==========================================================================

	if adj.Has(DirectiveForceDefensive) {
		out.ForceDefensive = true
		note("force_defensive: ON [%s]", sources(adj, DirectiveForceDefensive))
	}
	if adj.Has(DirectiveExecuteExitPlan) {
		out.ExecuteExitPlan = true
		note("execute_exit_plan: ON [%s]", sources(adj, DirectiveExecuteExitPlan))
	}
	if adj.Has(DirectivePhaseOutMode) {
		out.PhaseOutMode = true
		note("phase_out_mode: ON [%s]", sources(adj, DirectivePhaseOutMode))
	}
	if floor, ok := adj.Value(DirectiveRiskOverlayLevelMin); ok && int(floor) > out.RiskOverlayLevel {
		note("risk_overlay_level: %d → %d [%s]", out.RiskOverlayLevel, int(floor), adj.Binding(DirectiveRiskOverlayLevelMin))
		out.RiskOverlayLevel = int(floor)
	}
	if rate, ok := adj.Value(DirectiveWeeklyReduceRate); ok && rate > out.WeeklyReduceRate {
		note("weekly_reduce_rate: %.2f [%s]", rate, adj.Binding(DirectiveWeeklyReduceRate))
		out.WeeklyReduceRate = rate
	}

	// ==========================================================================
	// Mathematical corrections
	// ==========================================================================

	if adj.Has(DirectiveNormalizeWeights) {
		weights, fromBaseline := normalizeWeights(out.FactorWeights)
		out.FactorWeights = weights
		if fromBaseline {
			note("factor_weights: replaced with baseline [%s]", sources(adj, DirectiveNormalizeWeights))
		} else {
			note("factor_weights: normalized to 1.0 [%s]", sources(adj, DirectiveNormalizeWeights))
		}
	}
	if adj.Has(DirectiveRejectBuyLadder) && out.BuyLadder != nil {
		out.BuyLadder = nil
		note("buy_ladder: REJECTED [%s]", sources(adj, DirectiveRejectBuyLadder))
	}

	if len(out.ConstraintOverrides) > 0 {
		a.log.Debug().
			Str("ticker", ec.Ticker).
			Int("overrides", len(out.ConstraintOverrides)).
			Msg("Constraint adjustments applied")
	}

	return out
}

func downgrade(cat domain.Category) (domain.Category, bool) {
	switch cat {
	case domain.Cat3:
		return domain.Cat2, true
	case domain.Cat2:
		return domain.Cat1, true
	default:
		return cat, false
	}
}

// normalizeWeights rescales non-negative weights to sum to 1. Weights that cannot be
// rescaled (empty, negative, non-finite or zero sum) are replaced with the baseline.
func normalizeWeights(weights map[string]float64) (map[string]float64, bool) {
	values := make([]float64, 0, len(weights))
	for _, v := range weights {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return BaselineWeights(), true
		}
		values = append(values, v)
	}
	sum := floats.Sum(values)
	if len(values) == 0 || sum <= 0 {
		return BaselineWeights(), true
	}

	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v / sum
	}
	return out, false
}

func sources(adj *AdjustmentSet, d Directive) string {
	return strings.Join(adj.Sources(d), ",")
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func copyWeights(weights map[string]float64) map[string]float64 {
	if weights == nil {
		return nil
	}
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func actionOrNone(a domain.Action) string {
	if a == "" {
		return "NONE"
	}
	return string(a)
}
