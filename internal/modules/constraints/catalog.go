package constraints

import (
	"fmt"
	"math"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Level is the scope a rule governs. Rule groups are evaluated in this order.
type Level string

const (
	LevelSystem    Level = "SYSTEM"
	LevelIndustry  Level = "INDUSTRY"
	LevelStock     Level = "STOCK"
	LevelMathBound Level = "MATH_BOUND"
)

var predicateLevels = []Level{LevelSystem, LevelIndustry, LevelStock}

// Rule is an immutable hard constraint: when Predicate holds every Effect applies
type Rule struct {
	ID          string
	Level       Level
	Description string
	Predicate   func(ec domain.EvaluationContext) bool
	Effects     []Effect
}

// Validator is a MATH_BOUND check on the proposal itself. Check returns false plus
// an explicit message when the bound is broken; Corrective directives are then
// contributed to the adjustment set.
type Validator struct {
	ID          string
	Description string
	Check       func(p *domain.AIStrategyProposal, ec domain.EvaluationContext) (bool, string)
	Corrective  []Effect
}

// Catalog is the process-wide read-only set of rules and validators
type Catalog struct {
	rules      map[Level][]Rule
	validators []Validator
	params     *config.Params
}

// NewCatalog builds a catalog from explicit rules and validators. Rules keep their
// relative order within a level.
func NewCatalog(params *config.Params, rules []Rule, validators []Validator) *Catalog {
	if params == nil {
		params = config.DefaultParams()
	}
	c := &Catalog{
		rules:      make(map[Level][]Rule),
		validators: append([]Validator(nil), validators...),
		params:     params,
	}
	for _, r := range rules {
		c.rules[r.Level] = append(c.rules[r.Level], r)
	}
	return c
}

// Rules returns the rules of one level in catalog order
func (c *Catalog) Rules(level Level) []Rule {
	return append([]Rule(nil), c.rules[level]...)
}

// Validators returns the MATH_BOUND validators in catalog order
func (c *Catalog) Validators() []Validator {
	return append([]Validator(nil), c.validators...)
}

// Params returns the parameters the catalog was built with
func (c *Catalog) Params() *config.Params {
	return c.params
}

// TriggeredRule is a rule whose predicate holds for a context
type TriggeredRule struct {
	Level       Level    `json:"level"`
	RuleID      string   `json:"rule_id"`
	Description string   `json:"description"`
	Effects     []string `json:"effects"`
}

// Triggered lists the predicate rules that hold for ec, in evaluation order.
// Used to preview the constraints before a proposal exists.
func (c *Catalog) Triggered(ec domain.EvaluationContext) []TriggeredRule {
	triggered := make([]TriggeredRule, 0)
	for _, level := range predicateLevels {
		for _, rule := range c.rules[level] {
			if !rule.Predicate(ec) {
				continue
			}
			triggered = append(triggered, TriggeredRule{
				Level:       level,
				RuleID:      rule.ID,
				Description: rule.Description,
				Effects:     describeEffects(rule.Effects, ec),
			})
		}
	}
	return triggered
}

func describeEffects(effects []Effect, ec domain.EvaluationContext) []string {
	out := make([]string, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Describe(ec))
	}
	return out
}

// DefaultCatalog returns the production hard-constraint catalog
func DefaultCatalog(params *config.Params) *Catalog {
	if params == nil {
		params = config.DefaultParams()
	}
	b := params.Bounds

	rules := []Rule{
		// ==========================================================================
		// SYSTEM
		// ==========================================================================
		{
			ID:          "late_stage_high_risk",
			Level:       LevelSystem,
			Description: "late cycle with high turning point risk: no Cat3, reduced exposure",
			Predicate: func(ec domain.EvaluationContext) bool {
				return ec.TimePosition == domain.TimePositionLate && ec.TurningPointRisk == domain.RiskHigh
			},
			Effects: []Effect{
				Flag(DirectiveForbidCat3),
				Static(DirectiveMaxU, 0.50),
				Static(DirectiveMaxPositionCap, 0.05),
			},
		},
		{
			ID:          "defcon_1",
			Level:       LevelSystem,
			Description: "DEFCON 1: halt new buys, defensive posture",
			Predicate: func(ec domain.EvaluationContext) bool {
				return ec.DefconLevel == 1
			},
			Effects: []Effect{
				Flag(DirectiveHaltNewBuy),
				Static(DirectiveMaxU, 0.30),
				Flag(DirectiveForceDefensive),
			},
		},
		{
			ID:          "emergency_exit",
			Level:       LevelSystem,
			Description: "emergency exit triggered: halt all buys, execute the exit plan",
			Predicate: func(ec domain.EvaluationContext) bool {
				return ec.EmergencyExitTriggered
			},
			Effects: []Effect{
				Flag(DirectiveHaltAllBuy),
				Flag(DirectiveExecuteExitPlan),
			},
		},

		// ==========================================================================
		// INDUSTRY
		// ==========================================================================
		{
			ID:          "divergence_alert",
			Level:       LevelIndustry,
			Description: "industry divergence: raise the risk overlay, downgrade category",
			Predicate: func(ec domain.EvaluationContext) bool {
				return ec.DivergenceAlert
			},
			Effects: []Effect{
				Static(DirectiveRiskOverlayLevelMin, 2),
				Flag(DirectiveDowngradeCat),
			},
		},
		{
			ID:          "industry_phase_out",
			Level:       LevelIndustry,
			Description: "industry advantage lost: phase out, no new positions",
			Predicate: func(ec domain.EvaluationContext) bool {
				return ec.IndustryAdvantageLost
			},
			Effects: []Effect{
				Flag(DirectivePhaseOutMode),
				Flag(DirectiveNoNewPosition),
				Static(DirectiveWeeklyReduceRate, 0.10),
			},
		},

		// ==========================================================================
		// STOCK
		// ==========================================================================
		{
			ID:          "insider_selling",
			Level:       LevelStock,
			Description: "insider selling or abnormal 13F distribution: escalate, cap position",
			Predicate: func(ec domain.EvaluationContext) bool {
				return ec.InsiderSellingAlert || ec.AbnormalDistribution
			},
			Effects: []Effect{
				Flag(DirectiveForceEscalation),
				Static(DirectiveMaxPositionCap, 0.03),
			},
		},
		{
			ID:          "safety_lock",
			Level:       LevelStock,
			Description: "historical analogues mostly failed: exposure throttled",
			Predicate: func(ec domain.EvaluationContext) bool {
				return ec.SafetyLockActive
			},
			Effects: []Effect{
				Derived(DirectiveMaxPositionCap, func(ec domain.EvaluationContext) float64 {
					if ec.SafetyLockMaxExposure == nil {
						return b.SafetyLockDefaultCap
					}
					return *ec.SafetyLockMaxExposure
				}),
			},
		},
	}

	validators := []Validator{
		{
			ID:          "factor_weights_sum",
			Description: "factor weights must sum to 1",
			Check: func(p *domain.AIStrategyProposal, _ domain.EvaluationContext) (bool, string) {
				if p == nil || len(p.FactorWeights) == 0 {
					return true, ""
				}
				values := weightValues(p.FactorWeights)
				for _, v := range values {
					if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
						return false, fmt.Sprintf("factor weights must be finite and non-negative, got %v", v)
					}
				}
				sum := floats.Sum(values)
				if math.Abs(sum-1) > b.WeightTolerance {
					return false, fmt.Sprintf("factor weights sum to %.4f, expected 1.0 ± %.2f", sum, b.WeightTolerance)
				}
				return true, ""
			},
			Corrective: []Effect{Flag(DirectiveNormalizeWeights)},
		},
		{
			ID:          "position_cap_range",
			Description: "max_position_cap must lie within the allowed range",
			Check: func(p *domain.AIStrategyProposal, _ domain.EvaluationContext) (bool, string) {
				if p == nil || p.MaxPositionCap == nil {
					return true, ""
				}
				v := *p.MaxPositionCap
				if math.IsNaN(v) || v < b.PositionCapMin || v > b.PositionCapMax {
					return false, fmt.Sprintf("max_position_cap %.4f outside [%.2f, %.2f]", v, b.PositionCapMin, b.PositionCapMax)
				}
				return true, ""
			},
		},
		{
			ID:          "buy_ladder_order",
			Description: "buy ladder must be strictly descending, positive and near the current price",
			Check: func(p *domain.AIStrategyProposal, ec domain.EvaluationContext) (bool, string) {
				if p == nil || p.BuyLadder == nil {
					return true, ""
				}
				l := p.BuyLadder
				if !(l.Buy1 > l.Buy2 && l.Buy2 > l.Buy3 && l.Buy3 > 0) {
					return false, fmt.Sprintf("buy ladder must satisfy buy1 > buy2 > buy3 > 0, got %.2f/%.2f/%.2f", l.Buy1, l.Buy2, l.Buy3)
				}
				if ec.CurrentPrice > 0 {
					ceiling := ec.CurrentPrice * b.LadderCeilingMultiplier
					if l.Buy1 > ceiling {
						return false, fmt.Sprintf("buy1 %.2f above ceiling %.2f", l.Buy1, ceiling)
					}
				}
				return true, ""
			},
			Corrective: []Effect{Flag(DirectiveRejectBuyLadder)},
		},
	}

	return NewCatalog(params, rules, validators)
}

func weightValues(weights map[string]float64) []float64 {
	values := make([]float64, 0, len(weights))
	for _, name := range sortedKeys(weights) {
		values = append(values, weights[name])
	}
	return values
}
