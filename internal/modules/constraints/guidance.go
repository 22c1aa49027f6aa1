package constraints

import (
	"fmt"
	"math"

	"github.com/aristath/governor/internal/domain"
)

// Factor names used by factor weights
const (
	FactorFundamental = "fundamental"
	FactorChips       = "chips"
	FactorTech        = "tech"
	FactorMacro       = "macro"
	FactorSentiment   = "sentiment"
)

// AllowedDeviation is how far a factor weight may drift from its expected value
// before guidance flags it.
const AllowedDeviation = 0.15

// BaselineWeights returns the default factor weights
func BaselineWeights() map[string]float64 {
	return map[string]float64{
		FactorFundamental: 0.30,
		FactorChips:       0.25,
		FactorTech:        0.25,
		FactorMacro:       0.10,
		FactorSentiment:   0.10,
	}
}

// PriorityRules are the conflict resolution rules handed to the strategy author
var PriorityRules = []string{
	"System-level risk overrides individual stock signals",
	"When chips and fundamentals conflict, chips take precedence",
	"Technicals drive short-term timing, fundamentals drive long-term direction",
	"Hard data outweighs news sentiment",
}

// Scenario is a soft weight shift that applies under certain market conditions
type Scenario struct {
	Name        string
	Description string
	Shift       map[string]float64
	Applies     func(ec domain.EvaluationContext) bool
}

// Suggestion is a scenario that applies to a context, with its suggested weights
type Suggestion struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	SuggestedWeights map[string]float64 `json:"suggested_weights"`
}

var scenarios = []Scenario{
	{
		Name:        "earnings_window",
		Description: "earnings within 1-2 weeks",
		Shift:       map[string]float64{FactorChips: 0.10, FactorFundamental: -0.05, FactorTech: -0.05},
		Applies: func(ec domain.EvaluationContext) bool {
			return ec.EarningsInDays != nil && *ec.EarningsInDays >= 0 && *ec.EarningsInDays <= 14
		},
	},
	{
		Name:        "breakout_pattern",
		Description: "Cat3 breakout on a volume surge",
		Shift:       map[string]float64{FactorTech: 0.15, FactorChips: 0.05, FactorFundamental: -0.10, FactorSentiment: -0.10},
		Applies: func(ec domain.EvaluationContext) bool {
			return ec.TechnicalCategory == domain.Cat3 && ec.VolumeSurge
		},
	},
	{
		Name:        "high_volatility",
		Description: "VIX above 25",
		Shift:       map[string]float64{FactorMacro: 0.10, FactorSentiment: -0.05, FactorTech: -0.05},
		Applies: func(ec domain.EvaluationContext) bool {
			return ec.VIX != nil && *ec.VIX > 25
		},
	},
	{
		Name:        "milestone_verification",
		Description: "milestone pending verification",
		Shift:       map[string]float64{FactorFundamental: 0.15, FactorChips: -0.10, FactorTech: -0.05},
		Applies: func(ec domain.EvaluationContext) bool {
			return ec.MilestonePending
		},
	},
}

// Guidance is the soft layer. It never changes a proposal, it only annotates it.
type Guidance struct {
	baseline  map[string]float64
	scenarios []Scenario
}

// NewGuidance creates the soft guidance layer with the default baseline and scenarios
func NewGuidance() *Guidance {
	return &Guidance{baseline: BaselineWeights(), scenarios: scenarios}
}

// Suggestions returns the scenarios that apply to ec with their suggested weights
func (g *Guidance) Suggestions(ec domain.EvaluationContext) []Suggestion {
	out := make([]Suggestion, 0)
	for _, s := range g.scenarios {
		if !s.Applies(ec) {
			continue
		}
		out = append(out, Suggestion{
			Name:             s.Name,
			Description:      s.Description,
			SuggestedWeights: g.shifted(s.Shift),
		})
	}
	return out
}

// Expected returns the baseline shifted by every applicable scenario
func (g *Guidance) Expected(ec domain.EvaluationContext) map[string]float64 {
	expected := copyWeights(g.baseline)
	for _, s := range g.scenarios {
		if !s.Applies(ec) {
			continue
		}
		for factor, delta := range s.Shift {
			expected[factor] = round2(expected[factor] + delta)
		}
	}
	return expected
}

// Review returns advisory notes for the proposal: applicable scenarios and factor
// weights that drift further than AllowedDeviation from the expected weights.
func (g *Guidance) Review(ec domain.EvaluationContext, proposal *domain.AIStrategyProposal) []string {
	notes := make([]string, 0)
	for _, s := range g.Suggestions(ec) {
		notes = append(notes, fmt.Sprintf("scenario %s: %s", s.Name, s.Description))
	}

	if proposal == nil || len(proposal.FactorWeights) == 0 {
		return notes
	}

	expected := g.Expected(ec)
	for _, factor := range sortedKeys(expected) {
		got, ok := proposal.FactorWeights[factor]
		if !ok {
			continue
		}
		if math.Abs(got-expected[factor]) > AllowedDeviation {
			notes = append(notes, fmt.Sprintf("weight %s %.2f deviates from expected %.2f by more than %.2f",
				factor, got, expected[factor], AllowedDeviation))
		}
	}
	return notes
}

func (g *Guidance) shifted(shift map[string]float64) map[string]float64 {
	out := copyWeights(g.baseline)
	for factor, delta := range shift {
		out[factor] = round2(out[factor] + delta)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
