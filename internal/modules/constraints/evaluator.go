package constraints

import (
	"fmt"
	"sort"

	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
)

// Evaluation is the outcome of evaluating the catalog for one instrument
type Evaluation struct {
	Violations  []domain.Violation `json:"violations"`
	Adjustments *AdjustmentSet     `json:"adjustments"`
}

// Evaluator runs the catalog against a context and proposal
type Evaluator struct {
	catalog *Catalog
	log     zerolog.Logger
}

// NewEvaluator creates a new constraint evaluator
func NewEvaluator(catalog *Catalog, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		catalog: catalog,
		log:     log.With().Str("component", "constraint_evaluator").Logger(),
	}
}

// Catalog returns the catalog the evaluator runs
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// Evaluate runs SYSTEM, INDUSTRY and STOCK rules in catalog order, then the
// MATH_BOUND validators. It never fails: a proposal that cannot be checked is
// recorded as a violation.
func (e *Evaluator) Evaluate(ec domain.EvaluationContext, proposal *domain.AIStrategyProposal) Evaluation {
	result := Evaluation{
		Violations:  make([]domain.Violation, 0),
		Adjustments: NewAdjustmentSet(),
	}

	for _, level := range predicateLevels {
		for _, rule := range e.catalog.rules[level] {
			if !e.holds(rule, ec) {
				continue
			}

			for _, effect := range rule.Effects {
				result.Adjustments.Add(effect.Directive, Contribution{
					RuleID: rule.ID,
					Kind:   effect.Kind,
					Value:  effect.Resolve(ec),
				})
			}
			result.Violations = append(result.Violations, domain.Violation{
				Level:   string(level),
				RuleID:  rule.ID,
				Effects: describeEffects(rule.Effects, ec),
			})

			e.log.Info().
				Str("ticker", ec.Ticker).
				Str("rule_id", rule.ID).
				Str("level", string(level)).
				Msg("Hard constraint triggered")
		}
	}

	for _, v := range e.catalog.validators {
		ok, msg := e.check(v, proposal, ec)
		if ok {
			continue
		}

		for _, effect := range v.Corrective {
			result.Adjustments.Add(effect.Directive, Contribution{
				RuleID: v.ID,
				Kind:   effect.Kind,
				Value:  effect.Resolve(ec),
			})
		}
		result.Violations = append(result.Violations, domain.Violation{
			Level:   string(LevelMathBound),
			RuleID:  v.ID,
			Effects: describeEffects(v.Corrective, ec),
			Error:   msg,
		})

		e.log.Warn().
			Str("ticker", ec.Ticker).
			Str("rule_id", v.ID).
			Str("error", msg).
			Msg("Mathematical bound violated")
	}

	return result
}

// holds evaluates a predicate; a predicate that panics counts as triggered
func (e *Evaluator) holds(rule Rule, ec domain.EvaluationContext) (triggered bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("ticker", ec.Ticker).
				Str("rule_id", rule.ID).
				Interface("panic", r).
				Msg("Rule predicate panicked, applying rule")
			triggered = true
		}
	}()
	return rule.Predicate(ec)
}

// check runs a validator; a panicking validator counts as a failed bound
func (e *Evaluator) check(v Validator, p *domain.AIStrategyProposal, ec domain.EvaluationContext) (ok bool, msg string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			msg = fmt.Sprintf("validator %s could not check the proposal: %v", v.ID, r)
		}
	}()
	return v.Check(p, ec)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
