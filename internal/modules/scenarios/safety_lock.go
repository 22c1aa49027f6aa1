package scenarios

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
)

var (
	failureVocabulary = regexp.MustCompile(`(?i)(loss|fail|drawdown|mdd|stop[- ]?out|虧損|失敗)`)
	negativeReturn    = regexp.MustCompile(`(?i)return:\s*-\s*\d`)
)

// IsFailure reports whether a recorded outcome counts as a failure: a negative
// return or a summary using the failure vocabulary.
func IsFailure(rec domain.ScenarioRecord) bool {
	if rec.ReturnPct != nil && *rec.ReturnPct < 0 {
		return true
	}
	return failureVocabulary.MatchString(rec.ResultSummary) || negativeReturn.MatchString(rec.ResultSummary)
}

// SafetyLockEvaluator throttles exposure when most historical analogues of the
// current market state ended badly. It is advisory-grade and fails open.
type SafetyLockEvaluator struct {
	reader Reader
	params config.SafetyLockParams
	log    zerolog.Logger
}

// NewSafetyLockEvaluator creates an evaluator over reader. Pass a Snapshot to pin
// the evaluation to one cycle.
func NewSafetyLockEvaluator(reader Reader, params *config.Params, log zerolog.Logger) *SafetyLockEvaluator {
	if params == nil {
		params = config.DefaultParams()
	}
	return &SafetyLockEvaluator{
		reader: reader,
		params: params.SafetyLock,
		log:    log.With().Str("component", "safety_lock").Logger(),
	}
}

// Check computes the Safety Lock for ec. Storage errors yield an inactive result.
func (e *SafetyLockEvaluator) Check(ctx context.Context, ec domain.EvaluationContext) domain.SafetyLockResult {
	sig := Extract(ec)

	analogues, err := e.reader.FindSimilar(ctx, sig, e.params.MaxAnalogues)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("ticker", ec.Ticker).
			Msg("Scenario read failed, safety lock disabled for this instrument")
		return domain.SafetyLockResult{
			Reason:    fmt.Sprintf("scenario memory unavailable: %v", err),
			Exemplars: []domain.ScoredScenario{},
		}
	}

	if len(analogues) == 0 {
		return domain.SafetyLockResult{
			Reason:    "no similar historical scenarios",
			Exemplars: []domain.ScoredScenario{},
		}
	}

	failures := 0
	for _, a := range analogues {
		if IsFailure(a.Record) {
			failures++
		}
	}
	mortality := float64(failures) / float64(len(analogues))

	result := domain.SafetyLockResult{
		MortalityRate: mortality,
		Analogues:     len(analogues),
		Exemplars:     []domain.ScoredScenario{},
	}

	if mortality < e.params.MortalityThreshold {
		result.Reason = fmt.Sprintf("mortality %s of %d analogues below threshold %s",
			percent(mortality), len(analogues), percent(e.params.MortalityThreshold))
		return result
	}

	exposure := e.MaxExposure(mortality)
	result.Active = true
	result.MaxExposure = &exposure
	result.Reason = fmt.Sprintf("mortality %s of %d analogues at or above threshold %s",
		percent(mortality), len(analogues), percent(e.params.MortalityThreshold))

	n := e.params.ExemplarCount
	if n > len(analogues) {
		n = len(analogues)
	}
	result.Exemplars = append(result.Exemplars, analogues[:n]...)

	e.log.Info().
		Str("ticker", ec.Ticker).
		Float64("mortality_rate", mortality).
		Float64("max_exposure", exposure).
		Int("analogues", len(analogues)).
		Msg("Safety lock triggered")

	return result
}

// MaxExposure applies the linear decay max(floor, base − (m − threshold) × slope),
// rounded to four decimals.
func (e *SafetyLockEvaluator) MaxExposure(mortality float64) float64 {
	p := e.params
	exposure := math.Max(p.ExposureFloor, p.ExposureBase-(mortality-p.MortalityThreshold)*p.ExposureSlope)
	return math.Round(exposure*1e4) / 1e4
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}
