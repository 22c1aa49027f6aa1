package scenarios

import (
	"fmt"
	"math"

	"github.com/aristath/governor/internal/domain"
)

// Outcome is the measured result of a past strategy, as reported by the
// outcome recorder. Return and MDD are fractions (0.042 is 4.2%).
type Outcome struct {
	Return      *float64 `json:"return,omitempty"`
	MDD         *float64 `json:"mdd,omitempty"`
	Lesson      string   `json:"lesson,omitempty"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

// ResultSummary renders an outcome as "Return: 4.20%", "MDD: -18.00%" or "Unknown".
// A zero return falls through to the drawdown.
func ResultSummary(o Outcome) string {
	switch {
	case o.Return != nil && *o.Return != 0:
		return fmt.Sprintf("Return: %.2f%%", *o.Return*100)
	case o.MDD != nil && *o.MDD != 0:
		return fmt.Sprintf("MDD: %.2f%%", *o.MDD*100)
	default:
		return "Unknown"
	}
}

// NewRecord builds the record the outcome recorder appends for a finished strategy
func NewRecord(tags []string, executiveSummary string, o Outcome) domain.ScenarioRecord {
	rec := domain.ScenarioRecord{
		MarketTags:       append([]string{}, tags...),
		ExecutiveSummary: executiveSummary,
		Lesson:           o.Lesson,
		ResultSummary:    ResultSummary(o),
		EvidenceIDs:      append([]string{}, o.EvidenceIDs...),
	}
	if o.Return != nil {
		pct := math.Round(*o.Return*1e4) / 1e2
		rec.ReturnPct = &pct
	}
	return rec
}
