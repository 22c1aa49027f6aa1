package domain

import "time"

// ScenarioRecord is one entry of the append-only scenario memory log
type ScenarioRecord struct {
	ScenarioID       string    `json:"scenario_id"`
	MarketTags       []string  `json:"market_tags"`
	ExecutiveSummary string    `json:"executive_summary"`
	Lesson           string    `json:"lesson"`
	ResultSummary    string    `json:"result_summary"`
	ReturnPct        *float64  `json:"return_pct,omitempty"`
	EvidenceIDs      []string  `json:"evidence_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

// ScoredScenario is a ScenarioRecord with its similarity to a query signature
type ScoredScenario struct {
	Record     ScenarioRecord `json:"record"`
	Similarity float64        `json:"similarity"`
}

// SafetyLockResult is the outcome of a historical-failure check
type SafetyLockResult struct {
	Active        bool             `json:"active"`
	MortalityRate float64          `json:"mortality_rate"`
	MaxExposure   *float64         `json:"max_exposure"`
	Reason        string           `json:"reason"`
	Analogues     int              `json:"analogues"`
	Exemplars     []ScoredScenario `json:"exemplars"`
}

// Summary returns the compact form attached to a TradeAction
func (r SafetyLockResult) Summary() *SafetyLockSummary {
	return &SafetyLockSummary{
		Active:        r.Active,
		MortalityRate: r.MortalityRate,
		MaxExposure:   r.MaxExposure,
		Reason:        r.Reason,
		Analogues:     r.Analogues,
	}
}
