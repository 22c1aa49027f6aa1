package testing

import (
	"time"

	"github.com/aristath/governor/internal/domain"
)

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

// NewCalmContext returns an evaluation context that triggers no hard constraint
func NewCalmContext(ticker string) domain.EvaluationContext {
	return domain.EvaluationContext{
		Ticker:           ticker,
		DefconLevel:      4,
		TimePosition:     domain.TimePositionMid,
		TurningPointRisk: "LOW",
		CurrentPrice:     100,
		ATR:              2,
		VIX:              Float(14),
		MarketRegime:     "BULL_MARKET",
	}
}

// NewProposalFixture returns a well-formed proposal that passes every bound for a
// price of 100
func NewProposalFixture() *domain.AIStrategyProposal {
	return &domain.AIStrategyProposal{
		Cat:            domain.Cat2,
		MaxU:           Float(0.8),
		MaxPositionCap: Float(0.10),
		FactorWeights: map[string]float64{
			"fundamental": 0.30,
			"chips":       0.25,
			"tech":        0.25,
			"macro":       0.10,
			"sentiment":   0.10,
		},
		BuyLadder:         &domain.BuyLadder{Buy1: 98, Buy2: 95, Buy3: 92},
		RecommendedAction: domain.ActionBuy,
		Reasoning:         "trend intact",
	}
}

// NewOrderPlanFixture returns a two-buy one-sell order plan
func NewOrderPlanFixture() []domain.OrderPlanEntry {
	return []domain.OrderPlanEntry{
		{Side: domain.TradeSideBuy, OrderType: "LIMIT", LimitPrice: Float(98), QtyPercent: Float(0.5), TimeInForce: "GTC"},
		{Side: domain.TradeSideBuy, OrderType: "LIMIT", LimitPrice: Float(95), QtyPercent: Float(0.5), TimeInForce: "GTC"},
		{Side: domain.TradeSideSell, OrderType: "STOP", Trigger: Float(90), QtyPercent: Float(1.0)},
	}
}

// NewMarketFixture returns a quiet market snapshot around price
func NewMarketFixture(price float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		CurrentPrice: price,
		ATR:          2,
		MA20:         price,
		AvgVolume20d: 1_000_000,
		LatestVolume: 1_000_000,
	}
}

// NewParabolicMarketFixture returns the XYZ snapshot that trips the parabolic exhaustion override
func NewParabolicMarketFixture() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		CurrentPrice: 131,
		ATR:          4,
		MA20:         100,
		AvgVolume20d: 100,
		LatestVolume: 210,
	}
}

// NewInstrumentInput returns a complete calm input for ticker
func NewInstrumentInput(ticker string) domain.InstrumentInput {
	return domain.InstrumentInput{
		Ticker:   ticker,
		Context:  NewCalmContext(ticker),
		Proposal: NewProposalFixture(),
		Market:   NewMarketFixture(100),
	}
}

// NewScenarioRecords returns n records tagged with tags; the first failures records
// carry a losing result summary.
func NewScenarioRecords(n, failures int, tags []string, start time.Time) []domain.ScenarioRecord {
	records := make([]domain.ScenarioRecord, 0, n)
	for i := 0; i < n; i++ {
		summary := "Return: 4.20%"
		if i < failures {
			summary = "MDD: -18.00% stop-out"
		}
		records = append(records, domain.ScenarioRecord{
			MarketTags:       append([]string(nil), tags...),
			ExecutiveSummary: "fixture",
			ResultSummary:    summary,
			EvidenceIDs:      []string{},
			CreatedAt:        start.Add(time.Duration(i) * time.Hour),
		})
	}
	return records
}
