// Package weekly runs the weekly governance cycle: it resolves every instrument,
// commits each TradeAction to the ledger and assembles the weekly document.
package weekly

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/governor/internal/domain"
)

// StrategyVersion returns the cycle id for t: W<ISO year>-<ISO week>, e.g. W2026-03.
// It is also the idempotency key of every TradeAction in the cycle.
func StrategyVersion(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("W%d-%02d", year, week)
}

// Assemble wraps the per-instrument actions into the weekly document, sorted by
// ticker so the result does not depend on processing order. An empty version is
// derived from generatedAt.
func Assemble(strategyVersion string, actions []domain.TradeAction, generatedAt time.Time) domain.WeeklyTradeActions {
	if strategyVersion == "" {
		strategyVersion = StrategyVersion(generatedAt)
	}

	sorted := make([]domain.TradeAction, len(actions))
	copy(sorted, actions)
	for i := range sorted {
		sorted[i].Normalize()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Ticker < sorted[j].Ticker
	})

	return domain.WeeklyTradeActions{
		GeneratedAt:        generatedAt.UTC().Truncate(time.Second),
		StrategyVersion:    strategyVersion,
		WeeklyTradeActions: sorted,
	}
}
