package domain

import "context"

// HumanLockSource looks up manual directives by ticker.
// Returns nil (not an error) when no directive exists.
// This interface breaks the dependency between the resolution and humanlock packages.
type HumanLockSource interface {
	Get(ctx context.Context, ticker string) (*HumanLockDirective, error)
}

// SafetyLockChecker computes the historical-failure throttle for one context.
// Implementations fail open: storage problems yield an inactive result, never an error.
type SafetyLockChecker interface {
	Check(ctx context.Context, ec EvaluationContext) SafetyLockResult
}

// TradeActionLedger persists committed TradeActions keyed by (ticker, strategy_version)
type TradeActionLedger interface {
	// Committed returns the TradeActions already committed for a strategy version, keyed by ticker
	Committed(ctx context.Context, strategyVersion string) (map[string]TradeAction, error)

	// Commit stores the action atomically. It returns false when an action for the same
	// (ticker, strategy_version) was already committed; the stored action is kept.
	Commit(ctx context.Context, action TradeAction) (bool, error)
}

// InstrumentSource supplies the per-instrument inputs for one weekly cycle
type InstrumentSource interface {
	Load(ctx context.Context) ([]InstrumentInput, error)
}
