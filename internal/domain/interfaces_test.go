package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHumanLockSourceInterface tests that HumanLockSource can be satisfied by a simple map lookup
func TestHumanLockSourceInterface(t *testing.T) {
	var source HumanLockSource = mockHumanLockSource{
		"ACME": {Ticker: "ACME", Locked: true, Action: ActionHold},
	}

	lock, err := source.Get(context.Background(), "ACME")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.True(t, lock.Locked)

	// Missing directives are nil, not an error
	lock, err = source.Get(context.Background(), "BOLT")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

// TestTradeActionLedgerInterface tests the write-once contract of TradeActionLedger
func TestTradeActionLedgerInterface(t *testing.T) {
	var ledger TradeActionLedger = &mockTradeActionLedger{actions: make(map[string]TradeAction)}
	ctx := context.Background()

	first := TradeAction{Ticker: "ACME", StrategyVersion: "W2026-42", Reasoning: "first"}
	ok, err := ledger.Commit(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Commit(ctx, TradeAction{Ticker: "ACME", StrategyVersion: "W2026-42", Reasoning: "second"})
	require.NoError(t, err)
	assert.False(t, ok)

	committed, err := ledger.Committed(ctx, "W2026-42")
	require.NoError(t, err)
	assert.Equal(t, "first", committed["ACME"].Reasoning)
}

// TestSafetyLockCheckerInterface tests that SafetyLockChecker is satisfiable
func TestSafetyLockCheckerInterface(t *testing.T) {
	var _ SafetyLockChecker = mockSafetyLockChecker{}
}

// TestInstrumentSourceInterface tests that InstrumentSource is satisfiable
func TestInstrumentSourceInterface(t *testing.T) {
	var _ InstrumentSource = mockInstrumentSource(nil)
}

type mockHumanLockSource map[string]*HumanLockDirective

func (m mockHumanLockSource) Get(ctx context.Context, ticker string) (*HumanLockDirective, error) {
	return m[ticker], nil
}

type mockTradeActionLedger struct {
	actions map[string]TradeAction
}

func (m *mockTradeActionLedger) Committed(ctx context.Context, strategyVersion string) (map[string]TradeAction, error) {
	out := make(map[string]TradeAction)
	for _, a := range m.actions {
		if a.StrategyVersion == strategyVersion {
			out[a.Ticker] = a
		}
	}
	return out, nil
}

func (m *mockTradeActionLedger) Commit(ctx context.Context, action TradeAction) (bool, error) {
	key := action.Ticker + "|" + action.StrategyVersion
	if _, exists := m.actions[key]; exists {
		return false, nil
	}
	m.actions[key] = action
	return true, nil
}

type mockSafetyLockChecker struct{}

func (mockSafetyLockChecker) Check(ctx context.Context, ec EvaluationContext) SafetyLockResult {
	return SafetyLockResult{}
}

type mockInstrumentSource []InstrumentInput

func (m mockInstrumentSource) Load(ctx context.Context) ([]InstrumentInput, error) {
	return m, nil
}
