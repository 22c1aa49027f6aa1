package testing

import (
	"context"
	"sort"
	"sync"

	"github.com/aristath/governor/internal/domain"
)

// MockHumanLockSource is an in-memory implementation of domain.HumanLockSource
type MockHumanLockSource struct {
	mu    sync.RWMutex
	locks map[string]domain.HumanLockDirective
	err   error
	calls int
}

// NewMockHumanLockSource creates a new mock lock source
func NewMockHumanLockSource() *MockHumanLockSource {
	return &MockHumanLockSource{locks: make(map[string]domain.HumanLockDirective)}
}

// SetLock sets the directive returned for its ticker
func (m *MockHumanLockSource) SetLock(lock domain.HumanLockDirective) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[lock.Ticker] = lock
}

// SetError sets the error to return
func (m *MockHumanLockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many lookups were made
func (m *MockHumanLockSource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Get returns the directive for ticker, or nil
func (m *MockHumanLockSource) Get(ctx context.Context, ticker string) (*domain.HumanLockDirective, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	lock, ok := m.locks[ticker]
	if !ok {
		return nil, nil
	}
	return &lock, nil
}

// MockSafetyLockChecker returns a fixed SafetyLockResult per ticker
type MockSafetyLockChecker struct {
	mu       sync.RWMutex
	results  map[string]domain.SafetyLockResult
	fallback domain.SafetyLockResult
	checked  []string
}

// NewMockSafetyLockChecker creates a checker that reports inactive unless configured
func NewMockSafetyLockChecker() *MockSafetyLockChecker {
	return &MockSafetyLockChecker{
		results:  make(map[string]domain.SafetyLockResult),
		fallback: domain.SafetyLockResult{Reason: "no analogues"},
	}
}

// SetResult sets the result returned for ticker
func (m *MockSafetyLockChecker) SetResult(ticker string, result domain.SafetyLockResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[ticker] = result
}

// Checked returns the tickers checked so far, in call order
func (m *MockSafetyLockChecker) Checked() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.checked...)
}

// Check implements domain.SafetyLockChecker
func (m *MockSafetyLockChecker) Check(ctx context.Context, ec domain.EvaluationContext) domain.SafetyLockResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, ec.Ticker)
	if result, ok := m.results[ec.Ticker]; ok {
		return result
	}
	return m.fallback
}

// MockTradeActionLedger is an in-memory implementation of domain.TradeActionLedger
type MockTradeActionLedger struct {
	mu        sync.RWMutex
	actions   map[string]map[string]domain.TradeAction
	commitErr error
}

// NewMockTradeActionLedger creates an empty ledger
func NewMockTradeActionLedger() *MockTradeActionLedger {
	return &MockTradeActionLedger{actions: make(map[string]map[string]domain.TradeAction)}
}

// SetCommitError makes every subsequent Commit fail
func (m *MockTradeActionLedger) SetCommitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

// Committed implements domain.TradeActionLedger
func (m *MockTradeActionLedger) Committed(ctx context.Context, strategyVersion string) (map[string]domain.TradeAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.TradeAction, len(m.actions[strategyVersion]))
	for ticker, action := range m.actions[strategyVersion] {
		out[ticker] = action
	}
	return out, nil
}

// Commit implements domain.TradeActionLedger
func (m *MockTradeActionLedger) Commit(ctx context.Context, action domain.TradeAction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return false, m.commitErr
	}
	byTicker, ok := m.actions[action.StrategyVersion]
	if !ok {
		byTicker = make(map[string]domain.TradeAction)
		m.actions[action.StrategyVersion] = byTicker
	}
	if _, exists := byTicker[action.Ticker]; exists {
		return false, nil
	}
	byTicker[action.Ticker] = action
	return true, nil
}

// Tickers returns the committed tickers for a version, sorted
func (m *MockTradeActionLedger) Tickers(strategyVersion string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tickers := make([]string, 0, len(m.actions[strategyVersion]))
	for ticker := range m.actions[strategyVersion] {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// MockInstrumentSource returns a fixed set of inputs
type MockInstrumentSource struct {
	Inputs []domain.InstrumentInput
	Err    error
}

// Load implements domain.InstrumentSource
func (m *MockInstrumentSource) Load(ctx context.Context) ([]domain.InstrumentInput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Inputs, nil
}
