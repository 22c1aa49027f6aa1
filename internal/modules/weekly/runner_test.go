package weekly

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/events"
	"github.com/aristath/governor/internal/modules/constraints"
	"github.com/aristath/governor/internal/modules/resolution"
	"github.com/aristath/governor/internal/modules/scenarios"
	testingpkg "github.com/aristath/governor/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type runnerFixture struct {
	runner *CycleRunner
	locks  *testingpkg.MockHumanLockSource
	ledger *testingpkg.MockTradeActionLedger
	store  *scenarios.MemoryStore
	bus    *events.Bus
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	params := config.DefaultParams()
	log := zerolog.Nop()

	f := &runnerFixture{
		locks:  testingpkg.NewMockHumanLockSource(),
		ledger: testingpkg.NewMockTradeActionLedger(),
		store:  scenarios.NewMemoryStore(params.Scenario.SimilarityThreshold),
		bus:    events.NewBus(log),
	}
	resolver := resolution.NewResolver(
		f.locks,
		constraints.NewEvaluator(constraints.DefaultCatalog(params), log),
		constraints.NewApplier(params, log),
		constraints.NewGuidance(),
		params,
		log,
	)
	f.runner = NewCycleRunner(resolver, f.store, f.ledger, nil, f.bus, params, log)
	f.runner.SetClock(func() time.Time { return testNow })
	return f
}

// record collects emitted events of the given types
func (f *runnerFixture) record(types ...events.EventType) func() []*events.Event {
	var mu sync.Mutex
	var got []*events.Event
	for _, et := range types {
		f.bus.Subscribe(et, func(e *events.Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, e)
		})
	}
	return func() []*events.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*events.Event(nil), got...)
	}
}

func testInputs(tickers ...string) []domain.InstrumentInput {
	inputs := make([]domain.InstrumentInput, 0, len(tickers))
	for _, ticker := range tickers {
		in := testingpkg.NewInstrumentInput(ticker)
		in.Proposal.OrderPlan = testingpkg.NewOrderPlanFixture()
		inputs = append(inputs, in)
	}
	return inputs
}

func TestRun_OneActionPerInstrument(t *testing.T) {
	f := newRunnerFixture(t)

	result, err := f.runner.Run(context.Background(), testInputs("ZZZ", "AAA"))
	require.NoError(t, err)

	assert.Equal(t, "W2026-42", result.Document.StrategyVersion)
	assert.Equal(t, 2, result.Resolved)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Document.WeeklyTradeActions, 2)
	assert.Equal(t, "AAA", result.Document.WeeklyTradeActions[0].Ticker)
	assert.Equal(t, "ZZZ", result.Document.WeeklyTradeActions[1].Ticker)
	for _, action := range result.Document.WeeklyTradeActions {
		assert.Equal(t, "W2026-42", action.StrategyVersion)
		assert.Equal(t, domain.LayerAIOrderPlan, action.EvaluationLayer)
	}
	assert.Equal(t, []string{"AAA", "ZZZ"}, f.ledger.Tickers("W2026-42"))
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	first, err := f.runner.Run(ctx, testInputs("AAA", "BBB"))
	require.NoError(t, err)

	// Scenario memory and locks change between runs; committed actions must not
	f.locks.SetLock(domain.HumanLockDirective{Ticker: "AAA", Locked: true, Action: domain.ActionSell, Reason: "late"})
	f.runner.SetClock(func() time.Time { return testNow.Add(time.Hour) })

	second, err := f.runner.Run(ctx, testInputs("BBB", "AAA"))
	require.NoError(t, err)

	assert.Equal(t, 2, second.Skipped)
	assert.Zero(t, second.Resolved)
	assert.False(t, first.Document.GeneratedAt.Equal(second.Document.GeneratedAt))

	want, err := json.Marshal(first.Document.WeeklyTradeActions)
	require.NoError(t, err)
	got, err := json.Marshal(second.Document.WeeklyTradeActions)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestRun_ResumesPartiallyCommittedCycle(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	_, err := f.runner.Run(ctx, testInputs("AAA"))
	require.NoError(t, err)

	result, err := f.runner.Run(ctx, testInputs("AAA", "BBB"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Resolved)
	assert.Len(t, result.Document.WeeklyTradeActions, 2)
}

func TestRun_FailedInstrumentsAreNotCommitted(t *testing.T) {
	f := newRunnerFixture(t)
	f.locks.SetError(errors.New("lock store offline"))
	getEvents := f.record(events.InstrumentFailed)

	result, err := f.runner.Run(context.Background(), testInputs("AAA", "BBB"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, f.ledger.Tickers("W2026-42"))
	for _, action := range result.Document.WeeklyTradeActions {
		assert.Equal(t, domain.LayerInstrumentError, action.EvaluationLayer)
		assert.Contains(t, action.Error, "lock store offline")
		assert.Empty(t, action.NewOrders)
	}
	assert.Len(t, getEvents(), 2)

	// Once the lock store recovers the instruments resolve normally
	f.locks.SetError(nil)
	retry, err := f.runner.Run(context.Background(), testInputs("AAA", "BBB"))
	require.NoError(t, err)
	assert.Equal(t, 2, retry.Resolved)
	assert.Zero(t, retry.Skipped)
}

func TestRun_MalformedBatchElementFailsAlone(t *testing.T) {
	f := newRunnerFixture(t)
	inputs, err := DecodeInputs([]byte(
		`[{"ticker":"AAA"},{"ticker":"BBB","context":{"defcon_level":"1"}},{"ticker":"CCC"}]`))
	require.NoError(t, err)

	result, err := f.runner.Run(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Resolved)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Document.WeeklyTradeActions, 3)
	failed := result.Document.WeeklyTradeActions[1]
	assert.Equal(t, "BBB", failed.Ticker)
	assert.Equal(t, domain.LayerInstrumentError, failed.EvaluationLayer)
	assert.Equal(t, []string{"AAA", "CCC"}, f.ledger.Tickers("W2026-42"))
}

func TestRun_MissingTickerFailsAlone(t *testing.T) {
	f := newRunnerFixture(t)
	inputs := append(testInputs("AAA"), domain.InstrumentInput{})

	result, err := f.runner.Run(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Document.WeeklyTradeActions, 2)
	assert.Equal(t, []string{"AAA"}, f.ledger.Tickers("W2026-42"))
}

func TestRun_DuplicateTickersFailClosed(t *testing.T) {
	f := newRunnerFixture(t)
	inputs := testInputs("AAA", "aaa ", "BBB")
	inputs[1].Context.DefconLevel = 1

	result, err := f.runner.Run(context.Background(), inputs)
	require.NoError(t, err)

	require.Len(t, result.Document.WeeklyTradeActions, 2)
	duplicated := result.Document.WeeklyTradeActions[0]
	assert.Equal(t, "AAA", duplicated.Ticker)
	assert.Equal(t, domain.LayerInstrumentError, duplicated.EvaluationLayer)
	assert.Contains(t, duplicated.Error, "appears 2 times")
	assert.Empty(t, duplicated.NewOrders)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"BBB"}, f.ledger.Tickers("W2026-42"))
}

func TestRun_DuplicateTickersIgnoreInputOrder(t *testing.T) {
	inputs := testInputs("AAA", "AAA", "BBB")
	inputs[1].Context.DefconLevel = 1
	reversed := []domain.InstrumentInput{inputs[2], inputs[1], inputs[0]}

	first, err := newRunnerFixture(t).runner.Run(context.Background(), inputs)
	require.NoError(t, err)
	second, err := newRunnerFixture(t).runner.Run(context.Background(), reversed)
	require.NoError(t, err)

	a, err := json.Marshal(first.Document)
	require.NoError(t, err)
	b, err := json.Marshal(second.Document)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestRun_CommitErrorAbortsCycle(t *testing.T) {
	f := newRunnerFixture(t)
	f.ledger.SetCommitError(errors.New("disk full"))

	_, err := f.runner.Run(context.Background(), testInputs("AAA"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_CancelledContext(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner.Run(ctx, testInputs("AAA"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.ledger.Tickers("W2026-42"))
}

func TestRun_SafetyLockUsesCycleSnapshot(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for _, rec := range testingpkg.NewScenarioRecords(20, 12, []string{scenarios.TagVIXHigh}, start) {
		_, err := f.store.Append(ctx, rec)
		require.NoError(t, err)
	}
	getEvents := f.record(events.SafetyLockTriggered, events.WeeklyCycleStarted)

	inputs := testInputs("XYZ")
	inputs[0].Context.VIX = testingpkg.Float(26)

	result, err := f.runner.Run(ctx, inputs)
	require.NoError(t, err)

	assert.Equal(t, int64(20), result.Watermark)
	action := result.Document.WeeklyTradeActions[0]
	require.NotNil(t, action.SafetyLock)
	assert.True(t, action.SafetyLock.Active)

	emitted := getEvents()
	require.Len(t, emitted, 2)
	started, ok := emitted[0].Data.(*events.WeeklyCycleStartedData)
	require.True(t, ok)
	assert.Equal(t, int64(20), started.Watermark)
	lock, ok := emitted[1].Data.(*events.SafetyLockTriggeredData)
	require.True(t, ok)
	assert.Equal(t, "XYZ", lock.Ticker)
	assert.InDelta(t, 0.26, lock.MaxExposure, 1e-9)
}

func TestRun_EmitsLifecycleEvents(t *testing.T) {
	f := newRunnerFixture(t)
	getEvents := f.record(events.WeeklyCycleStarted, events.InstrumentResolved, events.WeeklyCycleCompleted)

	_, err := f.runner.Run(context.Background(), testInputs("AAA", "BBB"))
	require.NoError(t, err)

	emitted := getEvents()
	require.Len(t, emitted, 4)
	assert.Equal(t, events.WeeklyCycleStarted, emitted[0].Type)
	assert.Equal(t, events.InstrumentResolved, emitted[1].Type)
	assert.Equal(t, events.InstrumentResolved, emitted[2].Type)
	assert.Equal(t, events.WeeklyCycleCompleted, emitted[3].Type)

	done, ok := emitted[3].Data.(*events.WeeklyCycleCompletedData)
	require.True(t, ok)
	assert.Equal(t, 2, done.Resolved)
	assert.Equal(t, "weekly", emitted[3].Module)
}

func TestRunSource(t *testing.T) {
	f := newRunnerFixture(t)

	result, err := f.runner.RunSource(context.Background(), &testingpkg.MockInstrumentSource{Inputs: testInputs("AAA")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)

	_, err = f.runner.RunSource(context.Background(), &testingpkg.MockInstrumentSource{Err: errors.New("inbox gone")})
	assert.Error(t, err)
}

func TestRun_StoresDocument(t *testing.T) {
	params := config.DefaultParams()
	log := zerolog.Nop()
	ledger := newTestLedger(t)
	resolver := resolution.NewResolver(
		testingpkg.NewMockHumanLockSource(),
		constraints.NewEvaluator(constraints.DefaultCatalog(params), log),
		constraints.NewApplier(params, log),
		constraints.NewGuidance(),
		params,
		log,
	)
	runner := NewCycleRunner(resolver, nil, ledger, ledger, nil, params, log)
	runner.SetClock(func() time.Time { return testNow })

	_, err := runner.Run(context.Background(), testInputs("AAA", "BBB"))
	require.NoError(t, err)

	doc, err := ledger.GetDocument(context.Background(), "W2026-42")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Len(t, doc.WeeklyTradeActions, 2)

	// The SQLite ledger persists commits across runner instances
	rerun, err := runner.Run(context.Background(), testInputs("AAA", "BBB"))
	require.NoError(t, err)
	assert.Equal(t, 2, rerun.Skipped)
}
