package weekly

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/events"
	"github.com/aristath/governor/internal/modules/resolution"
	"github.com/aristath/governor/internal/modules/scenarios"
	"github.com/rs/zerolog"
)

// DocumentStore persists assembled weekly documents
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc domain.WeeklyTradeActions) error
}

// RunResult summarizes one cycle run
type RunResult struct {
	Document  domain.WeeklyTradeActions `json:"document"`
	Watermark int64                     `json:"watermark"`
	Resolved  int                       `json:"resolved"`
	Skipped   int                       `json:"skipped"`
	Failed    int                       `json:"failed"`
}

// CycleRunner runs one weekly cycle. Every TradeAction is committed on its own,
// so an interrupted cycle can be re-run: committed instruments are skipped and
// keep their stored action.
type CycleRunner struct {
	resolver  *resolution.Resolver
	scenarios scenarios.Log
	ledger    domain.TradeActionLedger
	documents DocumentStore
	bus       *events.Bus
	params    *config.Params
	clock     func() time.Time
	log       zerolog.Logger
}

// NewCycleRunner creates a new weekly cycle runner. documents and bus may be nil.
func NewCycleRunner(
	resolver *resolution.Resolver,
	scenarioLog scenarios.Log,
	ledger domain.TradeActionLedger,
	documents DocumentStore,
	bus *events.Bus,
	params *config.Params,
	log zerolog.Logger,
) *CycleRunner {
	if params == nil {
		params = config.DefaultParams()
	}
	return &CycleRunner{
		resolver:  resolver,
		scenarios: scenarioLog,
		ledger:    ledger,
		documents: documents,
		bus:       bus,
		params:    params,
		clock:     time.Now,
		log:       log.With().Str("service", "weekly_cycle").Logger(),
	}
}

// SetClock replaces the clock used for versions and timestamps
func (r *CycleRunner) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Run runs the cycle for the current ISO week
func (r *CycleRunner) Run(ctx context.Context, inputs []domain.InstrumentInput) (*RunResult, error) {
	return r.RunVersion(ctx, StrategyVersion(r.clock()), inputs)
}

// RunSource loads the inputs from src and runs the cycle for the current ISO week
func (r *CycleRunner) RunSource(ctx context.Context, src domain.InstrumentSource) (*RunResult, error) {
	inputs, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument inputs: %w", err)
	}
	return r.Run(ctx, inputs)
}

// RunVersion runs (or resumes) the cycle identified by strategyVersion. The output
// holds exactly one TradeAction per distinct input ticker.
func (r *CycleRunner) RunVersion(ctx context.Context, strategyVersion string, inputs []domain.InstrumentInput) (*RunResult, error) {
	start := r.clock()

	committed, err := r.ledger.Committed(ctx, strategyVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load committed actions for %s: %w", strategyVersion, err)
	}

	// Snapshot the scenario log once; records appended during the cycle stay invisible
	watermark, reader := r.snapshot(ctx)
	cycle := resolution.Cycle{
		StrategyVersion: strategyVersion,
		SafetyLock:      scenarios.NewSafetyLockEvaluator(reader, r.params, r.log),
	}

	inputs, counts := r.dedupe(inputs)
	r.bus.Emit("weekly", &events.WeeklyCycleStartedData{
		StrategyVersion: strategyVersion,
		Instruments:     len(inputs),
		Watermark:       watermark,
	})
	r.log.Info().
		Str("strategy_version", strategyVersion).
		Int("instruments", len(inputs)).
		Int("already_committed", len(committed)).
		Int64("watermark", watermark).
		Msg("Weekly cycle started")

	result := &RunResult{Watermark: watermark}
	actions := make([]domain.TradeAction, 0, len(inputs))

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("weekly cycle %s interrupted after %d of %d instruments: %w",
				strategyVersion, len(actions), len(inputs), err)
		}

		ticker := inputTicker(in)
		if stored, ok := committed[ticker]; ok && ticker != "" {
			actions = append(actions, stored)
			result.Skipped++
			r.emitResolved(stored, true)
			continue
		}

		// Failed instruments stay uncommitted so a re-run retries them
		var action domain.TradeAction
		if n := counts[ticker]; n > 1 && ticker != "" {
			action = resolution.ErrorAction(ticker, strategyVersion, nil,
				fmt.Errorf("ticker %s appears %d times in the batch", ticker, n))
		} else {
			action = r.resolver.Resolve(ctx, in, cycle)
		}
		if action.Ticker != "" && action.EvaluationLayer != domain.LayerInstrumentError {
			action, err = r.commit(ctx, action)
			if err != nil {
				return nil, err
			}
		}
		actions = append(actions, action)

		if action.EvaluationLayer == domain.LayerInstrumentError {
			result.Failed++
			r.bus.Emit("weekly", &events.InstrumentFailedData{
				Ticker:          action.Ticker,
				StrategyVersion: strategyVersion,
				Error:           action.Error,
			})
			continue
		}
		result.Resolved++
		r.emitResolved(action, false)
		if action.SafetyLock != nil && action.SafetyLock.Active {
			r.emitSafetyLock(action)
		}
	}

	result.Document = Assemble(strategyVersion, actions, r.clock())
	if r.documents != nil {
		if err := r.documents.SaveDocument(ctx, result.Document); err != nil {
			return nil, fmt.Errorf("failed to store weekly document %s: %w", strategyVersion, err)
		}
	}

	duration := r.clock().Sub(start)
	r.bus.Emit("weekly", &events.WeeklyCycleCompletedData{
		StrategyVersion: strategyVersion,
		Resolved:        result.Resolved,
		Skipped:         result.Skipped,
		Failed:          result.Failed,
		DurationMs:      float64(duration.Milliseconds()),
	})
	r.log.Info().
		Str("strategy_version", strategyVersion).
		Int("resolved", result.Resolved).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("duration", duration).
		Msg("Weekly cycle completed")

	return result, nil
}

// snapshot captures the scenario watermark. When it cannot be read every Safety
// Lock check in the cycle fails open.
func (r *CycleRunner) snapshot(ctx context.Context) (int64, scenarios.Reader) {
	if r.scenarios == nil {
		return 0, scenarios.Unavailable(fmt.Errorf("scenario memory not configured"))
	}
	watermark, err := r.scenarios.Watermark(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to read scenario watermark, safety lock disabled for this cycle")
		return 0, scenarios.Unavailable(err)
	}
	return watermark, r.scenarios.Snapshot(watermark)
}

// commit stores action; when another run committed the key first, the stored
// action wins.
func (r *CycleRunner) commit(ctx context.Context, action domain.TradeAction) (domain.TradeAction, error) {
	ok, err := r.ledger.Commit(ctx, action)
	if err != nil {
		return action, fmt.Errorf("failed to commit %s/%s: %w", action.Ticker, action.StrategyVersion, err)
	}
	if ok {
		return action, nil
	}

	committed, err := r.ledger.Committed(ctx, action.StrategyVersion)
	if err != nil {
		return action, fmt.Errorf("failed to reload committed actions for %s: %w", action.StrategyVersion, err)
	}
	if stored, found := committed[action.Ticker]; found {
		return stored, nil
	}
	return action, nil
}

// dedupe keeps one input per ticker and counts the inputs seen for each. A
// ticker with more than one input resolves to an instrument error, so the batch
// outcome never depends on input order.
func (r *CycleRunner) dedupe(inputs []domain.InstrumentInput) ([]domain.InstrumentInput, map[string]int) {
	counts := make(map[string]int, len(inputs))
	out := make([]domain.InstrumentInput, 0, len(inputs))
	for _, in := range inputs {
		ticker := inputTicker(in)
		counts[ticker]++
		if ticker != "" && counts[ticker] > 1 {
			r.log.Warn().Str("ticker", ticker).Int("inputs", counts[ticker]).Msg("Duplicate instrument input")
			continue
		}
		out = append(out, in)
	}
	return out, counts
}

func (r *CycleRunner) emitResolved(action domain.TradeAction, alreadyCommitted bool) {
	r.bus.Emit("weekly", &events.InstrumentResolvedData{
		Ticker:           action.Ticker,
		StrategyVersion:  action.StrategyVersion,
		EvaluationLayer:  string(action.EvaluationLayer),
		Orders:           len(action.NewOrders),
		Violations:       len(action.Violations),
		AlreadyCommitted: alreadyCommitted,
	})
}

func (r *CycleRunner) emitSafetyLock(action domain.TradeAction) {
	data := &events.SafetyLockTriggeredData{
		Ticker:        action.Ticker,
		MortalityRate: action.SafetyLock.MortalityRate,
		Analogues:     action.SafetyLock.Analogues,
	}
	if action.SafetyLock.MaxExposure != nil {
		data.MaxExposure = *action.SafetyLock.MaxExposure
	}
	r.bus.Emit("weekly", data)
}

func inputTicker(in domain.InstrumentInput) string {
	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
	if ticker == "" {
		ticker = strings.ToUpper(strings.TrimSpace(in.Context.Ticker))
	}
	return ticker
}
