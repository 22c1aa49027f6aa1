// Package resolution turns one instrument's inputs into its weekly TradeAction by
// running the governance stages in strict priority order.
package resolution

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/modules/constraints"
	"github.com/aristath/governor/internal/modules/market"
	"github.com/rs/zerolog"
)

// Cycle carries what one weekly cycle shares across instruments
type Cycle struct {
	StrategyVersion string
	// SafetyLock is pinned to the cycle's scenario snapshot. Nil disables it.
	SafetyLock domain.SafetyLockChecker
}

// Resolver runs the per-instrument stage pipeline:
// HUMAN_LOCK, HARD_CONSTRAINT, AI_ORDER_PLAN, SKELETON_FALLBACK, NO_PLAN and
// finally PROGRAMMATIC_OVERRIDE.
type Resolver struct {
	locks     domain.HumanLockSource
	evaluator *constraints.Evaluator
	applier   *constraints.Applier
	guidance  *constraints.Guidance
	params    *config.Params
	log       zerolog.Logger
}

// NewResolver creates a new order resolver
func NewResolver(
	locks domain.HumanLockSource,
	evaluator *constraints.Evaluator,
	applier *constraints.Applier,
	guidance *constraints.Guidance,
	params *config.Params,
	log zerolog.Logger,
) *Resolver {
	if params == nil {
		params = config.DefaultParams()
	}
	return &Resolver{
		locks:     locks,
		evaluator: evaluator,
		applier:   applier,
		guidance:  guidance,
		params:    params,
		log:       log.With().Str("service", "order_resolver").Logger(),
	}
}

// Resolve produces the TradeAction for one instrument. It never fails: errors and
// panics are isolated into an INSTRUMENT_ERROR action with no orders.
func (r *Resolver) Resolve(ctx context.Context, in domain.InstrumentInput, cycle Cycle) (action domain.TradeAction) {
	ticker := tickerOf(in)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Str("ticker", ticker).
				Interface("panic", rec).
				Msg("Instrument resolution panicked")
			action = ErrorAction(ticker, cycle.StrategyVersion, in.PreviousOrders, fmt.Errorf("panic: %v", rec))
		}
	}()

	action, err := r.resolve(ctx, ticker, in, cycle)
	if err != nil {
		r.log.Error().
			Err(err).
			Str("ticker", ticker).
			Msg("Instrument resolution failed")
		return ErrorAction(ticker, cycle.StrategyVersion, in.PreviousOrders, err)
	}
	return action
}

// ErrorAction is the TradeAction emitted for an instrument that could not be resolved
func ErrorAction(ticker, strategyVersion string, previous []domain.PreviousOrder, err error) domain.TradeAction {
	action := domain.TradeAction{
		Ticker:          ticker,
		PreviousOrders:  append([]domain.PreviousOrder(nil), previous...),
		StrategyVersion: strategyVersion,
		EvaluationLayer: domain.LayerInstrumentError,
		Error:           err.Error(),
	}
	action.Normalize()
	return action
}

func (r *Resolver) resolve(ctx context.Context, ticker string, in domain.InstrumentInput, cycle Cycle) (domain.TradeAction, error) {
	if ticker == "" {
		if err := in.DecodeError(); err != nil {
			return domain.TradeAction{}, err
		}
		return domain.TradeAction{}, fmt.Errorf("instrument has no ticker")
	}

	action := domain.TradeAction{
		Ticker:               ticker,
		PreviousOrders:       append([]domain.PreviousOrder(nil), in.PreviousOrders...),
		CancelPreviousOrders: len(in.PreviousOrders) > 0,
		StrategyVersion:      cycle.StrategyVersion,
	}

	// ==========================================================================
	// HUMAN_LOCK
	// ==========================================================================

	if r.locks != nil {
		lock, err := r.locks.Get(ctx, ticker)
		if err != nil {
			return action, fmt.Errorf("human lock lookup failed: %w", err)
		}
		if lock != nil && lock.Locked {
			applyHumanLock(&action, lock)
			r.log.Info().
				Str("ticker", ticker).
				Str("action", string(lock.Action)).
				Str("signal_id", lock.SignalID).
				Msg("Human lock applied")
			action.Normalize()
			return action, nil
		}
	}

	// ==========================================================================
	// HARD_CONSTRAINT
	// ==========================================================================

	// A context that did not decode must not evaluate as "no flags raised"
	if err := in.DecodeError(); err != nil {
		return action, err
	}

	ec := in.Context
	ec.Ticker = ticker
	snapshot := market.SnapshotFor(in)
	if snapshot != nil {
		if !usable(ec.CurrentPrice) {
			ec.CurrentPrice = snapshot.CurrentPrice
		}
		if !usable(ec.ATR) {
			ec.ATR = snapshot.ATR
		}
	}

	if cycle.SafetyLock != nil {
		safety := cycle.SafetyLock.Check(ctx, ec)
		if safety.Active {
			ec.SafetyLockActive = true
			ec.SafetyLockMaxExposure = safety.MaxExposure
		}
		action.SafetyLock = safety.Summary()
	}

	evaluation := r.evaluator.Evaluate(ec, in.Proposal)
	adjusted := r.applier.Apply(in.Proposal, evaluation.Adjustments, ec)

	action.Violations = evaluation.Violations
	action.ConstraintOverrides = adjusted.ConstraintOverrides
	action.EscalationReason = adjusted.EscalationReason
	action.EscalationForced = adjusted.EscalationForced
	action.Reasoning = adjusted.Reasoning
	action.RecommendedAction = adjusted.RecommendedAction
	action.Cat = adjusted.Cat
	action.MaxU = ptr(adjusted.MaxU)
	action.MaxPositionCap = ptr(adjusted.MaxPositionCap)
	action.StrategyScript = adjusted.StrategyScript
	if r.guidance != nil {
		action.GuidanceNotes = r.guidance.Review(ec, in.Proposal)
	}

	// ==========================================================================
	// AI_ORDER_PLAN / SKELETON_FALLBACK / NO_PLAN
	// ==========================================================================

	var buys, sells []domain.OrderSpec
	if rejection := planRejection(adjusted.OrderPlan); rejection == "" {
		action.EvaluationLayer = domain.LayerAIOrderPlan
		buys, sells = normalizePlan(adjusted.OrderPlan)
	} else {
		if len(adjusted.OrderPlan) > 0 {
			action.ConstraintOverrides = append(action.ConstraintOverrides,
				fmt.Sprintf("order_plan: REJECTED [%s]", rejection))
		}

		skeletonBuys, skeletonSells, frame, reason := r.skeletonPlan(ec, in, adjusted, &action)
		if reason == "" {
			action.EvaluationLayer = domain.LayerSkeletonFallback
			buys, sells = skeletonBuys, skeletonSells
			action.RiskFrame = frame
		} else {
			action.EvaluationLayer = domain.LayerNoPlan
			action.NoPlanReason = reason
			r.log.Debug().
				Str("ticker", ticker).
				Str("reason", reason).
				Msg("No order plan")
		}
	}

	if kept, dropped := BoundBuyLadder(buys, ec.CurrentPrice, r.params.Bounds.LadderCeilingMultiplier); len(dropped) > 0 {
		detail := strings.Join(dropped, "; ")
		action.Violations = append(action.Violations, domain.Violation{
			Level:   string(constraints.LevelMathBound),
			RuleID:  buyLadderRuleID,
			Effects: []string{"drop_buy_rung"},
			Error:   "generated buy ladder must be strictly descending, positive and near the current price: " + detail,
		})
		action.ConstraintOverrides = append(action.ConstraintOverrides,
			fmt.Sprintf("buy orders: %d → %d [%s: %s]", len(buys), len(kept), buyLadderRuleID, detail))
		r.log.Warn().
			Str("ticker", ticker).
			Str("layer", string(action.EvaluationLayer)).
			Strs("dropped", dropped).
			Msg("Generated buy ladder out of bounds")
		buys = kept
	}

	// ==========================================================================
	// PROGRAMMATIC_OVERRIDE
	// ==========================================================================

	if check := CheckParabolic(snapshot, r.params.Parabolic); check.Triggered {
		sells = append([]domain.OrderSpec{parabolicSell(check)}, sells...)
		action.ProgrammaticOverrides = append(action.ProgrammaticOverrides,
			fmt.Sprintf("parabolic_exhaustion: sell %.0f%% [price %.2f, MA20 %.2f, volume %.0f, avg volume %.0f]",
				check.SellPercent*100, snapshot.CurrentPrice, snapshot.MA20, snapshot.LatestVolume, snapshot.AvgVolume20d))
		r.log.Info().
			Str("ticker", ticker).
			Float64("price", snapshot.CurrentPrice).
			Float64("ma20", snapshot.MA20).
			Msg("Parabolic exhaustion triggered")
	}

	if adjusted.SuppressBuys && len(buys) > 0 {
		action.ConstraintOverrides = append(action.ConstraintOverrides,
			fmt.Sprintf("buy orders: %d → 0 [%s]", len(buys), adjusted.HaltReason))
		buys = nil
	}

	assignOrderIDs(ticker, cycle.StrategyVersion, buys, sells)
	action.NewOrders = append(buys, sells...)
	action.Normalize()
	return action, nil
}

// skeletonPlan returns the skeleton orders, or the reason no plan is available
func (r *Resolver) skeletonPlan(
	ec domain.EvaluationContext,
	in domain.InstrumentInput,
	adjusted constraints.AdjustedProposal,
	action *domain.TradeAction,
) ([]domain.OrderSpec, []domain.OrderSpec, *domain.RiskFrame, string) {
	if adjusted.ParameterAdjustmentVector == nil {
		return nil, nil, nil, "no usable order plan and no parameter adjustment vector"
	}
	skeleton, ok := NewSkeleton(ec.CurrentPrice, ec.ATR, in.KeyLevels, in.MaxPosition, r.params.Bounds)
	if !ok {
		return nil, nil, nil, "no usable order plan and no price or ATR for the skeleton"
	}

	vector, clamps := BoundVector(*adjusted.ParameterAdjustmentVector, r.params.Skeleton)
	action.ConstraintOverrides = append(action.ConstraintOverrides, clamps...)

	buys, sells, frame := skeleton.Apply(vector, adjusted.MaxPositionCap)
	return buys, sells, frame, ""
}

// applyHumanLock makes the directive the whole decision for the instrument
func applyHumanLock(action *domain.TradeAction, lock *domain.HumanLockDirective) {
	action.EvaluationLayer = domain.LayerHumanLock
	action.CancelPreviousOrders = true
	action.HumanOverride = true
	action.HumanLockID = lock.SignalID
	action.RecommendedAction = lock.Action
	action.EscalationReason = []string{"Human Lock: " + lock.Reason}
	action.Reasoning = "Human override: " + lock.Reason

	var order *domain.OrderSpec
	switch lock.Action {
	case domain.ActionSell:
		// sells the whole position
		order = &domain.OrderSpec{Side: domain.TradeSideSell, QtyPercent: ptr(1)}
	case domain.ActionBuy:
		order = &domain.OrderSpec{Side: domain.TradeSideBuy}
	default:
		return
	}
	order.OrderID = OrderID(action.Ticker, action.StrategyVersion, "HL1")
	order.OrderType = "MARKET"
	order.Formula = "HUMAN_LOCK"
	order.TimeInForce = "DAY"
	order.ExecutionPreference = "ADAPTIVE"
	order.HumanOverride = true
	order.Reason = lock.Reason
	action.NewOrders = []domain.OrderSpec{*order}
}

func tickerOf(in domain.InstrumentInput) string {
	ticker := strings.ToUpper(strings.TrimSpace(in.Ticker))
	if ticker == "" {
		ticker = strings.ToUpper(strings.TrimSpace(in.Context.Ticker))
	}
	return ticker
}
