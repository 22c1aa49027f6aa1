package resolution

import (
	"fmt"
	"math"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
)

// DefaultStopRule is used when the technical analysis names none
const DefaultStopRule = "structure_break"

// Fixed skeleton structure: base level and ATR multiplier per rung
type rung struct {
	label      string
	base       string
	multiplier float64
}

var (
	buyRungs = []rung{
		{label: "B1", base: "support_1", multiplier: 0.5},
		{label: "B2", base: "support_2", multiplier: 0.3},
		{label: "B3", base: "support_2", multiplier: 0.5},
	}
	sellRung = rung{label: "S1", base: "resistance_1", multiplier: 0.3}
)

// trailingStopATR is the default trailing stop distance in ATRs
const trailingStopATR = 1.5

// Skeleton is the programmatic order structure for one instrument. The AI can only
// shift it through a bounded parameter vector.
type Skeleton struct {
	Price              float64
	ATR                float64
	Support1           float64
	Support2           float64
	Resistance1        float64
	MaxPosition        float64
	StopRule           string
	InvalidationLevels []float64
}

// NewSkeleton builds the skeleton from key levels, defaulting missing levels to
// 95%/90% (support) and 105% (resistance) of price. It returns false without a
// usable price and ATR.
func NewSkeleton(price, atr float64, levels *domain.KeyLevels, maxPosition *float64, bounds config.BoundsParams) (Skeleton, bool) {
	if !usable(price) || !usable(atr) {
		return Skeleton{}, false
	}
	if levels == nil {
		levels = &domain.KeyLevels{}
	}

	s := Skeleton{
		Price:              price,
		ATR:                atr,
		Support1:           levelOr(levels.Support1, price*0.95),
		Support2:           levelOr(levels.Support2, price*0.90),
		Resistance1:        levelOr(levels.Resistance1, price*1.05),
		MaxPosition:        bounds.DefaultPositionCap,
		StopRule:           orDefault(levels.StopRule, DefaultStopRule),
		InvalidationLevels: append([]float64{}, levels.InvalidationLevels...),
	}
	if maxPosition != nil && usable(*maxPosition) {
		s.MaxPosition = *maxPosition
	}
	return s, true
}

// Vector is a parameter adjustment vector clamped into its bounds
type Vector struct {
	BuyBias                 float64
	SellBias                float64
	LadderSpacingAdjustment float64
	TrailingStopTightness   float64
	MaxPositionCapOverride  *float64
}

// BoundVector clamps the AI vector: biases into ±BiasLimit, spacing and tightness
// into ±AdjustmentLimit. Every clamp is reported.
func BoundVector(v domain.ParameterAdjustmentVector, p config.SkeletonParams) (Vector, []string) {
	var notes []string
	bound := func(name string, value, limit float64) float64 {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			notes = append(notes, fmt.Sprintf("parameter_adjustment_vector.%s: invalid → 0.00 [range clamp]", name))
			return 0
		}
		clamped := math.Max(-limit, math.Min(limit, value))
		if clamped != value {
			notes = append(notes, fmt.Sprintf("parameter_adjustment_vector.%s: %.2f → %.2f [range clamp]", name, value, clamped))
		}
		return clamped
	}

	out := Vector{
		BuyBias:                 bound("buy_bias", v.BuyBias, p.BiasLimit),
		SellBias:                bound("sell_bias", v.SellBias, p.BiasLimit),
		LadderSpacingAdjustment: bound("ladder_spacing_adjustment", v.LadderSpacingAdjustment.Float64(), p.AdjustmentLimit),
		TrailingStopTightness:   bound("trailing_stop_tightness", v.TrailingStopTightness.Float64(), p.AdjustmentLimit),
	}
	if v.MaxPositionCapOverride != nil && usable(*v.MaxPositionCapOverride) {
		out.MaxPositionCapOverride = ptr(*v.MaxPositionCapOverride)
	}
	return out, notes
}

// Apply computes concrete orders from the skeleton and vector. Prices are rounded
// to 2 dp; rungs that price at or below zero are dropped. The risk frame position
// is never looser than capLimit.
func (s Skeleton) Apply(v Vector, capLimit float64) (buys, sells []domain.OrderSpec, frame *domain.RiskFrame) {
	spacing := 1 + v.LadderSpacingAdjustment
	buyShift := 1 + v.BuyBias*0.1
	sellShift := 1 + v.SellBias*0.1

	for _, r := range buyRungs {
		price := round2((s.base(r.base) - r.multiplier*spacing*s.ATR) * buyShift)
		if price <= 0 {
			continue
		}
		buys = append(buys, domain.OrderSpec{
			Side:                domain.TradeSideBuy,
			OrderType:           "LIMIT",
			LimitPrice:          ptr(price),
			Formula:             fmt.Sprintf("%s - %.1f * ATR", r.base, r.multiplier),
			TimeInForce:         DefaultTimeInForce,
			ExecutionPreference: DefaultExecutionPreference,
		})
	}

	if price := round2((s.base(sellRung.base) + sellRung.multiplier*spacing*s.ATR) * sellShift); price > 0 {
		sells = append(sells, domain.OrderSpec{
			Side:                domain.TradeSideSell,
			OrderType:           "LIMIT",
			LimitPrice:          ptr(price),
			Formula:             fmt.Sprintf("%s + %.1f * ATR", sellRung.base, sellRung.multiplier),
			TimeInForce:         DefaultTimeInForce,
			ExecutionPreference: DefaultExecutionPreference,
		})
	}

	if stop := round2(s.Price - (trailingStopATR+v.TrailingStopTightness)*s.ATR); stop > 0 {
		sells = append(sells, domain.OrderSpec{
			Side:                domain.TradeSideSell,
			OrderType:           "TRAIL",
			Trigger:             ptr(stop),
			Formula:             "trailing_stop",
			IsTrailing:          true,
			TimeInForce:         DefaultTimeInForce,
			ExecutionPreference: DefaultExecutionPreference,
		})
	}

	maxPosition := s.MaxPosition
	if v.MaxPositionCapOverride != nil {
		maxPosition = *v.MaxPositionCapOverride
	}
	frame = &domain.RiskFrame{
		MaxPosition:                  math.Min(maxPosition, capLimit),
		StopRule:                     s.StopRule,
		InvalidationLevels:           s.InvalidationLevels,
		TrailingStopTightnessApplied: v.TrailingStopTightness,
	}
	return buys, sells, frame
}

func (s Skeleton) base(name string) float64 {
	switch name {
	case "support_1":
		return s.Support1
	case "support_2":
		return s.Support2
	default:
		return s.Resistance1
	}
}

func levelOr(level *float64, def float64) float64 {
	if level == nil || !usable(*level) {
		return def
	}
	return *level
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
