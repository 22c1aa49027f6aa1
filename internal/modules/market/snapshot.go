// Package market derives the market snapshot (price, ATR, MA20, volume averages)
// used by the programmatic override and the strategy skeleton.
package market

import (
	"errors"
	"math"
	"sort"

	"github.com/aristath/governor/internal/domain"
	"github.com/markcheno/go-talib"
)

const (
	// MAPeriod is the moving average and volume average window
	MAPeriod = 20
	// ATRPeriod is the average true range window
	ATRPeriod = 14
)

// ErrInsufficientBars is returned when there are fewer bars than MAPeriod
var ErrInsufficientBars = errors.New("insufficient bars for a market snapshot")

// FromBars derives a snapshot from daily bars in any order. The latest bar supplies
// the price and volume.
func FromBars(bars []domain.Bar) (*domain.MarketSnapshot, error) {
	if len(bars) < MAPeriod {
		return nil, ErrInsufficientBars
	}

	sorted := append([]domain.Bar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	highs := make([]float64, len(sorted))
	lows := make([]float64, len(sorted))
	closes := make([]float64, len(sorted))
	volumes := make([]float64, len(sorted))
	for i, b := range sorted {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	latest := sorted[len(sorted)-1]
	return &domain.MarketSnapshot{
		CurrentPrice: latest.Close,
		ATR:          atr(highs, lows, closes),
		MA20:         last(talib.Sma(closes, MAPeriod)),
		AvgVolume20d: last(talib.Sma(volumes, MAPeriod)),
		LatestVolume: latest.Volume,
	}, nil
}

// SnapshotFor returns the snapshot for one instrument: the one handed in when it
// carries a price, otherwise one derived from its bars. Missing price or ATR are
// filled from the evaluation context. Returns nil when neither source is usable.
func SnapshotFor(in domain.InstrumentInput) *domain.MarketSnapshot {
	var snapshot *domain.MarketSnapshot
	if in.Market != nil && in.Market.CurrentPrice > 0 {
		copied := *in.Market
		snapshot = &copied
	} else if derived, err := FromBars(in.Bars); err == nil {
		snapshot = derived
	}

	if snapshot == nil {
		if in.Context.CurrentPrice <= 0 {
			return nil
		}
		snapshot = &domain.MarketSnapshot{CurrentPrice: in.Context.CurrentPrice}
	}
	if snapshot.ATR <= 0 && in.Context.ATR > 0 {
		snapshot.ATR = in.Context.ATR
	}
	return snapshot
}

// atr uses the Wilder ATR when enough bars exist, otherwise the mean high-low range
func atr(highs, lows, closes []float64) float64 {
	if len(closes) > ATRPeriod {
		if v := last(talib.Atr(highs, lows, closes, ATRPeriod)); v > 0 {
			return v
		}
	}
	sum := 0.0
	for i := range highs {
		sum += highs[i] - lows[i]
	}
	return sum / float64(len(highs))
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
