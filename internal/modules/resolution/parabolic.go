package resolution

import (
	"fmt"
	"math"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
)

// ParabolicCheck is the result of the parabolic exhaustion test
type ParabolicCheck struct {
	Triggered   bool    `json:"triggered"`
	SellPercent float64 `json:"suggest_sell_pct"`
	Reason      string  `json:"reason,omitempty"`
}

// CheckParabolic reports a parabolic run: price above MA20 × MA20Multiplier on
// volume above the 20-day average × VolumeMultiplier. Missing data never triggers.
func CheckParabolic(snap *domain.MarketSnapshot, p config.ParabolicParams) ParabolicCheck {
	if snap == nil || !usable(snap.CurrentPrice) || !usable(snap.MA20) || !usable(snap.AvgVolume20d) {
		return ParabolicCheck{}
	}
	if math.IsNaN(snap.LatestVolume) {
		return ParabolicCheck{}
	}

	overMA := snap.CurrentPrice > snap.MA20*p.MA20Multiplier
	volumeSpike := snap.LatestVolume > snap.AvgVolume20d*p.VolumeMultiplier
	if !overMA || !volumeSpike {
		return ParabolicCheck{}
	}
	reason := fmt.Sprintf("Price > MA20*%g, volume > avg*%g; parabolic run detected.", p.MA20Multiplier, p.VolumeMultiplier)
	return ParabolicCheck{Triggered: true, SellPercent: p.SellPercent, Reason: reason}
}

// parabolicSell is the market sell injected ahead of every other sell
func parabolicSell(check ParabolicCheck) domain.OrderSpec {
	return domain.OrderSpec{
		Side:                domain.TradeSideSell,
		OrderType:           "MARKET",
		QtyPercent:          ptr(check.SellPercent),
		Formula:             fmt.Sprintf("PARABOLIC_EXHAUSTION: Sell %.0f%% into strength", check.SellPercent*100),
		TimeInForce:         "DAY",
		OrderValidity:       "DAY",
		ExecutionPreference: "ADAPTIVE",
		Reason:              check.Reason,
	}
}
