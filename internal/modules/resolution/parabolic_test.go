package resolution

import (
	"testing"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	testingpkg "github.com/aristath/governor/internal/testing"
	"github.com/stretchr/testify/assert"
)

func TestCheckParabolic(t *testing.T) {
	p := config.DefaultParams().Parabolic

	tests := []struct {
		name      string
		snapshot  *domain.MarketSnapshot
		triggered bool
	}{
		{"price and volume spike", testingpkg.NewParabolicMarketFixture(), true},
		{"price below threshold", &domain.MarketSnapshot{CurrentPrice: 129, MA20: 100, AvgVolume20d: 100, LatestVolume: 210}, false},
		{"volume below threshold", &domain.MarketSnapshot{CurrentPrice: 131, MA20: 100, AvgVolume20d: 100, LatestVolume: 200}, false},
		{"no average volume", &domain.MarketSnapshot{CurrentPrice: 131, MA20: 100, LatestVolume: 210}, false},
		{"no MA20", &domain.MarketSnapshot{CurrentPrice: 131, AvgVolume20d: 100, LatestVolume: 210}, false},
		{"nil snapshot", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CheckParabolic(tt.snapshot, p)
			assert.Equal(t, tt.triggered, check.Triggered)
			if tt.triggered {
				assert.InDelta(t, 0.40, check.SellPercent, 1e-9)
				assert.Equal(t, "Price > MA20*1.3, volume > avg*2; parabolic run detected.", check.Reason)
			} else {
				assert.Zero(t, check.SellPercent)
			}
		})
	}
}

func TestParabolicSell(t *testing.T) {
	check := CheckParabolic(testingpkg.NewParabolicMarketFixture(), config.DefaultParams().Parabolic)
	order := parabolicSell(check)

	assert.Equal(t, domain.TradeSideSell, order.Side)
	assert.Equal(t, "MARKET", order.OrderType)
	assert.Nil(t, order.LimitPrice)
	assert.InDelta(t, 0.40, *order.QtyPercent, 1e-9)
	assert.Equal(t, "PARABOLIC_EXHAUSTION: Sell 40% into strength", order.Formula)
	assert.Equal(t, "DAY", order.TimeInForce)
	assert.Equal(t, "ADAPTIVE", order.ExecutionPreference)
	assert.Equal(t, check.Reason, order.Reason)
}
