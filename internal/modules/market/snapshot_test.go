package market

import (
	"testing"
	"time"

	"github.com/aristath/governor/internal/domain"
	testingpkg "github.com/aristath/governor/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatBars returns n daily bars closing at price with a fixed 2.0 range and volume 100
func flatBars(n int, price float64) []domain.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, domain.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 100,
		})
	}
	return bars
}

func TestFromBars_FlatSeries(t *testing.T) {
	snapshot, err := FromBars(flatBars(30, 100))
	require.NoError(t, err)

	assert.Equal(t, 100.0, snapshot.CurrentPrice)
	assert.InDelta(t, 100.0, snapshot.MA20, 1e-9)
	assert.InDelta(t, 2.0, snapshot.ATR, 1e-9)
	assert.InDelta(t, 100.0, snapshot.AvgVolume20d, 1e-9)
	assert.Equal(t, 100.0, snapshot.LatestVolume)
}

func TestFromBars_UsesLatestBarRegardlessOfOrder(t *testing.T) {
	bars := flatBars(25, 100)
	bars[24].Close = 131
	bars[24].High = 132
	bars[24].Volume = 210

	// reverse the slice
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	snapshot, err := FromBars(bars)
	require.NoError(t, err)

	assert.Equal(t, 131.0, snapshot.CurrentPrice)
	assert.Equal(t, 210.0, snapshot.LatestVolume)
	assert.InDelta(t, (19*100.0+131)/20, snapshot.MA20, 1e-9)
	assert.InDelta(t, (19*100.0+210)/20, snapshot.AvgVolume20d, 1e-9)
}

func TestFromBars_InsufficientBars(t *testing.T) {
	_, err := FromBars(flatBars(19, 100))
	assert.ErrorIs(t, err, ErrInsufficientBars)
}

func TestSnapshotFor(t *testing.T) {
	t.Run("given snapshot wins", func(t *testing.T) {
		in := testingpkg.NewInstrumentInput("XYZ")
		in.Market = testingpkg.NewParabolicMarketFixture()
		in.Bars = flatBars(30, 50)

		snapshot := SnapshotFor(in)
		require.NotNil(t, snapshot)
		assert.Equal(t, 131.0, snapshot.CurrentPrice)
		assert.NotSame(t, in.Market, snapshot)
	})

	t.Run("derived from bars", func(t *testing.T) {
		in := testingpkg.NewInstrumentInput("XYZ")
		in.Market = nil
		in.Bars = flatBars(30, 50)

		snapshot := SnapshotFor(in)
		require.NotNil(t, snapshot)
		assert.Equal(t, 50.0, snapshot.CurrentPrice)
	})

	t.Run("falls back to context price and ATR", func(t *testing.T) {
		in := testingpkg.NewInstrumentInput("XYZ")
		in.Market = nil

		snapshot := SnapshotFor(in)
		require.NotNil(t, snapshot)
		assert.Equal(t, 100.0, snapshot.CurrentPrice)
		assert.Equal(t, 2.0, snapshot.ATR)
		assert.Equal(t, 0.0, snapshot.MA20)
	})

	t.Run("nothing usable", func(t *testing.T) {
		in := domain.InstrumentInput{Ticker: "XYZ"}
		assert.Nil(t, SnapshotFor(in))
	})
}
