package priceanalysis

import (
	"testing"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildForecast(t *testing.T) {
	start := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)

	t.Run("NoFutureData", func(t *testing.T) {
		// the whole series is before the current hour
		series := hourlySeries(start.Add(-6*time.Hour), 0.1, 0.2, 0.3)
		current := types.PricePoint{TS: start, Price: 0.2}
		f := BuildForecast(series, current)
		assert.True(t, f.NoData)
		assert.Equal(t, types.PricePositionMedium, f.CurrentPosition)
		assert.NotEmpty(t, f.Recommendation)
		assert.Empty(t, f.BestTimes)
	})

	t.Run("LevelEnumPreferred", func(t *testing.T) {
		series := hourlySeries(start, 0.5, 0.5, 0.5)
		// the percentile fallback would say medium, the level says low
		current := types.PricePoint{TS: start, Price: 0.5, Level: types.PriceLevelVeryCheap}
		f := BuildForecast(series, current)
		assert.Equal(t, types.PricePositionLow, f.CurrentPosition)
	})

	t.Run("PercentileFallback", func(t *testing.T) {
		series := hourlySeries(start, 0.10, 0.20, 0.30, 0.40, 0.50, 0.60, 0.70, 0.80)
		cheap := types.PricePoint{TS: start, Price: 0.10}
		assert.Equal(t, types.PricePositionLow, BuildForecast(series, cheap).CurrentPosition)
		pricey := types.PricePoint{TS: start, Price: 0.80}
		assert.Equal(t, types.PricePositionHigh, BuildForecast(series, pricey).CurrentPosition)
		mid := types.PricePoint{TS: start, Price: 0.45}
		assert.Equal(t, types.PricePositionMedium, BuildForecast(series, mid).CurrentPosition)
	})

	t.Run("SignificantIncrease", func(t *testing.T) {
		series := hourlySeries(start, 0.50, 0.55, 0.80, 0.52)
		current := series[0]
		f := BuildForecast(series, current)
		require.True(t, f.UpcomingChanges.Significant)
		assert.InDelta(t, 60, f.UpcomingChanges.ChangePercent, 1e-9)
		assert.Equal(t, start.Add(2*time.Hour), f.UpcomingChanges.TS)
		assert.Contains(t, f.UpcomingChanges.Message, "increase")
	})

	t.Run("SignificantDecreaseWins", func(t *testing.T) {
		// +20% increase but -40% decrease: the larger magnitude is reported
		series := hourlySeries(start, 0.50, 0.60, 0.30)
		f := BuildForecast(series, series[0])
		require.True(t, f.UpcomingChanges.Significant)
		assert.Negative(t, f.UpcomingChanges.Change)
		assert.Contains(t, f.UpcomingChanges.Message, "decrease")
	})

	t.Run("SmallChangeNotSignificant", func(t *testing.T) {
		series := hourlySeries(start, 0.50, 0.55, 0.52, 0.49)
		f := BuildForecast(series, series[0])
		assert.False(t, f.UpcomingChanges.Significant)
		assert.Empty(t, f.UpcomingChanges.Message)
	})

	t.Run("ChangeBeyondWindowIgnored", func(t *testing.T) {
		// the spike is the 7th future point, outside the 6-point window
		series := hourlySeries(start, 0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 5.0)
		f := BuildForecast(series, series[0])
		assert.False(t, f.UpcomingChanges.Significant)
	})

	t.Run("BestWorstTimes", func(t *testing.T) {
		series := hourlySeries(start, 0.50, 0.10, 0.90, 0.20, 0.80, 0.30)
		f := BuildForecast(series, series[0])
		require.Len(t, f.BestTimes, 3)
		assert.Equal(t, 0.10, f.BestTimes[0].Price)
		assert.Equal(t, 0.20, f.BestTimes[1].Price)
		assert.Equal(t, 0.30, f.BestTimes[2].Price)
		require.Len(t, f.WorstTimes, 3)
		assert.Equal(t, 0.90, f.WorstTimes[0].Price)
		assert.Equal(t, 0.80, f.WorstTimes[1].Price)
	})

	t.Run("BestTimesLimitedTo24h", func(t *testing.T) {
		series := hourlySeries(start, 0.50, 0.40)
		// a very cheap point 30 hours out must not appear
		series = append(series, types.PricePoint{TS: start.Add(30 * time.Hour), Price: 0.01})
		f := BuildForecast(series, series[0])
		for _, p := range f.BestTimes {
			assert.NotEqual(t, 0.01, p.Price)
		}
	})

	t.Run("FutureStatsExcludePast", func(t *testing.T) {
		series := hourlySeries(start.Add(-2*time.Hour), 9.0, 9.0, 0.2, 0.4)
		current := types.PricePoint{TS: start, Price: 0.2}
		f := BuildForecast(series, current)
		assert.Equal(t, 0.4, f.FutureStats.Max)
	})
}
