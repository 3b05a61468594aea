package priceanalysis

import (
	"testing"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlySeries(start time.Time, prices ...float64) []types.PricePoint {
	series := make([]types.PricePoint, len(prices))
	for i, p := range prices {
		series[i] = types.PricePoint{TS: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return series
}

func TestFindPatterns(t *testing.T) {
	start := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)

	t.Run("TooFewPoints", func(t *testing.T) {
		assert.Empty(t, FindPatterns(nil).Peaks)
		assert.Empty(t, FindPatterns(hourlySeries(start, 1.0)).Trends)
		p := FindPatterns(hourlySeries(start, 1.0, 2.0))
		assert.Empty(t, p.Peaks)
		assert.Empty(t, p.Valleys)
		assert.Empty(t, p.Trends)
	})

	t.Run("PeaksAndValleys", func(t *testing.T) {
		// peak at index 1, valley at index 3
		p := FindPatterns(hourlySeries(start, 0.2, 0.8, 0.5, 0.1, 0.4))
		require.Len(t, p.Peaks, 1)
		assert.Equal(t, 1, p.Peaks[0].Index)
		assert.Equal(t, 0.8, p.Peaks[0].Price)
		require.Len(t, p.Valleys, 1)
		assert.Equal(t, 3, p.Valleys[0].Index)
	})

	t.Run("PlateauIsNotAPeak", func(t *testing.T) {
		p := FindPatterns(hourlySeries(start, 0.2, 0.8, 0.8, 0.2))
		assert.Empty(t, p.Peaks)
	})

	t.Run("RisingTrend", func(t *testing.T) {
		p := FindPatterns(hourlySeries(start, 0.1, 0.2, 0.3, 0.4))
		require.Len(t, p.Trends, 1)
		trend := p.Trends[0]
		assert.Equal(t, types.TrendUp, trend.Direction)
		assert.Equal(t, 0, trend.StartIndex)
		assert.Equal(t, 3, trend.EndIndex)
		assert.InDelta(t, 0.3, trend.PriceChange, 1e-9)
		assert.InDelta(t, 300, trend.PercentChange, 1e-9)
		assert.Equal(t, 3.0, trend.DurationHours)
	})

	t.Run("FlatContinuesTrend", func(t *testing.T) {
		p := FindPatterns(hourlySeries(start, 0.1, 0.2, 0.2, 0.3))
		require.Len(t, p.Trends, 1)
		assert.Equal(t, types.TrendUp, p.Trends[0].Direction)
		assert.Equal(t, 3, p.Trends[0].EndIndex)
	})

	t.Run("SingleStepNotReported", func(t *testing.T) {
		// up then down: both runs are single steps
		p := FindPatterns(hourlySeries(start, 0.1, 0.2, 0.1))
		assert.Empty(t, p.Trends)
	})

	t.Run("Reversal", func(t *testing.T) {
		p := FindPatterns(hourlySeries(start, 0.1, 0.2, 0.3, 0.2, 0.1))
		require.Len(t, p.Trends, 2)
		assert.Equal(t, types.TrendUp, p.Trends[0].Direction)
		assert.Equal(t, 0, p.Trends[0].StartIndex)
		assert.Equal(t, 2, p.Trends[0].EndIndex)
		assert.Equal(t, types.TrendDown, p.Trends[1].Direction)
		assert.Equal(t, 2, p.Trends[1].StartIndex)
		assert.Equal(t, 4, p.Trends[1].EndIndex)
		assert.Negative(t, p.Trends[1].PriceChange)
	})

	t.Run("AllFlat", func(t *testing.T) {
		p := FindPatterns(hourlySeries(start, 0.5, 0.5, 0.5, 0.5))
		require.Len(t, p.Trends, 1)
		assert.Equal(t, types.TrendFlat, p.Trends[0].Direction)
		assert.Zero(t, p.Trends[0].PriceChange)
	})
}
