package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heatpilot/heatpilot/pkg/assistant"
	"github.com/heatpilot/heatpilot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// calibrationHistory builds n hourly records alternating between two
// price/target pairs, giving |Δtarget|/|Δprice| = response for every pair.
func calibrationHistory(n int, priceStep, targetStep float64) []types.OptimizationRecord {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	records := make([]types.OptimizationRecord, n)
	for i := range records {
		records[i] = types.OptimizationRecord{
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			PriceNow:   0.2 + priceStep*float64(i%2),
			TargetTemp: 20.0 + targetStep*float64(i%2),
		}
	}
	return records
}

func TestRunWeeklyCalibration(t *testing.T) {
	ctx := context.Background()

	t.Run("InsufficientHistory", func(t *testing.T) {
		e := testEngine(noon)
		e.LoadHistoricalSnapshot(calibrationHistory(23, 0.1, 0.1))
		before := e.Model().K
		res := e.RunWeeklyCalibration(ctx, testSettings(t))
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Message)
		assert.Equal(t, before, e.Model().K)
		assert.Nil(t, e.LastCalibration())
	})

	t.Run("OverResponsiveLowersK", func(t *testing.T) {
		e := testEngine(noon)
		// response 1.0 vs ideal 0.5: K shrinks by 20% of the relative gap
		e.LoadHistoricalSnapshot(calibrationHistory(24, 0.1, 0.1))
		res := e.RunWeeklyCalibration(ctx, testSettings(t))
		require.True(t, res.Success)
		require.NotNil(t, res.Record)
		assert.Equal(t, 0.5, res.Record.OldK)
		assert.InDelta(t, 0.4, res.Record.NewK, 1e-9)
		assert.Equal(t, res.Record.NewK, e.Model().K)
		assert.NotEmpty(t, res.Record.Analysis)
	})

	t.Run("UnderResponsiveRaisesK", func(t *testing.T) {
		e := testEngine(noon)
		// response 0.25 vs ideal 0.5
		e.LoadHistoricalSnapshot(calibrationHistory(24, 0.4, 0.1))
		res := e.RunWeeklyCalibration(ctx, testSettings(t))
		require.True(t, res.Success)
		assert.InDelta(t, 0.55, res.Record.NewK, 1e-9)
	})

	t.Run("KStaysClamped", func(t *testing.T) {
		e := testEngine(noon)
		e.LoadModel(types.ThermalModel{K: 0.99})
		// strongly under-responsive history pushes K up against the cap
		e.LoadHistoricalSnapshot(calibrationHistory(48, 1.0, 0.01))
		res := e.RunWeeklyCalibration(ctx, testSettings(t))
		require.True(t, res.Success)
		assert.LessOrEqual(t, res.Record.NewK, types.KFactorMax)
		assert.GreaterOrEqual(t, res.Record.NewK, types.KFactorMin)
	})

	t.Run("FlatPricesExplore", func(t *testing.T) {
		e := testEngine(noon)
		e.LoadHistoricalSnapshot(calibrationHistory(24, 0, 0))
		before := e.Model().K
		res := e.RunWeeklyCalibration(ctx, testSettings(t))
		require.True(t, res.Success)
		assert.InDelta(t, before, res.Record.NewK, explorationPerturbation)
		assert.GreaterOrEqual(t, res.Record.NewK, types.KFactorMin)
		assert.LessOrEqual(t, res.Record.NewK, types.KFactorMax)
		assert.Contains(t, res.Record.Analysis, "exploration")
	})

	t.Run("RecordOverwrittenEachRun", func(t *testing.T) {
		e := testEngine(noon)
		e.LoadHistoricalSnapshot(calibrationHistory(24, 0.1, 0.1))
		settings := testSettings(t)
		res1 := e.RunWeeklyCalibration(ctx, settings)
		res2 := e.RunWeeklyCalibration(ctx, settings)
		require.True(t, res1.Success)
		require.True(t, res2.Success)
		assert.Equal(t, res2.Record, e.LastCalibration())
		assert.Equal(t, res1.Record.NewK, res2.Record.OldK)
	})
}

func TestCalibrationWithAssistant(t *testing.T) {
	ctx := context.Background()

	useAssistant := func(t *testing.T) types.Settings {
		s := testSettings(t)
		s.UseAssistant = true
		return s
	}

	newAssistantEngine := func(mock *assistant.Mock) *Engine {
		e := New(Config{
			Assistant: mock,
			Now:       func() time.Time { return noon },
			Seed:      1,
		})
		e.LoadHistoricalSnapshot(calibrationHistory(24, 0.1, 0.1))
		return e
	}

	t.Run("ParsesRecommendedK", func(t *testing.T) {
		mock := &assistant.Mock{Response: "Thermal response is sluggish. Recommended K factor: 0.62"}
		e := newAssistantEngine(mock)
		res := e.RunWeeklyCalibration(ctx, useAssistant(t))
		require.True(t, res.Success)
		assert.Equal(t, 0.62, res.Record.NewK)
		assert.Equal(t, mock.Response, res.Record.Analysis)
		require.NotNil(t, mock.LastRequest)
		assert.Equal(t, 0.5, mock.LastRequest.CurrentK)
		assert.Len(t, mock.LastRequest.HistoricalData, 24)
		assert.NotEmpty(t, mock.LastRequest.PriceAnalysis)
	})

	t.Run("UnparseableFallsBackToDefault", func(t *testing.T) {
		mock := &assistant.Mock{Response: "insufficient signal to recommend anything"}
		e := newAssistantEngine(mock)
		e.LoadModel(types.ThermalModel{K: 0.9})
		res := e.RunWeeklyCalibration(ctx, useAssistant(t))
		require.True(t, res.Success)
		assert.Equal(t, types.KFactorDefault, res.Record.NewK)
	})

	t.Run("AssistantErrorUsesHeuristic", func(t *testing.T) {
		mock := &assistant.Mock{Err: errors.New("service unavailable")}
		e := newAssistantEngine(mock)
		res := e.RunWeeklyCalibration(ctx, useAssistant(t))
		require.True(t, res.Success)
		// heuristic outcome for the over-responsive history
		assert.InDelta(t, 0.4, res.Record.NewK, 1e-9)
	})

	t.Run("DisabledIgnoresAssistant", func(t *testing.T) {
		mock := &assistant.Mock{Response: "K factor: 0.99"}
		e := newAssistantEngine(mock)
		res := e.RunWeeklyCalibration(ctx, testSettings(t))
		require.True(t, res.Success)
		assert.Nil(t, mock.LastRequest)
		assert.InDelta(t, 0.4, res.Record.NewK, 1e-9)
	})
}
