package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/heatpilot/heatpilot/pkg/assistant"
	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/priceanalysis"
	"github.com/heatpilot/heatpilot/pkg/types"
)

const (
	// minCalibrationRecords is the hard floor: no calibration happens on
	// less than a day of history.
	minCalibrationRecords = 24
	// idealResponsiveness is the target |Δtarget|/|Δprice| response.
	idealResponsiveness = 0.5
	// calibrationNudge is the fraction of the relative gap applied to K.
	calibrationNudge = 0.2
	// explorationPerturbation bounds the random K nudge used when history
	// shows no price variation at all.
	explorationPerturbation = 0.05
)

// RunWeeklyCalibration re-fits the thermal response coefficient K from the
// rolling decision history. Insufficient history returns Success=false and
// leaves K untouched; it is an expected steady-state condition, not an
// error. When an assistant is configured and enabled, its recommendation is
// preferred over the heuristic.
func (e *Engine) RunWeeklyCalibration(ctx context.Context, settings types.Settings) types.CalibrationResult {
	records := e.history.Snapshot()
	if len(records) < minCalibrationRecords {
		msg := fmt.Sprintf("need at least %d historical records, have %d", minCalibrationRecords, len(records))
		log.Ctx(ctx).InfoContext(ctx, "calibration skipped", slog.Int("records", len(records)))
		return types.CalibrationResult{Success: false, Message: msg}
	}

	oldK := e.model.K
	var newK float64
	var analysis string

	if e.assistant != nil && settings.UseAssistant {
		newK, analysis = e.calibrateWithAssistant(ctx, records, settings)
	} else {
		newK, analysis = e.calibrateHeuristic(ctx, records)
	}

	e.model.K = newK
	rec := types.CalibrationRecord{
		Timestamp: e.now(),
		OldK:      oldK,
		NewK:      newK,
		Analysis:  analysis,
	}
	e.lastCalibration = &rec

	log.Ctx(ctx).InfoContext(ctx, "weekly calibration complete",
		slog.Float64("oldK", oldK),
		slog.Float64("newK", newK),
		slog.Int("records", len(records)),
	)
	return types.CalibrationResult{Success: true, Record: &rec}
}

// calibrateHeuristic compares the observed setpoint response to price
// changes against the ideal response and nudges K by a fraction of the
// relative gap.
func (e *Engine) calibrateHeuristic(ctx context.Context, records []types.OptimizationRecord) (float64, string) {
	var responseSum float64
	pairs := 0
	for i := 1; i < len(records); i++ {
		dPrice := records[i].PriceNow - records[i-1].PriceNow
		if dPrice == 0 {
			continue
		}
		dTarget := records[i].TargetTemp - records[i-1].TargetTemp
		responseSum += math.Abs(dTarget) / math.Abs(dPrice)
		pairs++
	}

	if pairs == 0 {
		// exploration fallback: with a perfectly flat price history there is
		// no signal to fit, so nudge K within a small bound
		newK := types.ClampK(e.model.K + (e.rng.Float64()*2-1)*explorationPerturbation)
		log.Ctx(ctx).DebugContext(ctx, "no price variation in history, exploring", slog.Float64("newK", newK))
		return newK, "no price variation across history; applied bounded exploration nudge"
	}

	response := responseSum / float64(pairs)
	gap := (idealResponsiveness - response) / idealResponsiveness
	newK := types.ClampK(e.model.K * (1 + calibrationNudge*gap))
	return newK, fmt.Sprintf(
		"observed response %.3f°C per unit price over %d transitions (ideal %.1f); K %.3f -> %.3f",
		response, pairs, idealResponsiveness, e.model.K, newK,
	)
}

// calibrateWithAssistant delegates the historical window to the external
// reasoning service and extracts a K recommendation from its free-text
// reply. Extraction failure or an out-of-range value falls back to the
// default K, applied explicitly here.
func (e *Engine) calibrateWithAssistant(ctx context.Context, records []types.OptimizationRecord, settings types.Settings) (float64, string) {
	req := types.CalibrationRequest{
		CurrentK:        e.model.K,
		HistoricalData:  records,
		Constraints:     settings.Zone1,
		WeatherAnalysis: summarizeWeather(records),
		PriceAnalysis:   summarizePrices(records),
	}

	text, err := e.assistant.Analyze(ctx, req)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "assistant analysis failed, using heuristic", slog.Any("error", err))
		return e.calibrateHeuristic(ctx, records)
	}

	k, ok := assistant.ExtractKFactor(text)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "no usable K in assistant reply, using default")
		k = types.KFactorDefault
	}
	return k, text
}

// summarizeWeather condenses the weather annotations across the window.
func summarizeWeather(records []types.OptimizationRecord) string {
	var withWeather int
	var adjSum float64
	for _, r := range records {
		if r.Weather != nil {
			withWeather++
			adjSum += r.Weather.Adjustment
		}
	}
	if withWeather == 0 {
		return "no weather data recorded"
	}
	return fmt.Sprintf("%d/%d cycles had weather data, mean adjustment %+.2f°C",
		withWeather, len(records), adjSum/float64(withWeather))
}

// summarizePrices reports the price distribution and how often the forecast
// position matched a later cheaper/pricier hour, as a rough effectiveness
// signal.
func summarizePrices(records []types.OptimizationRecord) string {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.PriceNow
	}
	stats := priceanalysis.ComputeStatistics(values)
	return fmt.Sprintf("price over window: min %.3f avg %.3f max %.3f volatility %.2f",
		stats.Min, stats.Avg, stats.Max, stats.Volatility)
}
