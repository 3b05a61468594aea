package engine

import (
	"math"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
)

// seasonal mode thresholds over the heating share of total consumption
const (
	winterHeatingShare = 0.7
	summerHeatingShare = 0.3
)

// per-degree fraction of daily consumption attributed to a one-degree
// setpoint change, before COP normalization and seasonal scaling
const energyPerDegreeFraction = 0.05

// estimateHourlySavings converts a setpoint reduction into an estimated
// hourly cost delta using the heuristic per-degree model. A positive delta
// (target lowered below the original) yields positive savings.
func estimateHourlySavings(deltaTemp float64, price float64, surface types.Surface, s types.Settings) float64 {
	perDegree := s.PerDegreePercentZone
	weight := s.SurfaceWeightZone
	if surface == types.SurfaceTank {
		perDegree = s.PerDegreePercentTank
		weight = s.SurfaceWeightTank
	}
	effectivePrice := price + s.GridFeePerKWH
	return deltaTemp * perDegree * weight / 100 * s.BaselineHourlyKWH * effectivePrice
}

// estimateEnergyAwareSavings refines the estimate with real consumption and
// production telemetry: the per-degree impact is normalized by the observed
// COP and scaled by the detected seasonal mode. Returns false when the
// telemetry cannot support an estimate.
func estimateEnergyAwareSavings(deltaTemp float64, tel types.EnergyTelemetry, price float64, s types.Settings) (float64, types.SeasonalMode, bool) {
	consumed := tel.HeatingConsumedKWH + tel.HotWaterConsumedKWH
	if consumed <= 0 {
		return 0, "", false
	}
	produced := tel.HeatingProducedKWH + tel.HotWaterProducedKWH

	cop := 1.0
	if produced > 0 {
		cop = produced / consumed
	}

	mode := detectSeason(tel)
	modeFactor := 1.0
	switch mode {
	case types.SeasonSummer:
		// little space heating: a zone setpoint change barely matters
		modeFactor = 0.25
	case types.SeasonTransition:
		modeFactor = 0.6
	}

	perDegree := energyPerDegreeFraction * modeFactor / math.Max(cop, 1)
	hourlyKWH := consumed / 24
	effectivePrice := price + s.GridFeePerKWH
	return deltaTemp * perDegree * hourlyKWH * effectivePrice, mode, true
}

// detectSeason infers the seasonal mode from the heating share of total
// consumption.
func detectSeason(tel types.EnergyTelemetry) types.SeasonalMode {
	consumed := tel.HeatingConsumedKWH + tel.HotWaterConsumedKWH
	if consumed <= 0 {
		return types.SeasonTransition
	}
	share := tel.HeatingConsumedKWH / consumed
	switch {
	case share > winterHeatingShare:
		return types.SeasonWinter
	case share < summerHeatingShare:
		return types.SeasonSummer
	default:
		return types.SeasonTransition
	}
}

// EstimateDailySavings projects today's total savings: same-day records from
// earlier hours, the current hourly estimate, and the remaining hours
// weighted by each future hour's price ratio to the current price. Without
// forward prices the projection falls back to a flat multiple.
//
// Records stamped within the current hour are excluded from the accumulated
// term: the current hour is represented by hourlySavings, which the caller
// typically reads off the newest record.
func (e *Engine) EstimateDailySavings(now time.Time, hourlySavings float64, currentPrice float64, futurePrices []types.PricePoint) float64 {
	hourStart := now.Truncate(time.Hour)
	total := 0.0
	for _, rec := range e.history.Snapshot() {
		if sameDay(rec.Timestamp, now) && rec.Timestamp.Before(hourStart) {
			total += rec.Savings
		}
	}
	total += hourlySavings

	remaining := 23 - now.Hour()
	if remaining <= 0 {
		return total
	}
	if len(futurePrices) == 0 || currentPrice == 0 {
		return total + hourlySavings*float64(remaining)
	}

	for h := 1; h <= remaining; h++ {
		t := hourStart.Add(time.Duration(h) * time.Hour)
		if p, ok := priceAt(futurePrices, t); ok {
			total += hourlySavings * (p.Price / currentPrice)
		} else {
			total += hourlySavings
		}
	}
	return total
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// priceAt finds the price point covering the hour of t.
func priceAt(series []types.PricePoint, t time.Time) (types.PricePoint, bool) {
	hour := t.Truncate(time.Hour)
	for _, p := range series {
		if p.TS.Truncate(time.Hour).Equal(hour) {
			return p, true
		}
	}
	return types.PricePoint{}, false
}
