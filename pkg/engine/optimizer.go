package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/heatpilot/heatpilot/pkg/comfort"
	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/types"
)

const (
	// setpointIncrement is the device's minimum addressable temperature step.
	setpointIncrement = 0.5

	// preHeatWindowHours / preCoolWindowHours bound the forecast overlay: a
	// significant increase within 3h pre-heats, a decrease within 2h
	// pre-cools.
	preHeatWindowHours = 3.0
	preCoolWindowHours = 2.0
	// forecastOverlayMaxC caps the overlay contribution.
	forecastOverlayMaxC = 1.0

	// morningBoostMaxC is the wake-up ramp ceiling; the ramp gets more
	// aggressive when the current price is cheap and mornings show a spike.
	morningBoostMaxC          = 1.0
	morningSpikeBoostMultiple = 1.5
)

// surfaceInputs bundles everything one zone decision needs. The same
// algorithm serves Zone1 and Zone2 with surface-specific constraints.
type surfaceInputs struct {
	Surface       types.Surface
	CurrentTemp   float64
	CurrentTarget float64
	Price         float64
	Stats         types.PriceStatistics
	Forecast      types.PriceForecast
	Constraints   types.ZoneConstraints
	KFactor       float64
	ComfortFactor float64
	WeatherDelta  float64
	Now           time.Time
	Settings      types.Settings
}

// decideZone computes a bounded, rate-limited target for a heating zone.
func (e *Engine) decideZone(ctx context.Context, in surfaceInputs) types.SurfaceDecision {
	// 1. normalize the price into [0,1] and invert: cheaper -> higher target
	normalized := 0.5
	if in.Stats.Range > 0 {
		normalized = (in.Price - in.Stats.Min) / in.Stats.Range
	}
	normalized = math.Min(1, math.Max(0, normalized))
	inverted := 1 - normalized

	// 2. base target inside the comfort-adjusted band, scaled by K
	adjMin, adjMax := comfort.AdjustBand(
		in.Constraints.MinTemp, in.Constraints.MaxTemp,
		in.ComfortFactor, in.Settings.NightTempReduction,
	)
	midpoint := (adjMin + adjMax) / 2
	band := adjMax - adjMin
	target := midpoint + (inverted-0.5)*band*in.KFactor
	reason := fmt.Sprintf("price %.3f in [%.3f, %.3f]", in.Price, in.Stats.Min, in.Stats.Max)

	// 3a. forecast overlay: pre-heat ahead of an expected increase,
	// pre-cool ahead of an expected decrease
	if up := in.Forecast.UpcomingChanges; up.Significant && !up.TS.IsZero() {
		hrs := up.TS.Sub(in.Now).Hours()
		pct := math.Abs(up.ChangePercent) / 100
		if up.Change > 0 && hrs >= 0 && hrs <= preHeatWindowHours {
			scale := math.Min(1, pct*(preHeatWindowHours-hrs)/preHeatWindowHours)
			target += forecastOverlayMaxC * scale
			reason += fmt.Sprintf(", pre-heating for +%.0f%% at %s", math.Abs(up.ChangePercent), up.TS.Format("15:04"))
		} else if up.Change < 0 && hrs >= 0 && hrs <= preCoolWindowHours {
			scale := math.Min(1, pct*(preCoolWindowHours-hrs)/preCoolWindowHours)
			target -= forecastOverlayMaxC * scale
			reason += fmt.Sprintf(", coasting into -%.0f%% at %s", math.Abs(up.ChangePercent), up.TS.Format("15:04"))
		}
	}

	// 3b. discrete position adjustment; tunable constants, not derived
	switch in.Forecast.CurrentPosition {
	case types.PricePositionLow:
		target += in.Settings.LowPriceBonus
		reason += ", price low"
	case types.PricePositionHigh:
		target -= in.Settings.HighPricePenalty
		reason += ", price high"
	default:
		target -= in.Settings.MediumPricePenalty
	}

	// 3c. wake-up ramp when inside the pre-heat window before day start
	if boost := e.morningBoost(in); boost > 0 {
		target += boost
		reason += ", morning pre-heat"
	}

	// 4. external weather adjustment (opaque delta)
	target += in.WeatherDelta

	// 5. absolute bounds
	if target > in.Constraints.MaxTemp {
		target = in.Constraints.MaxTemp
	}
	if target < in.Constraints.MinTemp {
		target = in.Constraints.MinTemp
	}

	// 6. rate limit: never move more than StepMax per cycle
	if step := in.Constraints.StepMax; step > 0 {
		if target > in.CurrentTarget+step {
			target = in.CurrentTarget + step
			reason += ", step limited"
		} else if target < in.CurrentTarget-step {
			target = in.CurrentTarget - step
			reason += ", step limited"
		}
	}

	// 7. round to the device increment
	target = roundToIncrement(target)

	log.Ctx(ctx).DebugContext(ctx, "zone decision",
		slog.String("surface", string(in.Surface)),
		slog.Float64("price", in.Price),
		slog.Float64("inverted", inverted),
		slog.Float64("comfortFactor", in.ComfortFactor),
		slog.Float64("currentTarget", in.CurrentTarget),
		slog.Float64("target", target),
	)

	return types.SurfaceDecision{
		TargetTemp:     target,
		PreviousTarget: in.CurrentTarget,
		Reason:         reason,
	}
}

// morningBoost returns the wake-up pre-heat ramp contribution. Inside the
// window the ramp grows linearly toward day start, and grows faster when the
// price is currently cheap while a morning spike is coming.
func (e *Engine) morningBoost(in surfaceInputs) float64 {
	preHeat := float64(in.Settings.PreHeatHours)
	if preHeat <= 0 {
		return 0
	}
	hour := float64(in.Now.Hour()) + float64(in.Now.Minute())/60
	hoursToDayStart := math.Mod(float64(in.Settings.DayStartHour)-hour+24, 24)
	if hoursToDayStart <= 0 || hoursToDayStart > preHeat {
		return 0
	}
	boost := morningBoostMaxC * (preHeat - hoursToDayStart) / preHeat
	up := in.Forecast.UpcomingChanges
	if in.Forecast.CurrentPosition == types.PricePositionLow && up.Significant && up.Change > 0 {
		boost *= morningSpikeBoostMultiple
	}
	return boost
}

// decideTank applies the three-tier rule for the hot-water tank: cheap goes
// to the maximum, expensive to the minimum, normal to the midpoint. The
// tank's thermal lag makes fine-grained price tracking counter-productive.
func (e *Engine) decideTank(ctx context.Context, current types.PricePoint, stats types.PriceStatistics, tank types.SurfaceState, constraints types.ZoneConstraints) types.SurfaceDecision {
	tier := tankTier(current, stats)

	var target float64
	var reason string
	switch tier {
	case types.PricePositionLow:
		target = constraints.MaxTemp
		reason = "price cheap, tank to max"
	case types.PricePositionHigh:
		target = constraints.MinTemp
		reason = "price expensive, tank to min"
	default:
		target = (constraints.MinTemp + constraints.MaxTemp) / 2
		reason = "price normal, tank to midpoint"
	}

	if step := constraints.StepMax; step > 0 {
		if target > tank.CurrentTarget+step {
			target = tank.CurrentTarget + step
			reason += ", step limited"
		} else if target < tank.CurrentTarget-step {
			target = tank.CurrentTarget - step
			reason += ", step limited"
		}
	}
	target = roundToIncrement(target)

	log.Ctx(ctx).DebugContext(ctx, "tank decision",
		slog.String("tier", string(tier)),
		slog.Float64("currentTarget", tank.CurrentTarget),
		slog.Float64("target", target),
	)

	return types.SurfaceDecision{
		TargetTemp:     target,
		PreviousTarget: tank.CurrentTarget,
		Reason:         reason,
	}
}

// tankTier keys directly on the provider price level, falling back to
// percentile thresholds when no level accompanies the point.
func tankTier(current types.PricePoint, stats types.PriceStatistics) types.PricePosition {
	if pos, ok := current.Position(); ok {
		return pos
	}
	switch {
	case current.Price <= stats.P25:
		return types.PricePositionLow
	case current.Price >= stats.P75:
		return types.PricePositionHigh
	default:
		return types.PricePositionMedium
	}
}

func roundToIncrement(v float64) float64 {
	return math.Round(v/setpointIncrement) * setpointIncrement
}
