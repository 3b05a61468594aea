// Package engine implements the price-aware thermal optimization engine: an
// hourly control loop turning prices, weather and device telemetry into
// bounded, rate-limited setpoint decisions, plus the weekly calibration of
// the thermal response model.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/heatpilot/heatpilot/pkg/assistant"
	"github.com/heatpilot/heatpilot/pkg/comfort"
	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/priceanalysis"
	"github.com/heatpilot/heatpilot/pkg/types"
)

// Fallback telemetry defaults substituted for missing readings. The cycle
// still completes; the substitution is flagged in the record's warnings.
const (
	FallbackIndoorTemp  = 21.0
	FallbackOutdoorTemp = 10.0
)

// Engine is a per-device optimization instance. It owns the thermal model
// and the rolling decision history, the only long-lived mutable state in the
// core. Methods must not be invoked concurrently: the host guarantees at
// most one hourly and one weekly cycle in flight per device, so the engine
// performs no locking.
type Engine struct {
	model           types.ThermalModel
	history         *History
	lastCalibration *types.CalibrationRecord
	assistant       assistant.Assistant
	nowFn           func() time.Time
	rng             *rand.Rand
}

// Config carries optional Engine construction parameters.
type Config struct {
	// Model is the persisted thermal model; a zero K gets the default.
	Model types.ThermalModel
	// Assistant is the optional external calibration service.
	Assistant assistant.Assistant
	// Now overrides the clock, for tests.
	Now func() time.Time
	// Seed fixes the calibration exploration RNG, for tests. Zero seeds
	// from the clock.
	Seed int64
}

// New creates an Engine for one monitored device.
func New(cfg Config) *Engine {
	if cfg.Model.K == 0 {
		cfg.Model.K = types.KFactorDefault
	}
	cfg.Model.K = types.ClampK(cfg.Model.K)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		model:     cfg.Model,
		history:   NewHistory(),
		assistant: cfg.Assistant,
		nowFn:     cfg.Now,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (e *Engine) now() time.Time {
	return e.nowFn()
}

// Model returns the current thermal model.
func (e *Engine) Model() types.ThermalModel {
	return e.model
}

// LoadModel replaces the thermal model, clamping K into its valid range.
// Used by the host to hydrate persisted state at startup.
func (e *Engine) LoadModel(m types.ThermalModel) {
	if m.K == 0 {
		m.K = types.KFactorDefault
	}
	m.K = types.ClampK(m.K)
	e.model = m
}

// LastCalibration returns the most recent calibration record, or nil.
func (e *Engine) LastCalibration() *types.CalibrationRecord {
	return e.lastCalibration
}

// HistoricalSnapshot returns a serializable copy of the decision history.
func (e *Engine) HistoricalSnapshot() []types.OptimizationRecord {
	return e.history.Snapshot()
}

// LoadHistoricalSnapshot restores a previously persisted decision history.
func (e *Engine) LoadHistoricalSnapshot(records []types.OptimizationRecord) {
	e.history.Load(records)
}

// AmendLastRecord replaces the newest history entry so the host can fold
// post-cycle outcomes, like a failed setpoint write, back into the retained
// record. Keeps the in-memory history aligned with what the host persists.
func (e *Engine) AmendLastRecord(rec types.OptimizationRecord) {
	e.history.AmendLast(rec)
}

// CycleInput is everything the host hands the engine for one hourly cycle.
// All I/O happens host-side before this call.
type CycleInput struct {
	State    types.DeviceState
	Prices   []types.PricePoint
	Weather  *types.WeatherAdvice
	Energy   *types.EnergyTelemetry
	Settings types.Settings
}

// RunHourlyCycle computes setpoint decisions for every surface the device
// reports, estimates the savings of the change, appends the outcome to the
// history, and returns the record. Missing telemetry degrades to fallback
// defaults; an empty price series degrades to a midpoint-band decision.
func (e *Engine) RunHourlyCycle(ctx context.Context, in CycleInput) (types.OptimizationRecord, error) {
	now := e.now()
	var warnings []string

	indoor := FallbackIndoorTemp
	if in.State.CurrentIndoorTemp != nil {
		indoor = *in.State.CurrentIndoorTemp
	} else {
		warnings = append(warnings, "indoor temperature missing, substituted fallback")
	}
	outdoor := FallbackOutdoorTemp
	if in.State.OutdoorTemp != nil {
		outdoor = *in.State.OutdoorTemp
	} else {
		warnings = append(warnings, "outdoor temperature missing, substituted fallback")
	}

	stats := priceanalysis.ComputeStatistics(priceanalysis.Prices(in.Prices))

	current, ok := priceAt(in.Prices, now)
	if !ok {
		current = types.PricePoint{TS: now, Price: stats.Avg}
		warnings = append(warnings, "no price point for current hour, substituted window average")
	}

	forecast := priceanalysis.BuildForecast(in.Prices, current)

	schedule := comfort.Schedule{
		DayStart:     in.Settings.DayStartHour,
		DayEnd:       in.Settings.DayEndHour,
		PreHeatHours: in.Settings.PreHeatHours,
	}
	comfortFactor := schedule.Factor(float64(now.Hour()) + float64(now.Minute())/60)

	var weatherDelta float64
	if in.Weather != nil {
		weatherDelta = in.Weather.Adjustment
	}

	base := surfaceInputs{
		Surface:       types.SurfaceZone1,
		CurrentTemp:   indoor,
		CurrentTarget: in.State.CurrentTarget,
		Price:         current.Price,
		Stats:         stats,
		Forecast:      forecast,
		Constraints:   in.Settings.Zone1,
		KFactor:       e.model.K,
		ComfortFactor: comfortFactor,
		WeatherDelta:  weatherDelta,
		Now:           now,
		Settings:      in.Settings,
	}
	zone1 := e.decideZone(ctx, base)

	record := types.OptimizationRecord{
		Timestamp:      now,
		TargetTemp:     zone1.TargetTemp,
		TargetOriginal: in.State.CurrentTarget,
		IndoorTemp:     indoor,
		OutdoorTemp:    outdoor,
		PriceNow:       current.Price,
		PriceAvg:       stats.Avg,
		PriceMin:       stats.Min,
		PriceMax:       stats.Max,
		Comfort:        comfortFactor,
		KFactor:        e.model.K,
		Reason:         zone1.Reason,
		PriceForecast:  &forecast,
		Weather:        in.Weather,
		Warnings:       warnings,
	}

	if in.State.Kind == types.DeviceKindAirToWater && in.State.Zone2 != nil {
		z2in := base
		z2in.Surface = types.SurfaceZone2
		z2in.CurrentTemp = in.State.Zone2.CurrentTemp
		z2in.CurrentTarget = in.State.Zone2.CurrentTarget
		z2in.Constraints = in.Settings.Zone2
		z2 := e.decideZone(ctx, z2in)
		record.Zone2 = &z2
	}
	if in.State.Kind == types.DeviceKindAirToWater && in.State.Tank != nil {
		tank := e.decideTank(ctx, current, stats, *in.State.Tank, in.Settings.Tank)
		record.Tank = &tank
	}

	record.Savings = e.estimateCycleSavings(ctx, record, current.Price, in)

	e.history.Append(record)

	log.Ctx(ctx).InfoContext(ctx, "hourly cycle complete",
		slog.Float64("price", current.Price),
		slog.Float64("target", record.TargetTemp),
		slog.Float64("previousTarget", record.TargetOriginal),
		slog.Float64("savings", record.Savings),
		slog.Float64("kFactor", e.model.K),
		slog.Int("warnings", len(warnings)),
	)

	return record, nil
}

// estimateCycleSavings sums the per-surface savings estimates for this
// cycle, preferring the energy-aware model when telemetry is present.
func (e *Engine) estimateCycleSavings(ctx context.Context, record types.OptimizationRecord, price float64, in CycleInput) float64 {
	zoneDelta := record.TargetOriginal - record.TargetTemp
	if record.Zone2 != nil {
		zoneDelta += record.Zone2.PreviousTarget - record.Zone2.TargetTemp
	}

	var total float64
	if in.Energy != nil {
		if v, mode, ok := estimateEnergyAwareSavings(zoneDelta, *in.Energy, price, in.Settings); ok {
			log.Ctx(ctx).DebugContext(ctx, "energy-aware savings estimate",
				slog.Float64("savings", v),
				slog.String("season", string(mode)),
			)
			total = v
		} else {
			total = estimateHourlySavings(zoneDelta, price, types.SurfaceZone1, in.Settings)
		}
	} else {
		total = estimateHourlySavings(zoneDelta, price, types.SurfaceZone1, in.Settings)
	}

	if record.Tank != nil {
		tankDelta := record.Tank.PreviousTarget - record.Tank.TargetTemp
		total += estimateHourlySavings(tankDelta, price, types.SurfaceTank, in.Settings)
	}
	return total
}
