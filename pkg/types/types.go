package types

import "time"

// PriceLevel is the provider-supplied categorization of an hourly price.
type PriceLevel string

const (
	PriceLevelVeryCheap     PriceLevel = "VERY_CHEAP"
	PriceLevelCheap         PriceLevel = "CHEAP"
	PriceLevelNormal        PriceLevel = "NORMAL"
	PriceLevelExpensive     PriceLevel = "EXPENSIVE"
	PriceLevelVeryExpensive PriceLevel = "VERY_EXPENSIVE"
)

// PricePoint is one hour of the electricity price series. Points are
// immutable once produced and series are strictly ascending by TS.
type PricePoint struct {
	TS    time.Time  `json:"ts"`
	Price float64    `json:"price"`
	Level PriceLevel `json:"level,omitempty"`
}

// PricePosition is the categorical placement of the current price against
// its near-future distribution.
type PricePosition string

const (
	PricePositionLow    PricePosition = "low"
	PricePositionMedium PricePosition = "medium"
	PricePositionHigh   PricePosition = "high"
)

// Position maps the provider level enum to a price position. The boolean is
// false when no level was supplied and the caller must fall back to
// percentile thresholds.
func (p PricePoint) Position() (PricePosition, bool) {
	switch p.Level {
	case PriceLevelVeryCheap, PriceLevelCheap:
		return PricePositionLow, true
	case PriceLevelNormal:
		return PricePositionMedium, true
	case PriceLevelExpensive, PriceLevelVeryExpensive:
		return PricePositionHigh, true
	}
	return "", false
}

// PriceStatistics are distributional statistics over a price window. They are
// recomputed per call and carry no persisted identity.
type PriceStatistics struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Avg        float64 `json:"avg"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"stdDev"`
	P25        float64 `json:"p25"`
	P75        float64 `json:"p75"`
	Range      float64 `json:"range"`
	Volatility float64 `json:"volatility"`
}

// TrendDirection is the direction of a detected price trend segment.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// PriceExtreme is a local peak or valley in the price series.
type PriceExtreme struct {
	Index int       `json:"index"`
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
}

// PriceTrend is a run of at least two consecutive non-reversing steps. Flat
// steps continue the current trend rather than breaking it.
type PriceTrend struct {
	Direction     TrendDirection `json:"direction"`
	StartIndex    int            `json:"startIndex"`
	EndIndex      int            `json:"endIndex"`
	StartTS       time.Time      `json:"startTS"`
	EndTS         time.Time      `json:"endTS"`
	StartPrice    float64        `json:"startPrice"`
	EndPrice      float64        `json:"endPrice"`
	DurationHours float64        `json:"durationHours"`
	PriceChange   float64        `json:"priceChange"`
	PercentChange float64        `json:"percentChange"`
}

// PricePattern holds the peaks, valleys and trend segments of a series.
type PricePattern struct {
	Peaks   []PriceExtreme `json:"peaks"`
	Valleys []PriceExtreme `json:"valleys"`
	Trends  []PriceTrend   `json:"trends"`
}

// UpcomingChange describes a significant price move expected in the next few
// hours relative to the current price.
type UpcomingChange struct {
	Significant   bool      `json:"significant"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	TS            time.Time `json:"ts"`
	Message       string    `json:"message"`
}

// PriceForecast is the forward-looking view built from the price series.
type PriceForecast struct {
	CurrentPosition PricePosition   `json:"currentPosition"`
	Recommendation  string          `json:"recommendation"`
	UpcomingChanges UpcomingChange  `json:"upcomingChanges"`
	BestTimes       []PricePoint    `json:"bestTimes"`
	WorstTimes      []PricePoint    `json:"worstTimes"`
	FutureStats     PriceStatistics `json:"futureStats"`
	NoData          bool            `json:"noData,omitempty"`
}

// ThermalModel is the self-calibrating thermal response model. K controls how
// strongly price deviation shifts the target temperature. It is mutated only
// by weekly calibration.
type ThermalModel struct {
	K float64 `json:"k"`
	// S is an optional secondary (thermal mass) coefficient. Unused by the
	// current optimizer but persisted for forward compatibility.
	S float64 `json:"s,omitempty"`
}

const (
	// KFactorMin and KFactorMax bound the thermal response coefficient.
	KFactorMin = 0.1
	KFactorMax = 1.0
	// KFactorDefault is applied when no persisted model exists or an
	// assistant recommendation cannot be parsed.
	KFactorDefault = 0.5
)

// ClampK bounds a thermal response coefficient to the valid range.
func ClampK(k float64) float64 {
	if k < KFactorMin {
		return KFactorMin
	}
	if k > KFactorMax {
		return KFactorMax
	}
	return k
}

// ZoneConstraints are the absolute bounds and per-cycle step limit for one
// controllable surface. Immutable during a cycle.
type ZoneConstraints struct {
	MinTemp float64 `json:"minTemp"`
	MaxTemp float64 `json:"maxTemp"`
	StepMax float64 `json:"stepMax"`
}

// Surface names a controllable thermal target.
type Surface string

const (
	SurfaceZone1 Surface = "zone1"
	SurfaceZone2 Surface = "zone2"
	SurfaceTank  Surface = "tank"
)

// DeviceKind is resolved once from the device snapshot instead of
// re-inspecting field presence per function.
type DeviceKind int

const (
	DeviceKindSingleZone DeviceKind = iota
	DeviceKindAirToWater
)

// DeviceIDNone is the device ID used when the host runs in single-device
// mode and requests omit an explicit ID.
const DeviceIDNone = "none"

// SurfaceState is the telemetry snapshot for a secondary surface.
type SurfaceState struct {
	CurrentTemp   float64 `json:"currentTemp"`
	CurrentTarget float64 `json:"currentTarget"`
}

// DeviceState is a read-only telemetry snapshot for one cycle, owned by the
// external control API. Missing indoor/outdoor readings are substituted with
// fallback defaults by the engine, never propagated as zero values.
type DeviceState struct {
	Kind              DeviceKind    `json:"kind"`
	CurrentIndoorTemp *float64      `json:"currentIndoorTemp,omitempty"`
	CurrentTarget     float64       `json:"currentTarget"`
	OutdoorTemp       *float64      `json:"outdoorTemp,omitempty"`
	Zone2             *SurfaceState `json:"zone2,omitempty"`
	Tank              *SurfaceState `json:"tank,omitempty"`
}

// SetpointCommand carries the setpoints the host must apply after a cycle.
type SetpointCommand struct {
	Zone1Target float64  `json:"zone1Target"`
	Zone2Target *float64 `json:"zone2Target,omitempty"`
	TankTarget  *float64 `json:"tankTarget,omitempty"`
}

// WeatherAdvice is the external weather provider's contribution to a cycle.
// A nil advice means weather is disabled or unavailable.
type WeatherAdvice struct {
	Adjustment float64 `json:"adjustment"`
	Reason     string  `json:"reason"`
	Trend      string  `json:"trend,omitempty"`
	Details    string  `json:"details,omitempty"`
}

// EnergyTelemetry is optional daily consumption/production data used by the
// energy-aware savings estimate.
type EnergyTelemetry struct {
	HeatingConsumedKWH  float64 `json:"heatingConsumedKWH"`
	HeatingProducedKWH  float64 `json:"heatingProducedKWH"`
	HotWaterConsumedKWH float64 `json:"hotWaterConsumedKWH"`
	HotWaterProducedKWH float64 `json:"hotWaterProducedKWH"`
}

// SeasonalMode is inferred from the ratio of heating to hot-water energy.
type SeasonalMode string

const (
	SeasonWinter     SeasonalMode = "winter"
	SeasonSummer     SeasonalMode = "summer"
	SeasonTransition SeasonalMode = "transition"
)

// SurfaceDecision is the per-surface outcome of a cycle.
type SurfaceDecision struct {
	TargetTemp     float64 `json:"targetTemp"`
	PreviousTarget float64 `json:"previousTarget"`
	Reason         string  `json:"reason"`
}

// OptimizationRecord is one appended outcome of an hourly cycle. The history
// store retains at most the last 168 records, evicted oldest-first.
type OptimizationRecord struct {
	Timestamp      time.Time        `json:"timestamp"`
	TargetTemp     float64          `json:"targetTemp"`
	TargetOriginal float64          `json:"targetOriginal"`
	IndoorTemp     float64          `json:"indoorTemp"`
	OutdoorTemp    float64          `json:"outdoorTemp"`
	PriceNow       float64          `json:"priceNow"`
	PriceAvg       float64          `json:"priceAvg"`
	PriceMin       float64          `json:"priceMin"`
	PriceMax       float64          `json:"priceMax"`
	Savings        float64          `json:"savings"`
	Comfort        float64          `json:"comfort"`
	KFactor        float64          `json:"kFactor"`
	Reason         string           `json:"reason"`
	Zone2          *SurfaceDecision `json:"zone2,omitempty"`
	Tank           *SurfaceDecision `json:"tank,omitempty"`
	PriceForecast  *PriceForecast   `json:"priceForecast,omitempty"`
	Weather        *WeatherAdvice   `json:"weather,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// CalibrationRecord is the single most-recent weekly calibration outcome,
// overwritten each cycle.
type CalibrationRecord struct {
	Timestamp time.Time `json:"timestamp"`
	OldK      float64   `json:"oldK"`
	NewK      float64   `json:"newK"`
	Analysis  string    `json:"analysis"`
}

// CalibrationResult is returned from the weekly calibration. Insufficient
// history is an expected steady-state condition and is reported here, never
// as an error.
type CalibrationResult struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	Record  *CalibrationRecord `json:"record,omitempty"`
}

// CalibrationRequest is handed to an external reasoning assistant.
type CalibrationRequest struct {
	CurrentK        float64              `json:"currentK"`
	HistoricalData  []OptimizationRecord `json:"historicalData"`
	Constraints     ZoneConstraints      `json:"constraints"`
	WeatherAnalysis string               `json:"weatherAnalysis,omitempty"`
	PriceAnalysis   string               `json:"priceAnalysis,omitempty"`
}
