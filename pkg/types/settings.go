package types

import (
	"fmt"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

// Settings represents the dynamic configuration stored in the database.
// These can be changed without redeploying.
type Settings struct {
	DryRun bool `json:"dryRun"`
	// Pause stops hourly cycles without losing state
	Pause bool `json:"pause"`

	// Comfort schedule
	DayStartHour       int     `json:"dayStartHour"`
	DayEndHour         int     `json:"dayEndHour"`
	PreHeatHours       int     `json:"preHeatHours"`
	NightTempReduction float64 `json:"nightTempReduction"`

	// Per-surface constraints. Zone2 and Tank are only consulted when the
	// device snapshot reports those surfaces.
	Zone1 ZoneConstraints `json:"zone1"`
	Zone2 ZoneConstraints `json:"zone2"`
	Tank  ZoneConstraints `json:"tank"`

	// Discrete price-position adjustments (in °C). Tunable constants with
	// no physical derivation.
	LowPriceBonus      float64 `json:"lowPriceBonus"`
	HighPricePenalty   float64 `json:"highPricePenalty"`
	MediumPricePenalty float64 `json:"mediumPricePenalty"`

	// Deadband is the minimum temperature delta before a setpoint change is
	// worth issuing to the device.
	Deadband float64 `json:"deadband"`

	// Savings estimation
	GridFeePerKWH        float64 `json:"gridFeePerKWH"`
	BaselineHourlyKWH    float64 `json:"baselineHourlyKWH"`
	PerDegreePercentZone float64 `json:"perDegreePercentZone"`
	PerDegreePercentTank float64 `json:"perDegreePercentTank"`
	SurfaceWeightZone    float64 `json:"surfaceWeightZone"`
	SurfaceWeightTank    float64 `json:"surfaceWeightTank"`

	// Weather and assistant toggles
	WeatherEnabled bool `json:"weatherEnabled"`
	UseAssistant   bool `json:"useAssistant"`
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were
// made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	// Loop through versions to apply migrations sequentially
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial comfort schedule and zone bounds
			if s.DayEndHour == 0 {
				s.DayStartHour = 6
				s.DayEndHour = 23
				migrated = true
			}
			if s.PreHeatHours == 0 {
				s.PreHeatHours = 2
				migrated = true
			}
			if s.NightTempReduction == 0 {
				s.NightTempReduction = 2.0
				migrated = true
			}
			if s.Zone1.MaxTemp == 0 {
				s.Zone1 = ZoneConstraints{MinTemp: 18.0, MaxTemp: 24.0, StepMax: 1.0}
				migrated = true
			}
			if s.Zone2.MaxTemp == 0 {
				s.Zone2 = s.Zone1
				migrated = true
			}
		case 2:
			// version 2: tank constraints, grid fee, price-position bonuses
			if s.Tank.MaxTemp == 0 {
				s.Tank = ZoneConstraints{MinTemp: 41.0, MaxTemp: 53.0, StepMax: 2.0}
				migrated = true
			}
			if s.GridFeePerKWH == 0 {
				s.GridFeePerKWH = 0.05
				migrated = true
			}
			if s.LowPriceBonus == 0 {
				s.LowPriceBonus = 1.0
				migrated = true
			}
			if s.HighPricePenalty == 0 {
				s.HighPricePenalty = 2.0
				migrated = true
			}
			if s.MediumPricePenalty == 0 {
				s.MediumPricePenalty = 0.5
				migrated = true
			}
		case 3:
			// version 3: savings weights and deadband
			if s.BaselineHourlyKWH == 0 {
				s.BaselineHourlyKWH = 1.0
				migrated = true
			}
			if s.PerDegreePercentZone == 0 {
				s.PerDegreePercentZone = 5.0
				migrated = true
			}
			if s.PerDegreePercentTank == 0 {
				s.PerDegreePercentTank = 2.0
				migrated = true
			}
			if s.SurfaceWeightZone == 0 {
				s.SurfaceWeightZone = 1.0
				migrated = true
			}
			if s.SurfaceWeightTank == 0 {
				s.SurfaceWeightTank = 0.6
				migrated = true
			}
			if s.Deadband == 0 {
				s.Deadband = 0.3
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
