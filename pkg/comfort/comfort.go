// Package comfort maps time-of-day to a continuous comfort factor governing
// how aggressively temperature may be relaxed overnight.
package comfort

import (
	"math"
)

const (
	// FullComfort is the daytime factor.
	FullComfort = 1.0
	// NightComfort is the floor reached overnight.
	NightComfort = 0.5
)

// Schedule holds the day/night transition hours.
type Schedule struct {
	// DayStart is the hour (0-23) at which full comfort must be restored.
	DayStart int
	// DayEnd is the hour (0-23) at which the evening setback completes.
	DayEnd int
	// PreHeatHours is the length of the morning ramp back to full comfort.
	PreHeatHours int
}

// Factor returns the comfort factor in [NightComfort, FullComfort] for a
// fractional hour of day:
//
//	[DayStart, DayEnd-1)  full comfort
//	[DayEnd-1, DayEnd)    linear evening ramp down to the night value
//	[DayEnd, rampStart)   night value, where rampStart = DayStart-PreHeatHours
//	[rampStart, DayStart) linear morning ramp back up to full comfort
//
// Hours wrap around midnight.
func (s Schedule) Factor(hour float64) float64 {
	hour = math.Mod(hour, 24)
	if hour < 0 {
		hour += 24
	}

	dayStart := float64(s.DayStart)
	dayEnd := float64(s.DayEnd)
	preHeat := float64(s.PreHeatHours)
	rampStart := math.Mod(dayStart-preHeat+24, 24)

	if within(hour, dayStart, dayEnd-1) {
		return FullComfort
	}
	if within(hour, dayEnd-1, dayEnd) {
		// evening ramp: FullComfort at DayEnd-1 down to NightComfort at DayEnd
		progress := hour - (dayEnd - 1)
		if progress < 0 {
			progress += 24
		}
		return FullComfort - (FullComfort-NightComfort)*progress
	}
	if preHeat > 0 && within(hour, rampStart, dayStart) {
		// morning ramp: NightComfort at rampStart up to FullComfort at DayStart
		progress := hour - rampStart
		if progress < 0 {
			progress += 24
		}
		return NightComfort + (FullComfort-NightComfort)*progress/preHeat
	}
	return NightComfort
}

// within reports whether hour falls in [start, end) on a 24h clock,
// handling ranges that wrap midnight.
func within(hour, start, end float64) bool {
	start = math.Mod(start+24, 24)
	end = math.Mod(end+24, 24)
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// AdjustBand narrows the usable temperature band toward its edges by the
// night reduction when comfort is relaxed. At full comfort the band is
// returned unchanged.
func AdjustBand(minTemp, maxTemp, factor, nightReduction float64) (float64, float64) {
	relax := (FullComfort - factor) * nightReduction
	return minTemp + relax, maxTemp - relax
}
