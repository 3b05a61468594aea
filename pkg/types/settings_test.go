package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSettings(t *testing.T) {
	t.Run("FromZero", func(t *testing.T) {
		s, migrated, err := MigrateSettings(Settings{}, 0)
		require.NoError(t, err)
		assert.True(t, migrated)

		assert.Equal(t, 6, s.DayStartHour)
		assert.Equal(t, 23, s.DayEndHour)
		assert.Equal(t, 2, s.PreHeatHours)
		assert.Equal(t, 2.0, s.NightTempReduction)
		assert.Equal(t, ZoneConstraints{MinTemp: 18.0, MaxTemp: 24.0, StepMax: 1.0}, s.Zone1)
		assert.Equal(t, s.Zone1, s.Zone2)
		assert.Equal(t, ZoneConstraints{MinTemp: 41.0, MaxTemp: 53.0, StepMax: 2.0}, s.Tank)
		assert.Equal(t, 1.0, s.LowPriceBonus)
		assert.Equal(t, 2.0, s.HighPricePenalty)
		assert.Equal(t, 0.5, s.MediumPricePenalty)
		assert.Equal(t, 0.05, s.GridFeePerKWH)
		assert.Equal(t, 1.0, s.BaselineHourlyKWH)
		assert.Equal(t, 0.3, s.Deadband)
	})

	t.Run("AlreadyCurrent", func(t *testing.T) {
		orig := Settings{DayStartHour: 7, DayEndHour: 22}
		s, migrated, err := MigrateSettings(orig, CurrentSettingsVersion)
		require.NoError(t, err)
		assert.False(t, migrated)
		assert.Equal(t, orig, s)
	})

	t.Run("PreservesCustomValues", func(t *testing.T) {
		orig := Settings{
			DayStartHour: 5,
			DayEndHour:   21,
			Zone1:        ZoneConstraints{MinTemp: 17.0, MaxTemp: 23.0, StepMax: 0.5},
		}
		s, _, err := MigrateSettings(orig, 0)
		require.NoError(t, err)
		assert.Equal(t, 21, s.DayEndHour)
		assert.Equal(t, 5, s.DayStartHour)
		assert.Equal(t, orig.Zone1, s.Zone1)
		// zone2 inherits zone1 when unset
		assert.Equal(t, orig.Zone1, s.Zone2)
	})

	t.Run("Idempotent", func(t *testing.T) {
		s1, _, err := MigrateSettings(Settings{}, 0)
		require.NoError(t, err)
		s2, migrated, err := MigrateSettings(s1, CurrentSettingsVersion)
		require.NoError(t, err)
		assert.False(t, migrated)
		assert.Equal(t, s1, s2)
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		_, _, err := MigrateSettings(Settings{}, -2)
		assert.Error(t, err)
	})
}

func TestPricePointPosition(t *testing.T) {
	tests := []struct {
		level PriceLevel
		want  PricePosition
		ok    bool
	}{
		{PriceLevelVeryCheap, PricePositionLow, true},
		{PriceLevelCheap, PricePositionLow, true},
		{PriceLevelNormal, PricePositionMedium, true},
		{PriceLevelExpensive, PricePositionHigh, true},
		{PriceLevelVeryExpensive, PricePositionHigh, true},
		{"", "", false},
		{"BOGUS", "", false},
	}
	for _, tt := range tests {
		pos, ok := PricePoint{Level: tt.level}.Position()
		assert.Equal(t, tt.ok, ok, "level %q", tt.level)
		assert.Equal(t, tt.want, pos, "level %q", tt.level)
	}
}

func TestClampK(t *testing.T) {
	assert.Equal(t, KFactorMin, ClampK(0.0))
	assert.Equal(t, KFactorMax, ClampK(1.5))
	assert.Equal(t, 0.42, ClampK(0.42))
}
