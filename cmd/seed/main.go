// Command seed fills the storage backend with a week of plausible
// optimization history against the firestore emulator, so the history and
// savings endpoints have something to show during local development.
package main

import (
	"context"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/storage"
	"github.com/heatpilot/heatpilot/pkg/types"

	"github.com/levenlabs/go-lflag"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now().Truncate(time.Hour)
	start := now.Add(-7 * 24 * time.Hour)

	settings, _, err := types.MigrateSettings(types.Settings{}, 0)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build settings", "error", err)
		os.Exit(1)
	}
	if err := s.SetSettings(ctx, types.DeviceIDNone, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}

	model := types.ThermalModel{K: types.KFactorDefault}
	if err := s.SetThermalModel(ctx, types.DeviceIDNone, model); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed thermal model", "error", err)
		os.Exit(1)
	}

	inserted := 0
	for t := start; t.Before(now); t = t.Add(time.Hour) {
		hour := t.Hour()

		// double-peak daily price curve with some jitter
		price := 0.10
		switch {
		case hour >= 6 && hour < 9:
			price = 0.28
		case hour >= 10 && hour < 15:
			price = 0.07
		case hour >= 17 && hour < 21:
			price = 0.35
		case hour >= 21:
			price = 0.12
		}
		price += rng.Float64()*0.02 - 0.01

		// outdoor temperature follows a daily sine, coldest before dawn
		outdoor := 4.0 + 5.0*math.Sin((float64(hour)-9)/24*2*math.Pi)

		// the cheaper the hour, the higher the target, roughly how the
		// optimizer behaves with the default K
		target := 21.0 + (0.20-price)*4.0
		target = math.Round(target*2) / 2
		if target < settings.Zone1.MinTemp {
			target = settings.Zone1.MinTemp
		}
		if target > settings.Zone1.MaxTemp {
			target = settings.Zone1.MaxTemp
		}

		indoor := 21.0 + rng.Float64()*0.6 - 0.3
		delta := 21.0 - target
		savings := delta * settings.PerDegreePercentZone * settings.SurfaceWeightZone / 100 *
			settings.BaselineHourlyKWH * (price + settings.GridFeePerKWH)

		rec := types.OptimizationRecord{
			Timestamp:      t,
			TargetTemp:     target,
			TargetOriginal: 21.0,
			IndoorTemp:     indoor,
			OutdoorTemp:    outdoor,
			PriceNow:       price,
			Savings:        savings,
		}
		if err := s.InsertOptimizationRecord(ctx, types.DeviceIDNone, rec); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to insert record", "error", err)
			os.Exit(1)
		}
		inserted++
	}

	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeding complete", "records", inserted)
}
