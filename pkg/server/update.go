package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/heatpilot/heatpilot/pkg/engine"
	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/types"
	"github.com/heatpilot/heatpilot/pkg/weather"
)

// updateRequest is the payload the scheduler posts once an hour. Everything
// the cycle needs rides along: the price series, the outdoor forecast and
// optional energy telemetry. Omitted fields leave the previously fed data in
// place.
type updateRequest struct {
	Prices          []types.PricePoint     `json:"prices,omitempty"`
	OutdoorForecast []weather.TempPoint    `json:"outdoorForecast,omitempty"`
	Energy          *types.EnergyTelemetry `json:"energy,omitempty"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	var req updateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	// 1. Get settings (migrating if needed)
	settings, err := s.getSettingsWithMigration(ctx, deviceID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	// 2. Feed the providers whatever the scheduler sent
	if len(req.Prices) > 0 {
		s.priceFeed.SetSeries(req.Prices)
	}
	if len(req.OutdoorForecast) > 0 {
		s.forecast.SetForecast(req.OutdoorForecast)
	}

	if settings.Pause {
		log.Ctx(ctx).InfoContext(ctx, "update: paused", slog.String("deviceID", deviceID))
		// We return 200 OK so the scheduler doesn't think it failed
		writeJSON(w, map[string]interface{}{
			"status": "paused",
		})
		return
	}

	eng, err := s.engineFor(ctx, deviceID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to hydrate engine", slog.Any("error", err))
		writeJSONError(w, "failed to hydrate engine", http.StatusInternalServerError)
		return
	}

	// 3. Fetch the device telemetry snapshot
	device := s.devices.Device(deviceID)
	state, err := device.GetState(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device state", slog.Any("error", err))
		writeJSONError(w, "failed to get device state", http.StatusInternalServerError)
		return
	}

	// 4. Read the price series (with any configured surcharges applied)
	series, err := s.prices.FuturePrices(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get prices", slog.Any("error", err))
		// Continue with an empty series; the engine degrades gracefully
	}

	// 5. Weather advice, when enabled
	var advice *types.WeatherAdvice
	if settings.WeatherEnabled {
		advice, err = s.weather.Advise(ctx)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to get weather advice", slog.Any("error", err))
		}
	}

	// 6. Run the cycle
	record, err := eng.RunHourlyCycle(ctx, engine.CycleInput{
		State:    state,
		Prices:   series,
		Weather:  advice,
		Energy:   req.Energy,
		Settings: settings,
	})
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "hourly cycle failed", slog.Any("error", err))
		writeJSONError(w, "optimization cycle failed", http.StatusInternalServerError)
		return
	}

	// 7. Apply the decision, unless it's a dry run or inside the deadband
	cmd, changed := buildCommand(record, state, settings.Deadband)
	applied := false
	var applyErr error
	if changed && !settings.DryRun {
		if applyErr = device.SetTargets(ctx, cmd); applyErr != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to set targets", slog.Any("error", applyErr))
			record.Warnings = append(record.Warnings, fmt.Sprintf("failed to apply setpoints: %v", applyErr))
			// keep the in-memory history consistent with the persisted record
			eng.AmendLastRecord(record)
		} else {
			applied = true
		}
	}

	// 8. Persist the record and the model
	if err := s.storage.InsertOptimizationRecord(ctx, deviceID, record); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to insert optimization record", slog.Any("error", err))
	}
	if err := s.storage.SetThermalModel(ctx, deviceID, eng.Model()); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save thermal model", slog.Any("error", err))
	}

	// a decision we could not apply is a failed update
	if applyErr != nil {
		writeJSONError(w, "failed to apply setpoints", http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":  "success",
		"applied": applied,
		"dryRun":  settings.DryRun,
		"record":  record,
	})
}

// buildCommand turns a cycle record into the setpoint command for the
// device, reporting whether any surface moved beyond the deadband.
func buildCommand(record types.OptimizationRecord, state types.DeviceState, deadband float64) (types.SetpointCommand, bool) {
	cmd := types.SetpointCommand{Zone1Target: record.TargetTemp}
	changed := math.Abs(record.TargetTemp-record.TargetOriginal) >= deadband

	if record.Zone2 != nil && state.Zone2 != nil {
		target := record.Zone2.TargetTemp
		cmd.Zone2Target = &target
		if math.Abs(target-record.Zone2.PreviousTarget) >= deadband {
			changed = true
		}
	}
	if record.Tank != nil && state.Tank != nil {
		target := record.Tank.TargetTemp
		cmd.TankTarget = &target
		if math.Abs(target-record.Tank.PreviousTarget) >= deadband {
			changed = true
		}
	}
	return cmd, changed
}
