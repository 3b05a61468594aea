package server

import (
	"log/slog"
	"net/http"

	"github.com/heatpilot/heatpilot/pkg/log"
)

// handleCalibrate runs the weekly thermal calibration for a device. Too
// little history is not an error: the response carries success=false and the
// scheduler tries again next week.
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	settings, err := s.getSettingsWithMigration(ctx, deviceID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	eng, err := s.engineFor(ctx, deviceID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to hydrate engine", slog.Any("error", err))
		writeJSONError(w, "failed to hydrate engine", http.StatusInternalServerError)
		return
	}

	result := eng.RunWeeklyCalibration(ctx, settings)
	if !result.Success {
		// We return 200 OK so the scheduler doesn't think it failed
		writeJSON(w, map[string]interface{}{
			"success": false,
			"message": result.Message,
		})
		return
	}

	if err := s.storage.InsertCalibration(ctx, deviceID, *result.Record); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to insert calibration record", slog.Any("error", err))
	}
	if err := s.storage.SetThermalModel(ctx, deviceID, eng.Model()); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save thermal model", slog.Any("error", err))
		writeJSONError(w, "failed to save thermal model", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"success": true,
		"record":  result.Record,
	})
}
