package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/heatpilot/heatpilot/pkg/log"
)

// handleHistory returns the stored decision records for a device within a
// time range, defaulting to the last 7 days.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	end := time.Now()
	start := end.Add(-7 * 24 * time.Hour)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid start time", http.StatusBadRequest)
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid end time", http.StatusBadRequest)
			return
		}
		end = t
	}
	if !start.Before(end) {
		writeJSONError(w, "start must be before end", http.StatusBadRequest)
		return
	}

	records, err := s.storage.GetOptimizationHistory(ctx, deviceID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get optimization history", slog.Any("error", err))
		writeJSONError(w, "failed to get history", http.StatusInternalServerError)
		return
	}

	latestCalibration, err := s.storage.GetLatestCalibration(ctx, deviceID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get latest calibration", slog.Any("error", err))
	}

	writeJSON(w, map[string]interface{}{
		"history":           records,
		"latestCalibration": latestCalibration,
	})
}
