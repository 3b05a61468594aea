package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/types"
)

// handleGetSettings returns the device settings, fully migrated.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	settings, err := s.getSettingsWithMigration(ctx, deviceID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"settings": settings,
		"version":  types.CurrentSettingsVersion,
	})
}

// handleUpdateSettings replaces the device settings. The posted settings are
// run through the migration chain so omitted fields pick up defaults rather
// than zeros.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	var settings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSONError(w, "invalid settings body", http.StatusBadRequest)
		return
	}

	if err := validateSettings(settings); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// fill defaults for anything the caller left zero
	migrated, _, err := types.MigrateSettings(settings, 0)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to migrate posted settings", slog.Any("error", err))
		writeJSONError(w, "failed to migrate settings", http.StatusInternalServerError)
		return
	}

	if err := s.storage.SetSettings(ctx, deviceID, migrated, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "settings updated", slog.String("deviceID", deviceID))
	writeJSON(w, map[string]interface{}{
		"status":   "success",
		"settings": migrated,
	})
}

func validateSettings(s types.Settings) error {
	check := func(name string, z types.ZoneConstraints) error {
		if z.MaxTemp != 0 && z.MinTemp >= z.MaxTemp {
			return &settingsError{name + ": minTemp must be below maxTemp"}
		}
		if z.StepMax < 0 {
			return &settingsError{name + ": stepMax cannot be negative"}
		}
		return nil
	}
	if err := check("zone1", s.Zone1); err != nil {
		return err
	}
	if err := check("zone2", s.Zone2); err != nil {
		return err
	}
	if err := check("tank", s.Tank); err != nil {
		return err
	}
	if s.DayStartHour < 0 || s.DayStartHour > 23 || s.DayEndHour < 0 || s.DayEndHour > 23 {
		return &settingsError{"comfort hours must be within 0-23"}
	}
	if s.NightTempReduction < 0 {
		return &settingsError{"nightTempReduction cannot be negative"}
	}
	if s.Deadband < 0 {
		return &settingsError{"deadband cannot be negative"}
	}
	return nil
}

type settingsError struct{ msg string }

func (e *settingsError) Error() string { return e.msg }
