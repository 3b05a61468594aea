package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
	lflag "github.com/levenlabs/go-lflag"
	_ "modernc.org/sqlite"
)

// SQLiteProvider implements the Database interface on an embedded sqlite
// file, for single-host deployments that don't want a cloud dependency. Rows
// hold their payload as a JSON string, mirroring the Firestore layout, and
// timestamps are stored as RFC3339 UTC strings so range queries stay
// lexicographic.
type SQLiteProvider struct {
	db   *sql.DB
	path string
}

// configuredSQLite sets up the sqlite provider.
// It registers flags for configuration.
func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "heatpilot.db", "Path to the sqlite database file")

	s := &SQLiteProvider{}
	lflag.Do(func() {
		s.path = *path
	})
	return s
}

// NewSQLite creates a provider for the given path (":memory:" for tests).
func NewSQLite(path string) *SQLiteProvider {
	return &SQLiteProvider{path: path}
}

// Init opens the database and creates the schema.
// This must be called before using the provider methods.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite db %s: %w", s.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping sqlite db %s: %w", s.path, err)
	}
	s.db = db

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS settings (
			device_id TEXT PRIMARY KEY,
			json      TEXT NOT NULL,
			version   INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS thermal_models (
			device_id TEXT PRIMARY KEY,
			json      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS optimization_history (
			device_id TEXT,
			ts        TEXT,
			json      TEXT NOT NULL,
			PRIMARY KEY (device_id, ts)
		);
		CREATE TABLE IF NOT EXISTS calibrations (
			device_id TEXT,
			ts        TEXT,
			json      TEXT NOT NULL,
			PRIMARY KEY (device_id, ts)
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func checkDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("deviceID cannot be empty")
	}
	return nil
}

// GetSettings retrieves the device configuration. A missing row returns zero
// settings with version 0 so the caller runs the full migration chain.
func (s *SQLiteProvider) GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return types.Settings{}, 0, err
	}

	var jsonStr string
	var version int
	err := s.db.QueryRowContext(ctx,
		"SELECT json, version FROM settings WHERE device_id = ?", deviceID,
	).Scan(&jsonStr, &version)
	if err == sql.ErrNoRows {
		return types.Settings{}, 0, nil
	}
	if err != nil {
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings row: %w", err)
	}

	var settings types.Settings
	if err := json.Unmarshal([]byte(jsonStr), &settings); err != nil {
		return types.Settings{}, 0, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, version, nil
}

// SetSettings saves the device configuration.
func (s *SQLiteProvider) SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (device_id, json, version) VALUES (?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET json = excluded.json, version = excluded.version
	`, deviceID, string(jsonBytes), version)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetThermalModel retrieves the calibrated thermal model. A missing row
// returns a zero model; the engine substitutes the default K.
func (s *SQLiteProvider) GetThermalModel(ctx context.Context, deviceID string) (types.ThermalModel, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return types.ThermalModel{}, err
	}

	var jsonStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT json FROM thermal_models WHERE device_id = ?", deviceID,
	).Scan(&jsonStr)
	if err == sql.ErrNoRows {
		return types.ThermalModel{}, nil
	}
	if err != nil {
		return types.ThermalModel{}, fmt.Errorf("failed to fetch thermal model row: %w", err)
	}

	var m types.ThermalModel
	if err := json.Unmarshal([]byte(jsonStr), &m); err != nil {
		return types.ThermalModel{}, fmt.Errorf("failed to unmarshal thermal model: %w", err)
	}
	return m, nil
}

// SetThermalModel saves the thermal model.
func (s *SQLiteProvider) SetThermalModel(ctx context.Context, deviceID string, model types.ThermalModel) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal thermal model: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thermal_models (device_id, json) VALUES (?, ?)
		ON CONFLICT (device_id) DO UPDATE SET json = excluded.json
	`, deviceID, string(jsonBytes))
	if err != nil {
		return fmt.Errorf("failed to save thermal model: %w", err)
	}
	return nil
}

// InsertOptimizationRecord adds or overwrites the decision record for its
// hour.
func (s *SQLiteProvider) InsertOptimizationRecord(ctx context.Context, deviceID string, record types.OptimizationRecord) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	if record.Timestamp.IsZero() {
		return fmt.Errorf("optimization record missing timestamp")
	}
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal optimization record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimization_history (device_id, ts, json) VALUES (?, ?, ?)
		ON CONFLICT (device_id, ts) DO UPDATE SET json = excluded.json
	`, deviceID, record.Timestamp.UTC().Format(time.RFC3339), string(jsonBytes))
	if err != nil {
		return fmt.Errorf("failed to insert optimization record: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]types.OptimizationRecord, error) {
	defer rows.Close()

	var records []types.OptimizationRecord
	for rows.Next() {
		var jsonStr string
		if err := rows.Scan(&jsonStr); err != nil {
			return nil, fmt.Errorf("failed to scan optimization record: %w", err)
		}
		var r types.OptimizationRecord
		if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal optimization record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetOptimizationHistory retrieves decision records within the specified
// time range.
func (s *SQLiteProvider) GetOptimizationHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.OptimizationRecord, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT json FROM optimization_history
		WHERE device_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, deviceID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization history: %w", err)
	}
	return scanRecords(rows)
}

// GetRecentOptimizationHistory retrieves up to limit of the newest decision
// records, returned ascending by timestamp.
func (s *SQLiteProvider) GetRecentOptimizationHistory(ctx context.Context, deviceID string, limit int) ([]types.OptimizationRecord, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT json FROM (
			SELECT json, ts FROM optimization_history
			WHERE device_id = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent optimization history: %w", err)
	}
	return scanRecords(rows)
}

// InsertCalibration adds a calibration record.
func (s *SQLiteProvider) InsertCalibration(ctx context.Context, deviceID string, record types.CalibrationRecord) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	if record.Timestamp.IsZero() {
		return fmt.Errorf("calibration record missing timestamp")
	}
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calibrations (device_id, ts, json) VALUES (?, ?, ?)
		ON CONFLICT (device_id, ts) DO UPDATE SET json = excluded.json
	`, deviceID, record.Timestamp.UTC().Format(time.RFC3339), string(jsonBytes))
	if err != nil {
		return fmt.Errorf("failed to insert calibration record: %w", err)
	}
	return nil
}

// GetLatestCalibration retrieves the most recent calibration record, or nil
// when the device has never been calibrated.
func (s *SQLiteProvider) GetLatestCalibration(ctx context.Context, deviceID string) (*types.CalibrationRecord, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}

	var jsonStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT json FROM calibrations WHERE device_id = ? ORDER BY ts DESC LIMIT 1
	`, deviceID).Scan(&jsonStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest calibration: %w", err)
	}

	var r types.CalibrationRecord
	if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal calibration record: %w", err)
	}
	return &r, nil
}

var _ Database = (*SQLiteProvider)(nil)
