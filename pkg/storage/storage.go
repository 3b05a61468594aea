// Package storage persists per-device optimization state: settings, the
// thermal model, the rolling decision history and calibration records.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
	lflag "github.com/levenlabs/go-lflag"
)

// ErrDeviceNotFound is returned when a device has no stored state at all.
var ErrDeviceNotFound = errors.New("device not found")

// Database defines the interface for persisting data and retrieving settings.
type Database interface {
	// Settings
	GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error)
	SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error

	// Thermal model
	GetThermalModel(ctx context.Context, deviceID string) (types.ThermalModel, error)
	SetThermalModel(ctx context.Context, deviceID string, model types.ThermalModel) error

	// Decision history
	// InsertOptimizationRecord adds or overwrites the record for its hour.
	InsertOptimizationRecord(ctx context.Context, deviceID string, record types.OptimizationRecord) error
	GetOptimizationHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.OptimizationRecord, error)
	// GetRecentOptimizationHistory returns up to limit of the newest records,
	// ascending by timestamp. Used to rehydrate an engine at startup.
	GetRecentOptimizationHistory(ctx context.Context, deviceID string, limit int) ([]types.OptimizationRecord, error)

	// Calibration
	InsertCalibration(ctx context.Context, deviceID string, record types.CalibrationRecord) error
	GetLatestCalibration(ctx context.Context, deviceID string) (*types.CalibrationRecord, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, sqlite)")

	var p struct{ Database }

	fs := configuredFirestore()
	sq := configuredSQLite()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "sqlite":
			p.Database = sq
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
