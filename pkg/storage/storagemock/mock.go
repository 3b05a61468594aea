package storagemock

import (
	"context"
	"time"

	"github.com/heatpilot/heatpilot/pkg/storage"
	"github.com/heatpilot/heatpilot/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, deviceID string) (types.Settings, int, error) {
	args := m.Called(ctx, deviceID)
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, deviceID string, settings types.Settings, version int) error {
	args := m.Called(ctx, deviceID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) GetThermalModel(ctx context.Context, deviceID string) (types.ThermalModel, error) {
	args := m.Called(ctx, deviceID)
	if len(args) > 0 {
		return args.Get(0).(types.ThermalModel), args.Error(1)
	}
	return types.ThermalModel{}, nil
}

func (m *MockDatabase) SetThermalModel(ctx context.Context, deviceID string, model types.ThermalModel) error {
	args := m.Called(ctx, deviceID, model)
	return args.Error(0)
}

func (m *MockDatabase) InsertOptimizationRecord(ctx context.Context, deviceID string, record types.OptimizationRecord) error {
	args := m.Called(ctx, deviceID, record)
	return args.Error(0)
}

func (m *MockDatabase) GetOptimizationHistory(ctx context.Context, deviceID string, start, end time.Time) ([]types.OptimizationRecord, error) {
	args := m.Called(ctx, deviceID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.OptimizationRecord), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetRecentOptimizationHistory(ctx context.Context, deviceID string, limit int) ([]types.OptimizationRecord, error) {
	args := m.Called(ctx, deviceID, limit)
	if len(args) > 0 {
		return args.Get(0).([]types.OptimizationRecord), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) InsertCalibration(ctx context.Context, deviceID string, record types.CalibrationRecord) error {
	args := m.Called(ctx, deviceID, record)
	return args.Error(0)
}

func (m *MockDatabase) GetLatestCalibration(ctx context.Context, deviceID string) (*types.CalibrationRecord, error) {
	args := m.Called(ctx, deviceID)
	val := args.Get(0)
	if val == nil {
		return nil, args.Error(1)
	}
	return val.(*types.CalibrationRecord), args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
