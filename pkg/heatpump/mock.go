package heatpump

import (
	"context"

	"github.com/heatpilot/heatpilot/pkg/types"
)

// Mock is a canned Device for tests.
type Mock struct {
	// State is returned from GetState.
	State types.DeviceState
	// StateErr, when set, is returned from GetState instead.
	StateErr error
	// SetErr, when set, is returned from SetTargets.
	SetErr error
	// LastCommand records the most recent SetTargets command.
	LastCommand *types.SetpointCommand
}

var _ Device = (*Mock)(nil)

// GetState implements Device.
func (m *Mock) GetState(_ context.Context) (types.DeviceState, error) {
	if m.StateErr != nil {
		return types.DeviceState{}, m.StateErr
	}
	return m.State, nil
}

// SetTargets implements Device.
func (m *Mock) SetTargets(_ context.Context, cmd types.SetpointCommand) error {
	m.LastCommand = &cmd
	if m.SetErr != nil {
		return m.SetErr
	}
	return nil
}
