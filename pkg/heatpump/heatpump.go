// Package heatpump abstracts the controlled device behind a small read/write
// interface. The optimization core never talks to hardware; the host fetches
// a telemetry snapshot before each cycle and writes the decided setpoints
// back afterwards.
package heatpump

import (
	"context"
	"fmt"
	"sync"

	"github.com/heatpilot/heatpilot/pkg/types"
	lflag "github.com/levenlabs/go-lflag"
)

// Device is the control surface for one heat pump installation.
type Device interface {
	// GetState returns the current telemetry snapshot.
	GetState(ctx context.Context) (types.DeviceState, error)

	// SetTargets applies the setpoints decided by an optimization cycle.
	SetTargets(ctx context.Context, cmd types.SetpointCommand) error
}

// Configured sets up the device provider Map. The default device kind for
// newly seen device IDs is flag-controlled.
func Configured() *Map {
	kind := lflag.String("heatpump-kind", "singlezone", "Device kind for new devices (singlezone or airtowater)")

	m := NewMap()
	lflag.Do(func() {
		switch *kind {
		case "singlezone":
			m.defaultKind = types.DeviceKindSingleZone
		case "airtowater":
			m.defaultKind = types.DeviceKindAirToWater
		default:
			panic(fmt.Sprintf("unknown heatpump-kind: %s", *kind))
		}
	})
	return m
}

// Map manages the devices for multiple device IDs.
type Map struct {
	mu          sync.Mutex
	defaultKind types.DeviceKind
	devices     map[string]Device
}

// NewMap creates an empty device Map.
func NewMap() *Map {
	return &Map{
		devices: make(map[string]Device),
	}
}

// Device returns the device for the given ID, creating a simulated device on
// first use.
func (m *Map) Device(deviceID string) Device {
	m.mu.Lock()
	defer m.mu.Unlock()

	if deviceID == "" {
		deviceID = types.DeviceIDNone
	}

	if d, ok := m.devices[deviceID]; ok {
		return d
	}

	m.devices[deviceID] = NewSim(m.defaultKind)
	return m.devices[deviceID]
}

// SetDevice sets the device for a specific ID. This is primarily used for
// testing and for hosts with their own device integration.
func (m *Map) SetDevice(deviceID string, d Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[deviceID] = d
}
