package heatpump

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
)

const (
	// simIndoorPullPerHour is the fraction of the indoor-to-target gap the
	// simulated heating system closes per hour.
	simIndoorPullPerHour = 0.4
	// simLeakPerHour is the fraction of the indoor-to-outdoor gap lost to the
	// envelope per hour.
	simLeakPerHour = 0.05
	// simTankPullPerHour is how fast the simulated tank moves toward its
	// target, in degrees per hour.
	simTankPullPerHour = 3.0
)

// Sim is a deterministic simulated heat pump used when no hardware
// integration is configured. Indoor temperature relaxes toward the active
// setpoint while leaking heat to a sinusoidal outdoor day, so repeated
// cycles against it produce plausible telemetry without any I/O.
type Sim struct {
	mu          sync.Mutex
	kind        types.DeviceKind
	nowFn       func() time.Time
	last        time.Time
	indoor      float64
	zone1Target float64
	zone2       types.SurfaceState
	tank        types.SurfaceState
}

var _ Device = (*Sim)(nil)

// NewSim creates a simulated device of the given kind at steady state.
func NewSim(kind types.DeviceKind) *Sim {
	return &Sim{
		kind:        kind,
		nowFn:       time.Now,
		indoor:      21.0,
		zone1Target: 21.0,
		zone2:       types.SurfaceState{CurrentTemp: 21.0, CurrentTarget: 21.0},
		tank:        types.SurfaceState{CurrentTemp: 47.0, CurrentTarget: 47.0},
	}
}

// simOutdoorAt models a smooth outdoor day peaking mid-afternoon.
func simOutdoorAt(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	return 5.0 + 5.0*math.Sin((hour-9)/24*2*math.Pi)
}

// advance steps the simulation from the last observed time to now in
// at-most-15-minute increments so long idle gaps still integrate smoothly.
func (s *Sim) advance(now time.Time) {
	if s.last.IsZero() {
		s.last = now
		return
	}

	stepStart := s.last
	for stepStart.Before(now) {
		stepEnd := stepStart.Add(15 * time.Minute)
		if stepEnd.After(now) {
			stepEnd = now
		}
		hours := stepEnd.Sub(stepStart).Hours()
		if hours <= 0 {
			break
		}

		outdoor := simOutdoorAt(stepStart)
		s.indoor += (s.zone1Target-s.indoor)*simIndoorPullPerHour*hours +
			(outdoor-s.indoor)*simLeakPerHour*hours
		s.zone2.CurrentTemp += (s.zone2.CurrentTarget-s.zone2.CurrentTemp)*simIndoorPullPerHour*hours +
			(outdoor-s.zone2.CurrentTemp)*simLeakPerHour*hours

		tankGap := s.tank.CurrentTarget - s.tank.CurrentTemp
		tankStep := simTankPullPerHour * hours
		if math.Abs(tankGap) <= tankStep {
			s.tank.CurrentTemp = s.tank.CurrentTarget
		} else {
			s.tank.CurrentTemp += math.Copysign(tankStep, tankGap)
		}

		stepStart = stepEnd
	}
	s.last = now
}

// GetState advances the simulation to the current time and returns the
// resulting telemetry snapshot.
func (s *Sim) GetState(ctx context.Context) (types.DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	s.advance(now)

	indoor := s.indoor
	outdoor := simOutdoorAt(now)
	state := types.DeviceState{
		Kind:              s.kind,
		CurrentIndoorTemp: &indoor,
		CurrentTarget:     s.zone1Target,
		OutdoorTemp:       &outdoor,
	}
	if s.kind == types.DeviceKindAirToWater {
		zone2 := s.zone2
		tank := s.tank
		state.Zone2 = &zone2
		state.Tank = &tank
	}
	return state, nil
}

// SetTargets advances the simulation under the old setpoints, then applies
// the new ones.
func (s *Sim) SetTargets(ctx context.Context, cmd types.SetpointCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance(s.nowFn())

	s.zone1Target = cmd.Zone1Target
	if cmd.Zone2Target != nil {
		s.zone2.CurrentTarget = *cmd.Zone2Target
	}
	if cmd.TankTarget != nil {
		s.tank.CurrentTarget = *cmd.TankTarget
	}
	return nil
}
