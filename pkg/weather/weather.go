// Package weather contributes an optional setpoint adjustment from the
// outdoor temperature forecast. Advice is best-effort: a nil advice means
// nothing to contribute, and optimization cycles must complete without it.
package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
	lflag "github.com/levenlabs/go-lflag"
)

const (
	// trendWindowHours is how far ahead the advisor looks for a swing.
	trendWindowHours = 6
	// swingThresholdC is the forecast-vs-now gap that triggers advice.
	swingThresholdC = 3.0
)

// Advisor produces an optional adjustment for the next optimization cycle.
type Advisor interface {
	// Advise returns advice for the coming hours, or nil when there is
	// nothing to contribute.
	Advise(ctx context.Context) (*types.WeatherAdvice, error)
}

// Configured sets up the host weather advisor: a Static forecast source with
// a flag-controlled adjustment magnitude.
func Configured() *Static {
	magnitude := 0.5
	lflag.JSON(&magnitude, "weather-adjustment", magnitude, "Setpoint adjustment magnitude in degrees for forecast swings")

	s := NewStatic()
	lflag.Do(func() {
		s.mu.Lock()
		s.magnitude = magnitude
		s.mu.Unlock()
	})
	return s
}

// TempPoint is one hour of the outdoor temperature forecast.
type TempPoint struct {
	TS   time.Time `json:"ts"`
	Temp float64   `json:"temp"`
}

// Static is an Advisor fed by the host via SetForecast. With no forecast
// loaded it advises nothing.
type Static struct {
	mu        sync.Mutex
	forecast  []TempPoint
	magnitude float64
	nowFn     func() time.Time
}

var _ Advisor = (*Static)(nil)

// NewStatic creates an empty Static advisor.
func NewStatic() *Static {
	return &Static{magnitude: 0.5, nowFn: time.Now}
}

// SetForecast replaces the stored outdoor forecast with a copy.
func (s *Static) SetForecast(forecast []TempPoint) {
	cp := make([]TempPoint, len(forecast))
	copy(cp, forecast)

	s.mu.Lock()
	s.forecast = cp
	s.mu.Unlock()
}

// Advise implements Advisor. A cold swing over the look-ahead window asks
// for pre-heating; a warm swing asks for backing off. Smaller swings and
// missing forecasts produce no advice.
func (s *Static) Advise(ctx context.Context) (*types.WeatherAdvice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	var current *TempPoint
	var aheadSum float64
	var aheadCount int
	cutoff := now.Add(trendWindowHours * time.Hour)
	for i, p := range s.forecast {
		if p.TS.Truncate(time.Hour).Equal(now.Truncate(time.Hour)) {
			current = &s.forecast[i]
		}
		if p.TS.After(now) && !p.TS.After(cutoff) {
			aheadSum += p.Temp
			aheadCount++
		}
	}
	if current == nil || aheadCount == 0 {
		return nil, nil
	}

	swing := aheadSum/float64(aheadCount) - current.Temp
	details := fmt.Sprintf("outdoor %.1f°C now, %.1f°C mean over next %dh",
		current.Temp, aheadSum/float64(aheadCount), trendWindowHours)

	switch {
	case swing <= -swingThresholdC:
		return &types.WeatherAdvice{
			Adjustment: s.magnitude,
			Reason:     "cold swing ahead, pre-heating",
			Trend:      "falling",
			Details:    details,
		}, nil
	case swing >= swingThresholdC:
		return &types.WeatherAdvice{
			Adjustment: -s.magnitude,
			Reason:     "warm swing ahead, backing off",
			Trend:      "rising",
			Details:    details,
		}, nil
	}
	return nil, nil
}
