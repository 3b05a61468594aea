// Package pricing defines the price series source for the optimization host.
// The core engine never fetches prices itself; the host pushes hourly series
// into a provider and hands the engine a snapshot each cycle.
package pricing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
	lflag "github.com/levenlabs/go-lflag"
)

// ErrNoCurrentPrice is returned when the stored series has no point covering
// the current hour.
var ErrNoCurrentPrice = errors.New("no price for the current hour")

// Provider defines the interface for reading energy prices.
type Provider interface {
	// CurrentPrice returns the price covering the current hour.
	CurrentPrice(ctx context.Context) (types.PricePoint, error)

	// FuturePrices returns the known series from the current hour onward,
	// ascending by timestamp.
	FuturePrices(ctx context.Context) ([]types.PricePoint, error)
}

// Configured sets up the host price provider: a Static series source with
// flag-configured time-of-day surcharges applied on top. The Static half is
// returned separately so the server can feed it.
func Configured() (*Static, Provider) {
	var periods []SurchargePeriod
	lflag.JSON(&periods, "price-surcharges", nil, "JSON list of time-of-day price surcharges ({hourStart,hourEnd,perKWH})")

	s := NewStatic()
	f := &Fees{base: s}
	lflag.Do(func() {
		f.SetPeriods(periods)
	})
	return s, f
}

// Static is a Provider fed by the host. SetSeries replaces the whole series;
// reads never mutate it.
type Static struct {
	mu     sync.Mutex
	series []types.PricePoint
	nowFn  func() time.Time
}

var _ Provider = (*Static)(nil)

// NewStatic creates an empty Static provider.
func NewStatic() *Static {
	return &Static{nowFn: time.Now}
}

// SetSeries replaces the stored series with a sorted copy.
func (s *Static) SetSeries(series []types.PricePoint) {
	cp := make([]types.PricePoint, len(series))
	copy(cp, series)
	sort.Slice(cp, func(i, j int) bool {
		return cp[i].TS.Before(cp[j].TS)
	})

	s.mu.Lock()
	s.series = cp
	s.mu.Unlock()
}

// CurrentPrice implements Provider.
func (s *Static) CurrentPrice(ctx context.Context) (types.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour := s.nowFn().Truncate(time.Hour)
	for _, p := range s.series {
		if p.TS.Truncate(time.Hour).Equal(hour) {
			return p, nil
		}
	}
	return types.PricePoint{}, ErrNoCurrentPrice
}

// FuturePrices implements Provider.
func (s *Static) FuturePrices(ctx context.Context) ([]types.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour := s.nowFn().Truncate(time.Hour)
	var out []types.PricePoint
	for _, p := range s.series {
		if !p.TS.Truncate(time.Hour).Before(hour) {
			out = append(out, p)
		}
	}
	return out, nil
}
