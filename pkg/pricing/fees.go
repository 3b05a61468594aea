package pricing

import (
	"context"
	"sync"

	"github.com/heatpilot/heatpilot/pkg/types"
)

// SurchargePeriod is a recurring time-of-day surcharge added on top of the
// spot price, for network tariffs that vary by hour. HourStart is inclusive,
// HourEnd exclusive, both in the price point's own location.
type SurchargePeriod struct {
	HourStart int     `json:"hourStart"`
	HourEnd   int     `json:"hourEnd"`
	PerKWH    float64 `json:"perKWH"`
}

// Fees wraps a base Provider and folds configured surcharges into every
// price it returns.
type Fees struct {
	base    Provider
	mu      sync.Mutex
	periods []SurchargePeriod
}

var _ Provider = (*Fees)(nil)

// NewFees wraps base with the given surcharge periods.
func NewFees(base Provider, periods []SurchargePeriod) *Fees {
	return &Fees{base: base, periods: periods}
}

// SetPeriods replaces the surcharge periods.
func (f *Fees) SetPeriods(periods []SurchargePeriod) {
	f.mu.Lock()
	f.periods = periods
	f.mu.Unlock()
}

func (f *Fees) apply(p types.PricePoint) types.PricePoint {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := p.TS.Hour()
	for _, period := range f.periods {
		if h < period.HourStart || h >= period.HourEnd {
			continue
		}
		p.Price += period.PerKWH
	}
	return p
}

// CurrentPrice implements Provider.
func (f *Fees) CurrentPrice(ctx context.Context) (types.PricePoint, error) {
	p, err := f.base.CurrentPrice(ctx)
	if err != nil {
		return types.PricePoint{}, err
	}
	return f.apply(p), nil
}

// FuturePrices implements Provider.
func (f *Fees) FuturePrices(ctx context.Context) ([]types.PricePoint, error) {
	prices, err := f.base.FuturePrices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = f.apply(p)
	}
	return out, nil
}
