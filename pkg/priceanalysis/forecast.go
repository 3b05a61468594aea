package priceanalysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/heatpilot/heatpilot/pkg/types"
)

const (
	// significantChangePct is the threshold (in percent of the current price)
	// for an upcoming change to be flagged.
	significantChangePct = 15.0
	// upcomingWindowPoints is how many future points are scanned for
	// significant changes.
	upcomingWindowPoints = 6
	// bestWorstCount limits the reported best/worst times.
	bestWorstCount = 3
)

// BuildForecast builds the forward-looking forecast from a price series and
// the current point. Only points at or after the current point's hour are
// considered. An empty future window degrades to a "no data" forecast.
func BuildForecast(series []types.PricePoint, current types.PricePoint) types.PriceForecast {
	cutoff := current.TS.Truncate(time.Hour)

	var future []types.PricePoint
	for _, p := range series {
		if !p.TS.Before(cutoff) {
			future = append(future, p)
		}
	}

	if len(future) == 0 {
		return types.PriceForecast{
			CurrentPosition: types.PricePositionMedium,
			Recommendation:  "No price data available for the current hour onward",
			NoData:          true,
		}
	}

	stats := ComputeStatistics(Prices(future))

	position, ok := current.Position()
	if !ok {
		switch {
		case current.Price <= stats.P25:
			position = types.PricePositionLow
		case current.Price >= stats.P75:
			position = types.PricePositionHigh
		default:
			position = types.PricePositionMedium
		}
	}

	upcoming := findUpcomingChange(future, current)

	best, worst := bestWorstTimes(future, cutoff)

	return types.PriceForecast{
		CurrentPosition: position,
		Recommendation:  recommendation(position, upcoming),
		UpcomingChanges: upcoming,
		BestTimes:       best,
		WorstTimes:      worst,
		FutureStats:     stats,
	}
}

// findUpcomingChange scans the next few future points for a move of at least
// significantChangePct relative to the current price. When both an increase
// and a decrease qualify, the larger magnitude wins.
func findUpcomingChange(future []types.PricePoint, current types.PricePoint) types.UpcomingChange {
	if current.Price == 0 {
		return types.UpcomingChange{}
	}

	var maxIncrease, maxDecrease types.UpcomingChange
	scanned := 0
	for _, p := range future {
		if !p.TS.After(current.TS) {
			continue
		}
		scanned++
		if scanned > upcomingWindowPoints {
			break
		}
		change := p.Price - current.Price
		pct := change / current.Price * 100
		if change > 0 && change > maxIncrease.Change {
			maxIncrease = types.UpcomingChange{Change: change, ChangePercent: pct, TS: p.TS}
		} else if change < 0 && change < maxDecrease.Change {
			maxDecrease = types.UpcomingChange{Change: change, ChangePercent: pct, TS: p.TS}
		}
	}

	pick := maxIncrease
	if math.Abs(maxDecrease.Change) > math.Abs(maxIncrease.Change) {
		pick = maxDecrease
	}
	if math.Abs(pick.ChangePercent) < significantChangePct {
		return pick
	}

	pick.Significant = true
	if pick.Change > 0 {
		pick.Message = fmt.Sprintf("Price increase of %.0f%% expected at %s", pick.ChangePercent, pick.TS.Format("15:04"))
	} else {
		pick.Message = fmt.Sprintf("Price decrease of %.0f%% expected at %s", -pick.ChangePercent, pick.TS.Format("15:04"))
	}
	return pick
}

// bestWorstTimes returns the cheapest and most expensive points within the
// next 24 hours, cheapest/priciest first.
func bestWorstTimes(future []types.PricePoint, cutoff time.Time) ([]types.PricePoint, []types.PricePoint) {
	horizon := cutoff.Add(24 * time.Hour)
	var window []types.PricePoint
	for _, p := range future {
		if p.TS.Before(horizon) {
			window = append(window, p)
		}
	}
	if len(window) == 0 {
		return nil, nil
	}

	byPrice := append([]types.PricePoint(nil), window...)
	sort.SliceStable(byPrice, func(i, j int) bool { return byPrice[i].Price < byPrice[j].Price })

	n := bestWorstCount
	if n > len(byPrice) {
		n = len(byPrice)
	}
	best := append([]types.PricePoint(nil), byPrice[:n]...)

	worst := make([]types.PricePoint, 0, n)
	for i := len(byPrice) - 1; i >= len(byPrice)-n; i-- {
		worst = append(worst, byPrice[i])
	}
	return best, worst
}

func recommendation(position types.PricePosition, upcoming types.UpcomingChange) string {
	if upcoming.Significant && upcoming.Change > 0 {
		return "Prices rising soon, consider heating now"
	}
	if upcoming.Significant && upcoming.Change < 0 {
		return "Prices dropping soon, consider delaying heating"
	}
	switch position {
	case types.PricePositionLow:
		return "Price is low, good time to heat"
	case types.PricePositionHigh:
		return "Price is high, reduce heating if possible"
	default:
		return "Price is average, maintain normal heating"
	}
}
