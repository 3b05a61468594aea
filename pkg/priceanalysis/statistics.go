// Package priceanalysis computes distributional statistics, peak/valley/trend
// patterns, and a forward-looking forecast from a raw electricity price
// series. Everything here is a pure function of its inputs.
package priceanalysis

import (
	"math"
	"sort"

	"github.com/heatpilot/heatpilot/pkg/types"
)

// ComputeStatistics returns distributional statistics for a price window.
// Empty input returns all-zero statistics, never an error.
func ComputeStatistics(values []float64) types.PriceStatistics {
	if len(values) == 0 {
		return types.PriceStatistics{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg := sum / float64(n)

	var sqSum float64
	for _, v := range sorted {
		d := v - avg
		sqSum += d * d
	}
	stdDev := math.Sqrt(sqSum / float64(n))

	// nearest-rank indexing on the sorted array; the same scheme is used for
	// the median so min <= p25 <= median <= p75 <= max holds by construction
	p25 := sorted[int(float64(n)*0.25)]
	median := sorted[n/2]
	p75 := sorted[int(float64(n)*0.75)]

	var volatility float64
	if avg != 0 {
		volatility = stdDev / avg
	}

	return types.PriceStatistics{
		Min:        sorted[0],
		Max:        sorted[n-1],
		Avg:        avg,
		Median:     median,
		StdDev:     stdDev,
		P25:        p25,
		P75:        p75,
		Range:      sorted[n-1] - sorted[0],
		Volatility: volatility,
	}
}

// Prices extracts the raw price values from a series.
func Prices(series []types.PricePoint) []float64 {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Price
	}
	return values
}
