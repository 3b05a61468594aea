package priceanalysis

import (
	"github.com/heatpilot/heatpilot/pkg/types"
)

// FindPatterns detects local peaks, valleys and trend segments in a price
// series. Series with fewer than 3 points return an empty pattern.
func FindPatterns(series []types.PricePoint) types.PricePattern {
	var pattern types.PricePattern
	if len(series) < 3 {
		return pattern
	}

	// a local extreme requires strict inequality against both neighbors
	for i := 1; i < len(series)-1; i++ {
		prev, cur, next := series[i-1].Price, series[i].Price, series[i+1].Price
		if cur > prev && cur > next {
			pattern.Peaks = append(pattern.Peaks, types.PriceExtreme{
				Index: i,
				TS:    series[i].TS,
				Price: cur,
			})
		} else if cur < prev && cur < next {
			pattern.Valleys = append(pattern.Valleys, types.PriceExtreme{
				Index: i,
				TS:    series[i].TS,
				Price: cur,
			})
		}
	}

	pattern.Trends = findTrends(series)
	return pattern
}

func stepDirection(from, to float64) types.TrendDirection {
	switch {
	case to > from:
		return types.TrendUp
	case to < from:
		return types.TrendDown
	default:
		return types.TrendFlat
	}
}

// findTrends walks adjacent steps and groups them into segments. A flat step
// continues the current segment; a reversal closes it and starts the next one
// at the shared point. Segments shorter than 2 steps are not reported.
func findTrends(series []types.PricePoint) []types.PriceTrend {
	var trends []types.PriceTrend

	start := 0
	// direction stays flat until the segment sees its first real move
	direction := types.TrendFlat

	closeSegment := func(end int) {
		if end-start < 2 {
			return
		}
		startPt, endPt := series[start], series[end]
		change := endPt.Price - startPt.Price
		var pct float64
		if startPt.Price != 0 {
			pct = change / startPt.Price * 100
		}
		trends = append(trends, types.PriceTrend{
			Direction:     direction,
			StartIndex:    start,
			EndIndex:      end,
			StartTS:       startPt.TS,
			EndTS:         endPt.TS,
			StartPrice:    startPt.Price,
			EndPrice:      endPt.Price,
			DurationHours: endPt.TS.Sub(startPt.TS).Hours(),
			PriceChange:   change,
			PercentChange: pct,
		})
	}

	for i := 1; i < len(series); i++ {
		step := stepDirection(series[i-1].Price, series[i].Price)
		if step == types.TrendFlat {
			continue
		}
		if direction == types.TrendFlat {
			direction = step
			continue
		}
		if step != direction {
			// reversal: the shared point ends one segment and starts the next
			closeSegment(i - 1)
			start = i - 1
			direction = step
		}
	}
	closeSegment(len(series) - 1)

	return trends
}
