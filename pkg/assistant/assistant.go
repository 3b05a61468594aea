// Package assistant defines the optional external reasoning service used by
// weekly calibration, plus the permissive parsing of its free-text replies.
package assistant

import (
	"context"
	"regexp"
	"strconv"

	"github.com/heatpilot/heatpilot/pkg/types"
)

// Assistant analyzes a calibration request and returns a free-text narrative
// that should contain a recommended K factor somewhere in it.
type Assistant interface {
	Analyze(ctx context.Context, req types.CalibrationRequest) (string, error)
}

var (
	// labeled forms such as "K factor: 0.45", "k-factor = 0.45", "K: 0.45"
	labeledK = regexp.MustCompile(`(?i)k[ -]?(?:factor)?\s*[:=]?\s*(-?\d+(?:\.\d+)?)`)
	// any bare decimal as a last resort
	bareFloat = regexp.MustCompile(`-?\d+\.\d+`)
)

// ExtractKFactor extracts a K recommendation from free text. It returns
// false when no number can be found or the value falls outside the valid
// K range; the caller applies the default explicitly.
func ExtractKFactor(text string) (float64, bool) {
	if m := labeledK.FindStringSubmatch(text); m != nil {
		if k, err := strconv.ParseFloat(m[1], 64); err == nil && inRange(k) {
			return k, true
		}
	}
	for _, m := range bareFloat.FindAllString(text, -1) {
		if k, err := strconv.ParseFloat(m, 64); err == nil && inRange(k) {
			return k, true
		}
	}
	return 0, false
}

func inRange(k float64) bool {
	return k >= types.KFactorMin && k <= types.KFactorMax
}
