package assistant

import (
	"context"

	"github.com/heatpilot/heatpilot/pkg/types"
)

// Mock is a canned Assistant for tests and dry runs.
type Mock struct {
	// Response is returned verbatim from Analyze.
	Response string
	// Err, when set, is returned instead.
	Err error
	// LastRequest records the most recent request for assertions.
	LastRequest *types.CalibrationRequest
}

var _ Assistant = (*Mock)(nil)

// Analyze implements Assistant.
func (m *Mock) Analyze(_ context.Context, req types.CalibrationRequest) (string, error) {
	m.LastRequest = &req
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
