package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKFactor(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"Labeled", "Based on the data, the recommended K factor: 0.45", 0.45, true},
		{"LabeledEquals", "k-factor = 0.7 given the slow thermal response", 0.7, true},
		{"LabeledColon", "K: 0.25", 0.25, true},
		{"BareFloat", "I suggest using 0.62 going forward.", 0.62, true},
		{"PrefersLabeled", "Raise from 0.30; new K factor: 0.60", 0.6, true},
		{"OutOfRangeHigh", "K factor: 1.8", 0, false},
		{"OutOfRangeLow", "K factor: 0.01", 0, false},
		{"SkipsOutOfRangeBare", "Confidence 0.99... wait, 12.5 is wrong, use 0.55", 0.99, true},
		{"NoNumber", "insufficient data to make a recommendation", 0, false},
		{"Empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractKFactor(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
