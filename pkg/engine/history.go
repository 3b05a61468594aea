package engine

import (
	"github.com/heatpilot/heatpilot/pkg/types"
)

// HistoryCapacity is the maximum number of retained optimization records,
// 7 days of hourly cycles. Eviction is strictly oldest-first.
const HistoryCapacity = 168

// History is a bounded, insertion-ordered buffer of past optimization
// outcomes. It is owned by a single Engine for the process lifetime and
// assumes non-concurrent use (see Engine).
type History struct {
	records []types.OptimizationRecord
}

// NewHistory returns an empty history buffer.
func NewHistory() *History {
	return &History{records: make([]types.OptimizationRecord, 0, HistoryCapacity)}
}

// Append adds a record, evicting the oldest entry once the capacity is
// exceeded.
func (h *History) Append(rec types.OptimizationRecord) {
	h.records = append(h.records, rec)
	if len(h.records) > HistoryCapacity {
		h.records = h.records[len(h.records)-HistoryCapacity:]
	}
}

// AmendLast replaces the newest record in place. No-op when empty.
func (h *History) AmendLast(rec types.OptimizationRecord) {
	if len(h.records) == 0 {
		return
	}
	h.records[len(h.records)-1] = rec
}

// Len returns the number of retained records.
func (h *History) Len() int {
	return len(h.records)
}

// Snapshot returns a copy of the retained records, oldest first. The copy is
// safe for the host to serialize.
func (h *History) Snapshot() []types.OptimizationRecord {
	out := make([]types.OptimizationRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Load replaces the buffer with a previously serialized snapshot, keeping
// only the newest HistoryCapacity records.
func (h *History) Load(records []types.OptimizationRecord) {
	if len(records) > HistoryCapacity {
		records = records[len(records)-HistoryCapacity:]
	}
	h.records = make([]types.OptimizationRecord, len(records))
	copy(h.records, records)
}
