package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline metrics counters.
type Metrics struct {
	Profile string

	Received     atomic.Uint64
	Malformed    atomic.Uint64
	Unparsed     atomic.Uint64
	Parsed       atomic.Uint64
	Dropped      atomic.Uint64 // malformed datagrams plus queue overflow
	Filtered     atomic.Uint64 // messages an action dropped
	Sent         atomic.Uint64
	ActionErrors atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics(profile string) *Metrics {
	return &Metrics{Profile: profile}
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Received:     m.Received.Load(),
		Malformed:    m.Malformed.Load(),
		Unparsed:     m.Unparsed.Load(),
		Parsed:       m.Parsed.Load(),
		Dropped:      m.Dropped.Load(),
		Filtered:     m.Filtered.Load(),
		Sent:         m.Sent.Load(),
		ActionErrors: m.ActionErrors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64
	Malformed    uint64
	Unparsed     uint64
	Parsed       uint64
	Dropped      uint64
	Filtered     uint64
	Sent         uint64
	ActionErrors uint64
}
