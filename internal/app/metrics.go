package app

import (
	"sync/atomic"
	"time"

	"github.com/dshills/marksync/internal/event/events"
)

// Metrics tracks render cycle timing.
type Metrics struct {
	cycles    atomic.Uint64
	forced    atomic.Uint64
	ops       atomic.Uint64
	fallbacks atomic.Uint64
	reparsed  atomic.Uint64
	reused    atomic.Uint64

	totalNs atomic.Int64
	minNs   atomic.Int64
	maxNs   atomic.Int64
	lastNs  atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	// Initialize min to max int64 so the first cycle will be smaller
	m.minNs.Store(1<<63 - 1)
	return m
}

// RecordCycle records one render cycle.
func (m *Metrics) RecordCycle(c events.RenderCycle) {
	ns := c.Duration.Nanoseconds()

	m.cycles.Add(1)
	if c.Forced {
		m.forced.Add(1)
	}
	m.ops.Add(uint64(c.Ops))
	m.fallbacks.Add(uint64(c.Fallbacks))
	m.reparsed.Add(uint64(c.Reparsed))
	m.reused.Add(uint64(c.Reused))
	m.totalNs.Add(ns)
	m.lastNs.Store(ns)

	for {
		old := m.minNs.Load()
		if ns >= old || m.minNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.maxNs.Load()
		if ns <= old || m.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime    time.Duration
	Cycles    uint64
	Forced    uint64
	Ops       uint64
	Fallbacks uint64
	Reparsed  uint64
	Reused    uint64
	Avg       time.Duration
	Min       time.Duration
	Max       time.Duration
	Last      time.Duration
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	cycles := m.cycles.Load()

	var avg int64
	if cycles > 0 {
		avg = m.totalNs.Load() / int64(cycles)
	}
	minNs := m.minNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}

	return MetricsSnapshot{
		Uptime:    time.Since(m.startTime),
		Cycles:    cycles,
		Forced:    m.forced.Load(),
		Ops:       m.ops.Load(),
		Fallbacks: m.fallbacks.Load(),
		Reparsed:  m.reparsed.Load(),
		Reused:    m.reused.Load(),
		Avg:       time.Duration(avg),
		Min:       time.Duration(minNs),
		Max:       time.Duration(m.maxNs.Load()),
		Last:      time.Duration(m.lastNs.Load()),
	}
}
