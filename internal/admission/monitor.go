// Package admission bounds the number of concurrently served stream
// clients. Admission is a hard reject at the limit, never a queue, so
// client growth can never back up into the capture path.
package admission

import (
	"sync/atomic"

	"github.com/fbmirror/fbmirror/internal/metrics"
)

// Reason classifies an admission verdict. Values are lowercase for stable
// PromQL queries.
type Reason string

const (
	ReasonAdmitted Reason = "admitted"
	ReasonCapacity Reason = "capacity"
)

// Monitor is the mechanical gatekeeper for stream worker slots. Min is a
// pre-warming hint for idle workers and never limits admission; Max is the
// hard ceiling on concurrent clients.
type Monitor struct {
	active atomic.Int64
	min    int64
	max    int64
}

// NewMonitor creates a monitor with the given bounds. Non-positive values
// fall back to 1 worker minimum and 4 maximum.
func NewMonitor(minWorkers, maxWorkers int) *Monitor {
	if minWorkers <= 0 {
		minWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = 4
		if maxWorkers < minWorkers {
			maxWorkers = minWorkers
		}
	}
	return &Monitor{min: int64(minWorkers), max: int64(maxWorkers)}
}

// Acquire claims a worker slot. It returns false with ReasonCapacity when
// all slots are taken; the caller must answer with a capacity response and
// must not retry on the client's behalf.
func (m *Monitor) Acquire() (Reason, bool) {
	for {
		current := m.active.Load()
		if current >= m.max {
			metrics.RecordReject(string(ReasonCapacity))
			return ReasonCapacity, false
		}
		if m.active.CompareAndSwap(current, current+1) {
			metrics.RecordAdmit()
			metrics.SetActiveClients(float64(current + 1))
			return ReasonAdmitted, true
		}
	}
}

// Release returns a previously acquired slot. Exactly one Release per
// successful Acquire.
func (m *Monitor) Release() {
	newVal := m.active.Add(-1)
	metrics.SetActiveClients(float64(newVal))
}

// Active returns the number of currently held slots.
func (m *Monitor) Active() int {
	return int(m.active.Load())
}

// Min returns the pre-warm hint.
func (m *Monitor) Min() int {
	return int(m.min)
}

// Max returns the admission ceiling.
func (m *Monitor) Max() int {
	return int(m.max)
}
