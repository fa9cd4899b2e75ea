package controller

import (
	"sync/atomic"
	"time"
)

// MotionLatch is the hand-off between the PIR interrupt and the main loop.
// Signal is the only method that may run in interrupt context: it performs
// one compare-and-swap and never allocates or logs. Everything else belongs
// to the loop.
type MotionLatch struct {
	pending   atomic.Int64
	coalesced atomic.Uint64
	clock     func() int64

	cooldown  time.Duration
	lastEvent time.Time
	sleptAt   time.Time
}

func NewMotionLatch(cooldown time.Duration) *MotionLatch {
	return &MotionLatch{
		cooldown: cooldown,
		clock:    func() int64 { return time.Now().UnixNano() },
	}
}

// Signal records a motion edge. Edges arriving while one is already pending
// fold into it.
func (m *MotionLatch) Signal() {
	if !m.pending.CompareAndSwap(0, m.clock()) {
		m.coalesced.Add(1)
	}
}

func (m *MotionLatch) Pending() bool { return m.pending.Load() != 0 }

// Coalesced counts edges that did not produce their own capture event.
func (m *MotionLatch) Coalesced() uint64 { return m.coalesced.Load() }

// Take consumes the pending edge. It reports false when nothing is pending
// or when the edge falls inside the cooldown of the previous event.
func (m *MotionLatch) Take() (time.Time, bool) {
	ns := m.pending.Swap(0)
	if ns == 0 {
		return time.Time{}, false
	}
	at := time.Unix(0, ns)
	if !m.lastEvent.IsZero() && at.Sub(m.lastEvent) < m.cooldown {
		m.coalesced.Add(1)
		return time.Time{}, false
	}
	m.lastEvent = at
	return at, true
}

// Sleeping marks the start of a sleep; loop only.
func (m *MotionLatch) Sleeping() { m.sleptAt = time.Unix(0, m.clock()) }

// Woke turns a motion wake into a pending edge when the interrupt side did
// not already record one. An event accepted at or after the last sleep entry
// means the edge that woke the node was already consumed. Woke never counts
// as a re-trigger; loop only.
func (m *MotionLatch) Woke() {
	if m.Pending() {
		return
	}
	if !m.lastEvent.IsZero() && !m.lastEvent.Before(m.sleptAt) {
		return
	}
	m.pending.CompareAndSwap(0, m.clock())
}

// Clear drops a pending edge without producing an event.
func (m *MotionLatch) Clear() {
	if m.pending.Swap(0) != 0 {
		m.coalesced.Add(1)
	}
}

// SetCooldown changes the coalescing window; loop only.
func (m *MotionLatch) SetCooldown(d time.Duration) { m.cooldown = d }

// LastEvent returns the timestamp of the last accepted edge; loop only.
func (m *MotionLatch) LastEvent() time.Time { return m.lastEvent }

// Restore seeds the cooldown reference after boot; loop only.
func (m *MotionLatch) Restore(last time.Time) { m.lastEvent = last }
