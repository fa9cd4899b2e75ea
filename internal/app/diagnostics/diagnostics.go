// Package diagnostics keeps the bounded transmission log and the status
// snapshot that external displays and the status endpoint read.
package diagnostics

import (
	"sync"
	"time"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
)

// Status is the externally visible summary. It stays readable during
// EMERGENCY.
type Status struct {
	NodeID      string            `json:"node_id"`
	State       string            `json:"state"`
	QueueDepth  int               `json:"queue_depth"`
	LastFailure string            `json:"last_failure,omitempty"`
	FailureAt   time.Time         `json:"last_failure_at,omitempty"`
	Power       domain.PowerState `json:"power"`
	PowerLevel  string            `json:"power_level"`
	Fault       string            `json:"fault,omitempty"`
	Delivered   uint64            `json:"delivered"`
	Abandoned   uint64            `json:"abandoned"`
	Expired     uint64            `json:"expired"`
	Captures    uint64            `json:"captures"`
	Coalesced   uint64            `json:"coalesced_triggers"`
	LastSleep   string            `json:"last_sleep,omitempty"`
	NextWakeIn  time.Duration     `json:"next_wake_in_ns,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Diagnostics is a fixed-capacity ring of TransmissionRecords plus the
// current Status. The orchestrator only appends.
type Diagnostics struct {
	mu     sync.RWMutex
	ring   []domain.TransmissionRecord
	next   int
	n      int
	status Status
	hooks  []func(domain.TransmissionRecord)
	now    func() time.Time
}

func New(capacity int) *Diagnostics {
	if capacity <= 0 {
		capacity = 128
	}
	return &Diagnostics{
		ring: make([]domain.TransmissionRecord, capacity),
		now:  time.Now,
	}
}

// OnRecord registers fn to observe every appended record. fn runs on the
// caller's goroutine and must not block.
func (d *Diagnostics) OnRecord(fn func(domain.TransmissionRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

func (d *Diagnostics) Append(rec domain.TransmissionRecord) {
	d.mu.Lock()
	d.ring[d.next] = rec
	d.next = (d.next + 1) % len(d.ring)
	if d.n < len(d.ring) {
		d.n++
	}
	switch rec.Outcome {
	case domain.OutcomeSuccess:
		d.status.Delivered++
	case domain.OutcomeAbandoned:
		d.status.Abandoned++
	case domain.OutcomeExpired:
		d.status.Expired++
	}
	hooks := d.hooks
	d.mu.Unlock()

	for _, fn := range hooks {
		fn(rec)
	}
}

// Records returns the retained records, oldest first.
func (d *Diagnostics) Records() []domain.TransmissionRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.TransmissionRecord, 0, d.n)
	start := (d.next - d.n + len(d.ring)) % len(d.ring)
	for i := 0; i < d.n; i++ {
		out = append(out, d.ring[(start+i)%len(d.ring)])
	}
	return out
}

// FailureRate is the share of FAILED or TIMEOUT outcomes among the last n
// delivery attempts over kind. No history counts as zero.
func (d *Diagnostics) FailureRate(kind domain.LinkKind, n int) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var attempts, failures int
	for i := 1; i <= d.n && (n <= 0 || attempts < n); i++ {
		rec := d.ring[(d.next-i+len(d.ring))%len(d.ring)]
		if rec.Link != kind {
			continue
		}
		switch rec.Outcome {
		case domain.OutcomeSuccess:
			attempts++
		case domain.OutcomeFailed, domain.OutcomeTimeout:
			attempts++
			failures++
		}
	}
	if attempts == 0 {
		return 0
	}
	return float64(failures) / float64(attempts)
}

// RecordFailure stores the kind of the most recent failure.
func (d *Diagnostics) RecordFailure(err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.LastFailure = domain.FailureKind(err)
	d.status.FailureAt = d.now()
}

// Update mutates the status snapshot under the lock.
func (d *Diagnostics) Update(fn func(*Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.status)
	d.status.UpdatedAt = d.now()
}

func (d *Diagnostics) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}
