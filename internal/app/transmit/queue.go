// Package transmit owns pending payloads and their retry schedule.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/links"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/selector"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// ErrQueueFull indicates the queue rejected a payload according to policy.
var ErrQueueFull = errors.New("transmission queue full")

// Chooser picks a route for one payload.
type Chooser interface {
	Choose(ctx context.Context, p domain.Payload, st domain.PowerState) (selector.Route, error)
}

// Checkpoint runs before every send. It returns the power state the send is
// judged against; a non-nil error ends the pass without sending.
type Checkpoint func(ctx context.Context) (domain.PowerState, error)

// Recorder receives the diagnostics trail.
type Recorder interface {
	Append(rec domain.TransmissionRecord)
	RecordFailure(err error)
}

// Pass configures one Attempt call.
type Pass struct {
	Chooser    Chooser
	Checkpoint Checkpoint
	// Deadline is the wall-clock drain budget; zero means unbounded.
	Deadline time.Time
}

// Report summarises one pass.
type Report struct {
	Delivered int
	Failed    int
	Abandoned int
	Expired   int
	Deferred  int
	Unrouted  int
	NoLink    bool
	OutOfTime bool
}

type entry struct {
	p          domain.Payload
	eligibleAt time.Time
}

// Queue holds payloads in arrival order. ALERT payloads are scanned before
// ROUTINE ones without reordering storage, so FIFO holds within a priority.
// Payloads are moved out for a send and moved back on failure; callers never
// get a reference into the queue. Queue is owned by the controller loop and
// is not safe for concurrent use.
type Queue struct {
	pol       ports.Policy
	items     []*entry
	journal   ports.Journal
	rec       Recorder
	obs       ports.Observability
	now       func() time.Time
	onSettled []func(domain.Payload, domain.Outcome)
}

func NewQueue(pol ports.Policy, journal ports.Journal, rec Recorder, obs ports.Observability) *Queue {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Queue{
		pol:     pol,
		items:   make([]*entry, 0, pol.MaxQueueLen),
		journal: journal,
		rec:     rec,
		obs:     obs,
		now:     time.Now,
	}
}

// OnSettled registers fn to run whenever a payload leaves the queue.
func (q *Queue) OnSettled(fn func(domain.Payload, domain.Outcome)) {
	q.onSettled = append(q.onSettled, fn)
}

// Restore reloads unsettled payloads from the journal and returns the
// highest id seen. A payload that already failed keeps its attempt count and
// resumes its backoff from the last failed send.
func (q *Queue) Restore() (domain.PayloadID, error) {
	if q.journal == nil {
		return 0, nil
	}
	var maxID domain.PayloadID
	err := q.journal.Replay(func(p domain.Payload) error {
		e := &entry{p: p}
		if p.AttemptCount > 0 && !p.LastAttempt.IsZero() {
			e.eligibleAt = p.LastAttempt.Add(q.backoff(p.AttemptCount))
		}
		q.insert(e)
		if p.ID > maxID {
			maxID = p.ID
		}
		return nil
	})
	if err != nil {
		return maxID, fmt.Errorf("restore queue: %w", err)
	}
	if len(q.items) > 0 {
		q.obs.LogInfo("queue_restored", ports.F("payloads", len(q.items)), ports.F("max_id", uint64(maxID)))
	}
	q.publishDepth()
	return maxID, nil
}

func (q *Queue) Len() int { return len(q.items) }

// Enqueue appends p in arrival order. When full, the policy either rejects p
// or evicts the oldest ROUTINE payload to make room.
func (q *Queue) Enqueue(p domain.Payload) error {
	if q.pol.MaxQueueLen > 0 && len(q.items) >= q.pol.MaxQueueLen {
		switch q.pol.OnQueueFull {
		case "drop_oldest_routine":
			idx := q.oldestRoutine()
			if idx < 0 {
				q.obs.IncCounter("aegis_queue_dropped_total", 1)
				return fmt.Errorf("payload %d: %w", p.ID, ErrQueueFull)
			}
			victim := q.removeAt(idx)
			q.obs.LogError("queue_full_drop", ErrQueueFull, ports.F("evicted", uint64(victim.p.ID)))
			q.obs.IncCounter("aegis_queue_dropped_total", 1)
			q.settle(victim.p, domain.LinkNone, domain.OutcomeAbandoned)
		default:
			q.obs.IncCounter("aegis_queue_dropped_total", 1)
			return fmt.Errorf("payload %d: %w", p.ID, ErrQueueFull)
		}
	}

	if q.journal != nil {
		if err := q.journal.Append(p); err != nil {
			q.obs.LogError("journal_append_failed", err, ports.F("payload", uint64(p.ID)))
		}
	}
	q.insert(&entry{p: p})
	q.publishDepth()
	return nil
}

// Attempt makes one delivery pass in priority-then-FIFO order.
func (q *Queue) Attempt(ctx context.Context, pass Pass) (Report, error) {
	var rep Report
	defer q.publishDepth()

	for _, id := range q.scanOrder() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		now := q.now()
		if !pass.Deadline.IsZero() && !now.Before(pass.Deadline) {
			rep.OutOfTime = true
			break
		}

		idx := q.indexOf(id)
		if idx < 0 {
			continue
		}
		e := q.items[idx]
		if q.stale(e.p, now) {
			q.removeAt(idx)
			rep.Expired++
			q.settle(e.p, domain.LinkNone, domain.OutcomeExpired)
			continue
		}
		if now.Before(e.eligibleAt) {
			rep.Deferred++
			continue
		}

		st, err := pass.Checkpoint(ctx)
		if err != nil {
			return rep, err
		}

		route, err := pass.Chooser.Choose(ctx, e.p, st)
		if err != nil {
			rep.Unrouted++
			q.recordFailure(err)
			if errors.Is(err, selector.ErrNoneAvailable) {
				rep.NoLink = true
				break
			}
			continue
		}

		p := q.removeAt(idx).p
		start := q.now()
		sendErr := route.Adapter.Send(ctx, p)
		q.obs.ObserveLatency("aegis_send_latency_seconds", q.now().Sub(start).Seconds())
		q.deliver(&rep, p, route.Link.Kind, sendErr)
	}

	if len(q.items) == 0 && q.journal != nil {
		if err := q.journal.Compact(); err != nil {
			q.obs.LogError("journal_compact_failed", err)
		}
	}
	return rep, nil
}

func (q *Queue) deliver(rep *Report, p domain.Payload, kind domain.LinkKind, sendErr error) {
	outcome := links.Classify(sendErr)
	attempt := p.AttemptCount + 1

	q.append(domain.TransmissionRecord{PayloadID: p.ID, Link: kind, Outcome: outcome, Attempt: attempt, Timestamp: q.now()})

	if outcome == domain.OutcomeSuccess {
		rep.Delivered++
		q.obs.IncCounter("aegis_payloads_delivered_total", 1)
		q.obs.LogInfo("payload_delivered",
			ports.F("payload", uint64(p.ID)),
			ports.F("link", kind.String()),
			ports.F("attempt", attempt))
		p.AttemptCount = attempt
		q.settle(p, kind, domain.OutcomeSuccess)
		return
	}

	rep.Failed++
	q.recordFailure(sendErr)
	q.obs.IncCounter("aegis_payloads_failed_total", 1)
	p.AttemptCount = attempt
	p.LastLink = kind
	p.LastFailed = true
	p.LastAttempt = q.now()

	if q.pol.MaxAttempts > 0 && p.AttemptCount >= q.pol.MaxAttempts {
		rep.Abandoned++
		err := fmt.Errorf("payload %d after %d attempts: %w", p.ID, p.AttemptCount, domain.ErrDeliveryAbandoned)
		q.obs.LogError("DELIVERY_ABANDONED", err, ports.F("last_link", kind.String()))
		q.recordFailure(err)
		q.settle(p, kind, domain.OutcomeAbandoned)
		return
	}

	q.obs.LogError("payload_send_failed", sendErr,
		ports.F("payload", uint64(p.ID)),
		ports.F("link", kind.String()),
		ports.F("attempt", p.AttemptCount))
	if q.journal != nil {
		// A later put for the same id replaces the earlier one on replay.
		if err := q.journal.Append(p); err != nil {
			q.obs.LogError("journal_append_failed", err, ports.F("payload", uint64(p.ID)))
		}
	}
	q.insert(&entry{p: p, eligibleAt: p.LastAttempt.Add(q.backoff(p.AttemptCount))})
}

// DiscardRoutineOlderThan drops ROUTINE payloads older than ttl and returns
// how many were removed.
func (q *Queue) DiscardRoutineOlderThan(ttl time.Duration) int {
	now := q.now()
	var dropped int
	for i := 0; i < len(q.items); {
		p := q.items[i].p
		if p.Priority == domain.PriorityRoutine && now.Sub(p.CreatedAt) > ttl {
			q.removeAt(i)
			q.settle(p, domain.LinkNone, domain.OutcomeExpired)
			dropped++
			continue
		}
		i++
	}
	q.publishDepth()
	return dropped
}

// NextEligible returns the earliest time a queued payload may be retried.
func (q *Queue) NextEligible() (time.Time, bool) {
	var (
		next  time.Time
		found bool
	)
	for _, e := range q.items {
		if !found || e.eligibleAt.Before(next) {
			next = e.eligibleAt
			found = true
		}
	}
	return next, found
}

// Snapshot returns copies of the queued payloads in arrival order.
func (q *Queue) Snapshot() []domain.Payload {
	out := make([]domain.Payload, len(q.items))
	for i, e := range q.items {
		out[i] = e.p
	}
	return out
}

func (q *Queue) backoff(attempt int) time.Duration {
	base := q.pol.BaseBackoff
	if base <= 0 || attempt <= 0 {
		return 0
	}
	exp := attempt - 1
	if q.pol.MaxBackoffExponent > 0 && exp > q.pol.MaxBackoffExponent {
		exp = q.pol.MaxBackoffExponent
	}
	return base << uint(exp)
}

func (q *Queue) stale(p domain.Payload, now time.Time) bool {
	if p.Expired(now) {
		return true
	}
	return q.pol.RetryWindow > 0 && now.Sub(p.CreatedAt) > q.pol.RetryWindow
}

// scanOrder lists ids ALERT-first, FIFO within each priority.
func (q *Queue) scanOrder() []domain.PayloadID {
	ids := make([]domain.PayloadID, 0, len(q.items))
	for _, e := range q.items {
		if e.p.Priority == domain.PriorityAlert {
			ids = append(ids, e.p.ID)
		}
	}
	for _, e := range q.items {
		if e.p.Priority != domain.PriorityAlert {
			ids = append(ids, e.p.ID)
		}
	}
	return ids
}

func (q *Queue) settle(p domain.Payload, kind domain.LinkKind, o domain.Outcome) {
	if o != domain.OutcomeSuccess {
		if o == domain.OutcomeExpired {
			q.obs.IncCounter("aegis_payloads_expired_total", 1)
		} else {
			q.obs.IncCounter("aegis_payloads_abandoned_total", 1)
		}
		q.append(domain.TransmissionRecord{PayloadID: p.ID, Link: kind, Outcome: o, Attempt: p.AttemptCount, Timestamp: q.now()})
	}
	if q.journal != nil {
		if err := q.journal.Settle(p.ID); err != nil {
			q.obs.LogError("journal_settle_failed", err, ports.F("payload", uint64(p.ID)))
		}
	}
	for _, fn := range q.onSettled {
		fn(p, o)
	}
}

func (q *Queue) append(r domain.TransmissionRecord) {
	if q.rec != nil {
		q.rec.Append(r)
	}
}

func (q *Queue) recordFailure(err error) {
	if q.rec != nil {
		q.rec.RecordFailure(err)
	}
}

func (q *Queue) publishDepth() {
	q.obs.SetGauge("aegis_queue_length", float64(len(q.items)))
}

// insert keeps items ordered by id, which is arrival order.
func (q *Queue) insert(e *entry) {
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].p.ID >= e.p.ID })
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = e
}

func (q *Queue) indexOf(id domain.PayloadID) int {
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].p.ID >= id })
	if i < len(q.items) && q.items[i].p.ID == id {
		return i
	}
	return -1
}

func (q *Queue) removeAt(i int) *entry {
	e := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return e
}

func (q *Queue) oldestRoutine() int {
	for i, e := range q.items {
		if e.p.Priority == domain.PriorityRoutine {
			return i
		}
	}
	return -1
}
