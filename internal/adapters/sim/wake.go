package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

var ErrNotArmed = errors.New("sim rtc: no wake source armed")

// RTC emulates the deep sleep controller. Sources are one-shot: every Sleep
// consumes what was armed before it.
type RTC struct {
	scale float64
	edges chan struct{}

	mu       sync.Mutex
	timer    time.Duration
	edgeOn   bool
	edgePin  int
	lastWake ports.WakeReason
}

func NewRTC(timeScale float64) *RTC {
	if timeScale <= 0 {
		timeScale = 1
	}
	return &RTC{scale: timeScale, edges: make(chan struct{}, 1)}
}

func (r *RTC) ArmWake(d time.Duration) error {
	if d <= 0 {
		return errors.New("sim rtc: timer must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timer = d
	return nil
}

// ArmEdgeWake arms the motion pin. An edge raised before arming is dropped;
// the caller sees those through its own latch.
func (r *RTC) ArmEdgeWake(pin int, _ bool) error {
	select {
	case <-r.edges:
	default:
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edgeOn = true
	r.edgePin = pin
	return nil
}

// Edge raises the motion pin. It never blocks. An edge raised after the pin
// is armed wakes the next Sleep immediately.
func (r *RTC) Edge() {
	select {
	case r.edges <- struct{}{}:
	default:
	}
}

func (r *RTC) Sleep(ctx context.Context) (ports.WakeReason, error) {
	r.mu.Lock()
	timer, edgeOn := r.timer, r.edgeOn
	r.timer, r.edgeOn = 0, false
	r.mu.Unlock()

	if timer <= 0 && !edgeOn {
		return 0, ErrNotArmed
	}
	var (
		fire  <-chan time.Time
		edges <-chan struct{}
	)
	if timer > 0 {
		t := time.NewTimer(time.Duration(float64(timer) / r.scale))
		defer t.Stop()
		fire = t.C
	}
	if edgeOn {
		edges = r.edges
	}

	reason := ports.WakeTimer
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-fire:
	case <-edges:
		reason = ports.WakeMotion
	}
	r.mu.Lock()
	r.lastWake = reason
	r.mu.Unlock()
	return reason, nil
}

func (r *RTC) LastWake() ports.WakeReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastWake
}

var _ ports.WakeScheduler = (*RTC)(nil)
