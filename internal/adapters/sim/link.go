package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

var ErrRadioNack = errors.New("radio: no acknowledgement")

// Link is a radio whose availability and reliability are drawn at random.
type Link struct {
	kind    domain.LinkKind
	cost    float64
	latency domain.LatencyClass
	maxSize int
	behave  LinkBehaviour
	scale   float64

	mu   sync.Mutex
	rng  *rand.Rand
	sent []domain.PayloadID
}

func NewLink(kind domain.LinkKind, cost float64, latency domain.LatencyClass, maxSize int, behave LinkBehaviour, timeScale float64, seed uint64) *Link {
	if timeScale <= 0 {
		timeScale = 1
	}
	return &Link{
		kind:    kind,
		cost:    cost,
		latency: latency,
		maxSize: maxSize,
		behave:  behave,
		scale:   timeScale,
		rng:     rand.New(rand.NewPCG(seed, uint64(kind))),
	}
}

func (l *Link) Kind() domain.LinkKind             { return l.kind }
func (l *Link) EstimatedCost() float64            { return l.cost }
func (l *Link) LatencyClass() domain.LatencyClass { return l.latency }
func (l *Link) MaxPayloadSize() int               { return l.maxSize }

func (l *Link) Available(context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64() < l.behave.Availability
}

// Send waits out the configured air time and then succeeds or fails.
func (l *Link) Send(ctx context.Context, p domain.Payload) error {
	t := time.NewTimer(time.Duration(float64(l.behave.Delay) / l.scale))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rng.Float64() < l.behave.FailRate {
		return fmt.Errorf("%s payload %d: %w", l.kind, p.ID, ErrRadioNack)
	}
	l.sent = append(l.sent, p.ID)
	return nil
}

// Delivered lists the payload ids this radio acknowledged.
func (l *Link) Delivered() []domain.PayloadID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.PayloadID(nil), l.sent...)
}

var _ ports.LinkAdapter = (*Link)(nil)
