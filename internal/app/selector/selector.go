// Package selector picks the link a payload should go out on.
package selector

import (
	"context"
	"fmt"
	"math"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

var (
	ErrNoneAvailable = fmt.Errorf("all links unavailable: %w", domain.ErrLinkUnavailable)
	ErrTooLarge      = fmt.Errorf("payload exceeds every available link: %w", domain.ErrLinkUnavailable)
	ErrOverBudget    = fmt.Errorf("no affordable link: %w", domain.ErrLinkUnavailable)
)

// Weights blend the score: Cost*power_cost + Latency*latency_class
// - Priority*bonus, plus Escalation on the link that just failed this payload.
type Weights struct {
	Cost       float64 `yaml:"cost"`
	Latency    float64 `yaml:"latency"`
	Priority   float64 `yaml:"priority"`
	Escalation float64 `yaml:"escalation"`
}

type Config struct {
	Weights       Weights `yaml:"weights"`
	HistoryWindow int     `yaml:"history_window"`
}

func (c *Config) ApplyDefaults() {
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Cost: 1, Latency: 1, Priority: 2, Escalation: 5}
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 20
	}
}

// Budget answers whether an operation fits the energy budget of a state.
type Budget interface {
	Affords(st domain.PowerState, op domain.Operation) bool
}

// History supplies per-link failure rates for tie-breaking.
type History interface {
	FailureRate(kind domain.LinkKind, lastN int) float64
}

// Route is a chosen link together with the adapter that drives it.
type Route struct {
	Link    domain.LinkDescriptor
	Adapter ports.LinkAdapter
}

type Selector struct {
	cfg      Config
	adapters []ports.LinkAdapter
	budget   Budget
	history  History
}

func New(cfg Config, adapters []ports.LinkAdapter, budget Budget, history History) *Selector {
	cfg.ApplyDefaults()
	return &Selector{cfg: cfg, adapters: adapters, budget: budget, history: history}
}

// Choose returns the lowest-scoring link that is available, large enough
// for p and affordable in st. The returned descriptor is always available.
// Errors wrap domain.ErrLinkUnavailable; ErrNoneAvailable means no radio is
// reachable at all.
func (s *Selector) Choose(ctx context.Context, p domain.Payload, st domain.PowerState) (Route, error) {
	var (
		best      Route
		bestScore = math.Inf(1)
		found     bool
		available int
		fits      int
	)

	for _, a := range s.adapters {
		d := describe(ctx, a)
		if !d.Available {
			continue
		}
		available++
		if d.MaxPayloadSize < p.Size {
			continue
		}
		fits++
		if s.budget != nil && !s.budget.Affords(st, operationFor(st, d.Kind)) {
			continue
		}

		score := s.score(p, d)
		if !found || score < bestScore-1e-9 || (math.Abs(score-bestScore) <= 1e-9 && s.preferOnTie(d.Kind, best.Link.Kind)) {
			best = Route{Link: d, Adapter: a}
			bestScore = score
			found = true
		}
	}

	switch {
	case found:
		return best, nil
	case available == 0:
		return Route{}, ErrNoneAvailable
	case fits == 0:
		return Route{}, fmt.Errorf("payload %d (%d bytes): %w", p.ID, p.Size, ErrTooLarge)
	default:
		return Route{}, fmt.Errorf("power %s: %w", st.Level, ErrOverBudget)
	}
}

func (s *Selector) score(p domain.Payload, d domain.LinkDescriptor) float64 {
	w := s.cfg.Weights
	score := w.Cost*d.PowerCost + w.Latency*float64(d.LatencyClass)
	if p.Priority == domain.PriorityAlert {
		score -= w.Priority * float64(domain.MaxLatencyClass-d.LatencyClass)
	}
	if p.LastFailed && p.LastLink == d.Kind {
		score += w.Escalation
	}
	return score
}

// preferOnTie favours the kind with the lower recent failure rate, then
// the cheaper kind in declaration order.
func (s *Selector) preferOnTie(candidate, current domain.LinkKind) bool {
	if s.history != nil {
		rc := s.history.FailureRate(candidate, s.cfg.HistoryWindow)
		rb := s.history.FailureRate(current, s.cfg.HistoryWindow)
		if rc != rb {
			return rc < rb
		}
	}
	return candidate < current
}

func operationFor(st domain.PowerState, k domain.LinkKind) domain.Operation {
	if st.Level == domain.PowerCritical {
		return domain.EmergencyDrainOp(k)
	}
	return domain.TransmitOp(k)
}

func describe(ctx context.Context, a ports.LinkAdapter) domain.LinkDescriptor {
	return domain.LinkDescriptor{
		Kind:           a.Kind(),
		Available:      a.Available(ctx),
		PowerCost:      a.EstimatedCost(),
		LatencyClass:   a.LatencyClass(),
		MaxPayloadSize: a.MaxPayloadSize(),
	}
}
