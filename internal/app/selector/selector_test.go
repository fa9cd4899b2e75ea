package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

type fakeLink struct {
	kind    domain.LinkKind
	up      bool
	cost    float64
	latency domain.LatencyClass
	max     int
}

func (f *fakeLink) Kind() domain.LinkKind                      { return f.kind }
func (f *fakeLink) Available(context.Context) bool             { return f.up }
func (f *fakeLink) EstimatedCost() float64                     { return f.cost }
func (f *fakeLink) LatencyClass() domain.LatencyClass          { return f.latency }
func (f *fakeLink) MaxPayloadSize() int                        { return f.max }
func (f *fakeLink) Send(context.Context, domain.Payload) error { return nil }

type fixedHistory map[domain.LinkKind]float64

func (h fixedHistory) FailureRate(k domain.LinkKind, _ int) float64 { return h[k] }

type budgetFunc func(domain.PowerState, domain.Operation) bool

func (f budgetFunc) Affords(st domain.PowerState, op domain.Operation) bool { return f(st, op) }

var normal = domain.PowerState{Level: domain.PowerNormal, BatteryVoltage: 3.9}

func mesh(up bool, cost float64) *fakeLink {
	return &fakeLink{kind: domain.LinkMesh, up: up, cost: cost, latency: domain.LatencySeconds, max: 4 << 10}
}

func cellular(up bool, cost float64) *fakeLink {
	return &fakeLink{kind: domain.LinkCellular, up: up, cost: cost, latency: domain.LatencyTens, max: 256 << 10}
}

func satellite(up bool, cost float64) *fakeLink {
	return &fakeLink{kind: domain.LinkSatellite, up: up, cost: cost, latency: domain.LatencyMinutes, max: 340}
}

func TestChoosePrefersCheapMesh(t *testing.T) {
	s := New(Config{}, []ports.LinkAdapter{cellular(true, 5), mesh(true, 1)}, nil, nil)

	route, err := s.Choose(context.Background(), domain.Payload{ID: 1, Size: 1024}, normal)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkMesh, route.Link.Kind)
	assert.True(t, route.Link.Available)
}

func TestChooseAllUnavailable(t *testing.T) {
	s := New(Config{}, []ports.LinkAdapter{mesh(false, 1), cellular(false, 5), satellite(false, 20)}, nil, nil)

	_, err := s.Choose(context.Background(), domain.Payload{ID: 1, Size: 10}, normal)
	assert.ErrorIs(t, err, ErrNoneAvailable)
	assert.ErrorIs(t, err, domain.ErrLinkUnavailable)
}

func TestChooseNeverReturnsUnavailableOrTooSmall(t *testing.T) {
	sizes := []int{100, 340, 1024, 8 << 10, 512 << 10}
	for mask := 0; mask < 8; mask++ {
		links := []ports.LinkAdapter{
			mesh(mask&1 != 0, 1),
			cellular(mask&2 != 0, 5),
			satellite(mask&4 != 0, 20),
		}
		s := New(Config{}, links, nil, nil)
		for _, size := range sizes {
			for _, prio := range []domain.Priority{domain.PriorityRoutine, domain.PriorityAlert} {
				p := domain.Payload{ID: 1, Size: size, Priority: prio}
				route, err := s.Choose(context.Background(), p, normal)
				if err != nil {
					require.ErrorIs(t, err, domain.ErrLinkUnavailable)
					for _, l := range links {
						fl := l.(*fakeLink)
						assert.False(t, fl.up && fl.max >= size, "mask=%03b size=%d: %s qualified but was not chosen", mask, size, fl.kind)
					}
					continue
				}
				assert.True(t, route.Link.Available, "mask=%03b size=%d", mask, size)
				assert.GreaterOrEqual(t, route.Link.MaxPayloadSize, size, "mask=%03b", mask)
			}
		}
	}
}

func TestChooseTooLarge(t *testing.T) {
	s := New(Config{}, []ports.LinkAdapter{mesh(true, 1), satellite(true, 20)}, nil, nil)
	_, err := s.Choose(context.Background(), domain.Payload{ID: 7, Size: 1 << 20}, normal)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestChooseAlertFavoursLowLatency(t *testing.T) {
	// Routine traffic goes to the cheap slow link; alerts pay for latency.
	w := Config{Weights: Weights{Cost: 1, Latency: 1, Priority: 4}}
	s := New(w, []ports.LinkAdapter{cellular(true, 6), satellite(true, 3)}, nil, nil)
	s.adapters[1].(*fakeLink).max = 64 << 10

	route, err := s.Choose(context.Background(), domain.Payload{Size: 100}, normal)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkSatellite, route.Link.Kind)

	route, err = s.Choose(context.Background(), domain.Payload{Size: 100, Priority: domain.PriorityAlert}, normal)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkCellular, route.Link.Kind)
}

func TestChooseTieBreaksOnFailureRate(t *testing.T) {
	a := &fakeLink{kind: domain.LinkMesh, up: true, cost: 2, latency: domain.LatencyTens, max: 1 << 20}
	b := &fakeLink{kind: domain.LinkCellular, up: true, cost: 2, latency: domain.LatencyTens, max: 1 << 20}

	s := New(Config{}, []ports.LinkAdapter{a, b}, nil, fixedHistory{domain.LinkMesh: 0.6, domain.LinkCellular: 0.1})
	route, err := s.Choose(context.Background(), domain.Payload{Size: 1}, normal)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkCellular, route.Link.Kind)

	s = New(Config{}, []ports.LinkAdapter{b, a}, nil, fixedHistory{})
	route, err = s.Choose(context.Background(), domain.Payload{Size: 1}, normal)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkMesh, route.Link.Kind, "equal history falls back to kind order")
}

func TestChooseEscalatesAfterFailure(t *testing.T) {
	s := New(Config{}, []ports.LinkAdapter{mesh(true, 1), cellular(true, 3)}, nil, nil)
	p := domain.Payload{Size: 10, LastLink: domain.LinkMesh, LastFailed: true}

	route, err := s.Choose(context.Background(), p, normal)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkCellular, route.Link.Kind)
}

func TestChooseRespectsBudget(t *testing.T) {
	var ops []domain.Operation
	budget := budgetFunc(func(st domain.PowerState, op domain.Operation) bool {
		ops = append(ops, op)
		return op.Link == domain.LinkSatellite
	})
	s := New(Config{}, []ports.LinkAdapter{mesh(true, 1), satellite(true, 20)}, budget, nil)

	route, err := s.Choose(context.Background(), domain.Payload{Size: 10}, domain.PowerState{Level: domain.PowerCritical})
	require.NoError(t, err)
	assert.Equal(t, domain.LinkSatellite, route.Link.Kind)
	for _, op := range ops {
		assert.Equal(t, domain.OpEmergencyDrain, op.Kind)
	}

	s = New(Config{}, []ports.LinkAdapter{mesh(true, 1)}, budgetFunc(func(domain.PowerState, domain.Operation) bool { return false }), nil)
	_, err = s.Choose(context.Background(), domain.Payload{Size: 10}, normal)
	assert.ErrorIs(t, err, ErrOverBudget)
}
