package aegiscam

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
)

// ErrChannelLinkClosed is returned when a channel link is sent to after being closed.
var ErrChannelLinkClosed = errors.New("aegiscam: channel link closed")

// SendFunc delivers one payload. A nil return counts as acknowledged.
type SendFunc func(ctx context.Context, p Payload) error

// LinkSpec describes a link built from a function or channel.
type LinkSpec struct {
	Kind       LinkKind
	Cost       float64
	Latency    LatencyClass
	MaxPayload int
}

// NewCallbackLink adapts fn into a LinkAdapter so callers can plug an
// existing radio driver without defining a struct.
func NewCallbackLink(spec LinkSpec, fn SendFunc) LinkAdapter {
	return &callbackLink{spec: spec, fn: fn}
}

// NewChannelLink exposes payloads on a channel; a send is acknowledged once
// the reader has taken the payload. It returns the link, the read-only
// channel and a close function the caller should invoke during shutdown.
// The channel itself is never closed; after close the link reports itself
// unavailable.
func NewChannelLink(spec LinkSpec, buffer int) (LinkAdapter, <-chan Payload, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Payload, buffer)
	l := &channelLink{
		spec:   spec,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return l, ch, func() { l.close() }
}

type callbackLink struct {
	spec LinkSpec
	fn   SendFunc
}

func (l *callbackLink) Kind() domain.LinkKind             { return l.spec.Kind }
func (l *callbackLink) Available(context.Context) bool    { return l.fn != nil }
func (l *callbackLink) EstimatedCost() float64            { return l.spec.Cost }
func (l *callbackLink) LatencyClass() domain.LatencyClass { return l.spec.Latency }
func (l *callbackLink) MaxPayloadSize() int               { return l.spec.MaxPayload }

func (l *callbackLink) Send(ctx context.Context, p domain.Payload) error {
	if l.fn == nil {
		return fmt.Errorf("callback link %s: nil handler", l.spec.Kind)
	}
	return l.fn(ctx, p)
}

type channelLink struct {
	spec   LinkSpec
	ch     chan Payload
	closed chan struct{}
	once   sync.Once
}

func (l *channelLink) Kind() domain.LinkKind             { return l.spec.Kind }
func (l *channelLink) EstimatedCost() float64            { return l.spec.Cost }
func (l *channelLink) LatencyClass() domain.LatencyClass { return l.spec.Latency }
func (l *channelLink) MaxPayloadSize() int               { return l.spec.MaxPayload }

func (l *channelLink) Available(context.Context) bool {
	select {
	case <-l.closed:
		return false
	default:
		return true
	}
}

func (l *channelLink) Send(ctx context.Context, p domain.Payload) error {
	select {
	case <-l.closed:
		return ErrChannelLinkClosed
	default:
	}

	p.Bytes = append([]byte(nil), p.Bytes...)

	select {
	case <-l.closed:
		return ErrChannelLinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case l.ch <- p:
		return nil
	}
}

func (l *channelLink) close() {
	l.once.Do(func() {
		close(l.closed)
	})
}
