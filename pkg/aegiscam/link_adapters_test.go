package aegiscam

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackLink(t *testing.T) {
	var received []Payload
	link := NewCallbackLink(LinkSpec{Kind: LinkMesh, Cost: 0.5, Latency: LatencySeconds, MaxPayload: 64}, func(_ context.Context, p Payload) error {
		received = append(received, p)
		return nil
	})

	if link.Kind() != LinkMesh || link.MaxPayloadSize() != 64 || link.EstimatedCost() != 0.5 {
		t.Fatalf("descriptor not carried through: %v %d %v", link.Kind(), link.MaxPayloadSize(), link.EstimatedCost())
	}
	if !link.Available(context.Background()) {
		t.Fatalf("expected callback link to be available")
	}

	input := Payload{ID: 42, Bytes: []byte{1, 2, 3}, Size: 3}
	if err := link.Send(context.Background(), input); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(received) != 1 || received[0].ID != 42 {
		t.Fatalf("unexpected payloads: %+v", received)
	}
}

func TestNewCallbackLinkNilHandler(t *testing.T) {
	link := NewCallbackLink(LinkSpec{Kind: LinkCellular}, nil)
	if link.Available(context.Background()) {
		t.Fatalf("expected nil handler to report unavailable")
	}
	if err := link.Send(context.Background(), Payload{ID: 1}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelLink(t *testing.T) {
	link, ch, closeFn := NewChannelLink(LinkSpec{Kind: LinkSatellite}, 1)
	defer closeFn()

	input := Payload{ID: 7, Bytes: []byte("frame")}
	errCh := make(chan error, 1)
	go func() {
		errCh <- link.Send(context.Background(), input)
	}()

	var got Payload
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel payload")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got.ID != input.ID || string(got.Bytes) != "frame" {
		t.Fatalf("unexpected payload: %+v", got)
	}

	closeFn()
	if link.Available(context.Background()) {
		t.Fatalf("expected closed link to be unavailable")
	}
	if err := link.Send(context.Background(), input); !errors.Is(err, ErrChannelLinkClosed) {
		t.Fatalf("expected ErrChannelLinkClosed, got %v", err)
	}
}

func TestChannelLinkHonoursContext(t *testing.T) {
	link, _, closeFn := NewChannelLink(LinkSpec{Kind: LinkMesh}, 0)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := link.Send(ctx, Payload{ID: 1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
