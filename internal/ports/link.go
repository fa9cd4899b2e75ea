package ports

import (
	"context"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
)

// LinkAdapter is implemented once per radio kind. Radio power sequencing and
// framing stay inside the adapter; the orchestrator only calls this surface.
// Send may block up to a link-specific timeout and must honour ctx.
type LinkAdapter interface {
	Kind() domain.LinkKind
	Available(ctx context.Context) bool
	EstimatedCost() float64
	LatencyClass() domain.LatencyClass
	MaxPayloadSize() int
	Send(ctx context.Context, p domain.Payload) error
}
