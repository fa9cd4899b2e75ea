package ports

import (
	"context"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
)

// Camera acquires one frame. ok is false when the sensor produced nothing.
type Camera interface {
	Capture(ctx context.Context) (frame domain.Frame, ok bool, err error)
}

// VoltageSensor reads the raw supply channels. Implementations convert ADC
// counts to volts.
type VoltageSensor interface {
	ReadBattery(ctx context.Context) (float64, error)
	ReadSolar(ctx context.Context) (float64, error)
}
