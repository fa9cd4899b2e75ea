package aegiscam

import (
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/app/diagnostics"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// Payload is one captured frame plus delivery metadata, as handed to a link.
type Payload = domain.Payload

// Frame is what a Camera returns.
type Frame = domain.Frame

// LinkKind names a radio path.
type LinkKind = domain.LinkKind

// LatencyClass orders links by expected delivery time.
type LatencyClass = domain.LatencyClass

// TransmissionRecord is one entry of the diagnostics trail.
type TransmissionRecord = domain.TransmissionRecord

// Status is the snapshot served on /status.
type Status = diagnostics.Status

// Camera acquires one frame per call.
type Camera = ports.Camera

// VoltageSensor reads battery and solar voltages.
type VoltageSensor = ports.VoltageSensor

// LinkAdapter drives one radio.
type LinkAdapter = ports.LinkAdapter

// WakeScheduler is the RTC/PMU surface.
type WakeScheduler = ports.WakeScheduler

// Storage persists frames locally.
type Storage = ports.Storage

// Observability receives logs and metrics.
type Observability = ports.Observability

// Field is a structured log field.
type Field = ports.Field

const (
	LinkMesh      = domain.LinkMesh
	LinkCellular  = domain.LinkCellular
	LinkSatellite = domain.LinkSatellite

	LatencySeconds = domain.LatencySeconds
	LatencyTens    = domain.LatencyTens
	LatencyMinutes = domain.LatencyMinutes
)
