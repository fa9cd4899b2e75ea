package domain

import "time"

// TriggerSource identifies what woke the node for a capture.
type TriggerSource uint8

const (
	TriggerMotion TriggerSource = iota + 1
	TriggerTimer
	TriggerManual
)

func (t TriggerSource) String() string {
	switch t {
	case TriggerMotion:
		return "MOTION"
	case TriggerTimer:
		return "TIMER"
	case TriggerManual:
		return "MANUAL"
	default:
		return "UNKNOWN"
	}
}

// CaptureEvent is produced by an interrupt or timer and consumed exactly once
// by the controller.
type CaptureEvent struct {
	Timestamp  time.Time
	Source     TriggerSource
	SequenceID uint64
}

// Frame is a single image handed back by the camera collaborator.
type Frame struct {
	Bytes  []byte
	Size   int
	Width  int
	Height int
}
