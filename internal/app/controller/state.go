package controller

import "time"

// State is a controller state. EMERGENCY is reachable from any state.
type State uint8

const (
	StateSleeping State = iota
	StateWaking
	StateCapturing
	StateEnqueued
	StateDraining
	StateEmergency
)

func (s State) String() string {
	switch s {
	case StateSleeping:
		return "SLEEPING"
	case StateWaking:
		return "WAKING"
	case StateCapturing:
		return "CAPTURING"
	case StateEnqueued:
		return "ENQUEUED"
	case StateDraining:
		return "DRAINING"
	case StateEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// SleepKind distinguishes the three ways a cycle can end.
type SleepKind uint8

const (
	// SleepNone skips sleeping because a capture is already pending.
	SleepNone SleepKind = iota
	// SleepDeep requires an empty queue; motion and the normal timer are armed.
	SleepDeep
	// SleepDoze keeps undelivered payloads queued and wakes early to retry.
	SleepDoze
	// SleepEmergency arms only the extended timer.
	SleepEmergency
)

func (k SleepKind) String() string {
	switch k {
	case SleepDeep:
		return "deep"
	case SleepDoze:
		return "doze"
	case SleepEmergency:
		return "emergency"
	default:
		return "none"
	}
}

// SleepPlan is what a cycle asks the sleep stage to do.
type SleepPlan struct {
	Kind      SleepKind
	Timer     time.Duration
	ArmMotion bool
}
