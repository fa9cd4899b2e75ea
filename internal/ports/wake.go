package ports

import (
	"context"
	"time"
)

type WakeReason uint8

const (
	WakeTimer WakeReason = iota + 1
	WakeMotion
	WakeExternal
)

func (r WakeReason) String() string {
	switch r {
	case WakeTimer:
		return "timer"
	case WakeMotion:
		return "motion"
	default:
		return "external"
	}
}

// WakeScheduler is the RTC/PMU surface. Wake sources must be re-armed before
// every Sleep; Sleep returns once any armed source fires or ctx ends.
type WakeScheduler interface {
	ArmWake(d time.Duration) error
	ArmEdgeWake(pin int, risingEdge bool) error
	Sleep(ctx context.Context) (WakeReason, error)
}
