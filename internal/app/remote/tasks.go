// Package remote turns operator overrides into tasks the controller applies
// between cycles.
package remote

import (
	"errors"
	"time"
)

type Kind uint8

const (
	KindManualCapture Kind = iota + 1
	KindMotionCooldown
	KindWakeInterval
	KindDrainBudget
	KindCaptureOnTimer
)

func (k Kind) String() string {
	switch k {
	case KindManualCapture:
		return "manual_capture"
	case KindMotionCooldown:
		return "motion_cooldown"
	case KindWakeInterval:
		return "wake_interval"
	case KindDrainBudget:
		return "drain_budget"
	case KindCaptureOnTimer:
		return "capture_on_timer"
	default:
		return "unknown"
	}
}

// Task is one override. Duration or Enabled carry the value depending on
// Kind.
type Task struct {
	Kind     Kind
	Duration time.Duration
	Enabled  bool
}

var ErrBacklogFull = errors.New("remote task backlog full")

// Tasks is a bounded FIFO. Push never blocks; the loop empties it with
// Drain.
type Tasks struct {
	ch chan Task
}

func NewTasks(capacity int) *Tasks {
	if capacity <= 0 {
		capacity = 16
	}
	return &Tasks{ch: make(chan Task, capacity)}
}

func (t *Tasks) Push(task Task) error {
	select {
	case t.ch <- task:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Drain returns everything queued so far without waiting.
func (t *Tasks) Drain() []Task {
	var out []Task
	for {
		select {
		case task := <-t.ch:
			out = append(out, task)
		default:
			return out
		}
	}
}
