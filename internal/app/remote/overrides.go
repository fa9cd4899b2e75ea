package remote

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Overrides is the operator-editable file. Absent fields leave the running
// value alone. ManualCapture is a counter: every increment requests one
// capture.
type Overrides struct {
	MotionCooldown *time.Duration `yaml:"motion_cooldown"`
	WakeInterval   *time.Duration `yaml:"wake_interval"`
	DrainBudget    *time.Duration `yaml:"drain_budget"`
	CaptureOnTimer *bool          `yaml:"capture_on_timer"`
	ManualCapture  uint64         `yaml:"manual_capture"`
}

func ParseOverrides(raw []byte) (Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return Overrides{}, fmt.Errorf("parse overrides: %w", err)
	}
	for name, d := range map[string]*time.Duration{
		"motion_cooldown": o.MotionCooldown,
		"wake_interval":   o.WakeInterval,
		"drain_budget":    o.DrainBudget,
	} {
		if d != nil && *d < 0 {
			return Overrides{}, fmt.Errorf("%s must not be negative", name)
		}
	}
	if o.WakeInterval != nil && *o.WakeInterval == 0 {
		return Overrides{}, fmt.Errorf("wake_interval must be positive")
	}
	if o.DrainBudget != nil && *o.DrainBudget == 0 {
		return Overrides{}, fmt.Errorf("drain_budget must be positive")
	}
	return o, nil
}

// Diff lists the tasks needed to move from prev to next.
func Diff(prev, next Overrides) []Task {
	var tasks []Task
	if changed(prev.MotionCooldown, next.MotionCooldown) {
		tasks = append(tasks, Task{Kind: KindMotionCooldown, Duration: *next.MotionCooldown})
	}
	if changed(prev.WakeInterval, next.WakeInterval) {
		tasks = append(tasks, Task{Kind: KindWakeInterval, Duration: *next.WakeInterval})
	}
	if changed(prev.DrainBudget, next.DrainBudget) {
		tasks = append(tasks, Task{Kind: KindDrainBudget, Duration: *next.DrainBudget})
	}
	if next.CaptureOnTimer != nil && (prev.CaptureOnTimer == nil || *prev.CaptureOnTimer != *next.CaptureOnTimer) {
		tasks = append(tasks, Task{Kind: KindCaptureOnTimer, Enabled: *next.CaptureOnTimer})
	}
	if next.ManualCapture > prev.ManualCapture {
		tasks = append(tasks, Task{Kind: KindManualCapture})
	}
	return tasks
}

func changed(prev, next *time.Duration) bool {
	return next != nil && (prev == nil || *prev != *next)
}
