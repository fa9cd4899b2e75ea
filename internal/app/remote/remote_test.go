package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTasksBounded(t *testing.T) {
	q := NewTasks(2)
	require.NoError(t, q.Push(Task{Kind: KindManualCapture}))
	require.NoError(t, q.Push(Task{Kind: KindDrainBudget, Duration: time.Second}))
	assert.ErrorIs(t, q.Push(Task{Kind: KindManualCapture}), ErrBacklogFull)

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, KindManualCapture, got[0].Kind)
	assert.Equal(t, KindDrainBudget, got[1].Kind)
	assert.Empty(t, q.Drain())
}

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides([]byte("motion_cooldown: 3s\ncapture_on_timer: true\nmanual_capture: 2\n"))
	require.NoError(t, err)
	require.NotNil(t, o.MotionCooldown)
	assert.Equal(t, 3*time.Second, *o.MotionCooldown)
	require.NotNil(t, o.CaptureOnTimer)
	assert.True(t, *o.CaptureOnTimer)
	assert.Nil(t, o.WakeInterval)
	assert.Equal(t, uint64(2), o.ManualCapture)

	_, err = ParseOverrides([]byte("wake_interval: 0s\n"))
	assert.Error(t, err)
	_, err = ParseOverrides([]byte("drain_budget: -1s\n"))
	assert.Error(t, err)
}

func TestDiffOnlyEmitsChanges(t *testing.T) {
	d := func(v time.Duration) *time.Duration { return &v }
	on := true

	prev := Overrides{MotionCooldown: d(5 * time.Second), ManualCapture: 1}
	next := Overrides{MotionCooldown: d(5 * time.Second), WakeInterval: d(time.Minute), CaptureOnTimer: &on, ManualCapture: 2}

	got := Diff(prev, next)
	require.Len(t, got, 3)
	assert.Equal(t, Task{Kind: KindWakeInterval, Duration: time.Minute}, got[0])
	assert.Equal(t, Task{Kind: KindCaptureOnTimer, Enabled: true}, got[1])
	assert.Equal(t, Task{Kind: KindManualCapture}, got[2])

	assert.Empty(t, Diff(next, next))
}

func TestWatcherPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("motion_cooldown: 2s\n"), 0o600))

	tasks := NewTasks(8)
	w := NewWatcher(path, tasks, nil)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var seen []Task
	require.Eventually(t, func() bool {
		seen = append(seen, tasks.Drain()...)
		return len(seen) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, Task{Kind: KindMotionCooldown, Duration: 2 * time.Second}, seen[0])

	require.NoError(t, os.WriteFile(path, []byte("motion_cooldown: 2s\nmanual_capture: 1\n"), 0o600))
	require.Eventually(t, func() bool {
		seen = append(seen, tasks.Drain()...)
		return len(seen) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, KindManualCapture, seen[1].Kind)

	cancel()
	require.NoError(t, <-done)
}
