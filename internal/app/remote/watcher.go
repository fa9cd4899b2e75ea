package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// Watcher follows one overrides file and pushes the tasks each edit implies.
// The parent directory is watched so editors that replace the file by rename
// are still seen.
type Watcher struct {
	path     string
	tasks    *Tasks
	obs      ports.Observability
	debounce time.Duration
	last     Overrides
}

func NewWatcher(path string, tasks *Tasks, obs ports.Observability) *Watcher {
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Watcher{
		path:     filepath.Clean(path),
		tasks:    tasks,
		obs:      obs,
		debounce: 200 * time.Millisecond,
	}
}

// Run blocks until ctx ends. The file's state at start is applied once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("overrides watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.reload()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
				pending = true
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.obs.LogError("overrides_watch_error", err)
		case <-fire:
			pending = false
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.obs.LogError("overrides_read_failed", err, ports.F("path", w.path))
		}
		return
	}
	next, err := ParseOverrides(raw)
	if err != nil {
		w.obs.LogError("overrides_rejected", err, ports.F("path", w.path))
		return
	}
	for _, task := range Diff(w.last, next) {
		if err := w.tasks.Push(task); err != nil {
			w.obs.LogError("override_dropped", err, ports.F("task", task.Kind.String()))
			continue
		}
		w.obs.LogInfo("override_queued", ports.F("task", task.Kind.String()))
	}
	w.last = next
}
