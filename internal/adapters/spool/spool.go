// Package spool keeps captured frames on the SD card until they are
// delivered.
package spool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

const frameExt = ".jpg"

// Dir stores one file per frame. Names sort by capture time.
type Dir struct {
	root string
	// maxFrames bounds the spool; the oldest frame is evicted past it. Zero
	// means unbounded.
	maxFrames int
	now       func() time.Time
}

func New(root string, maxFrames int) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create spool %s: %w", root, err)
	}
	return &Dir{root: root, maxFrames: maxFrames, now: time.Now}, nil
}

// Save writes the frame through a temp file so a power cut never leaves a
// half-written frame under its final name.
func (d *Dir) Save(f domain.Frame) (string, error) {
	name := fmt.Sprintf("%020d-%s%s", d.now().UnixNano(), uuid.NewString()[:8], frameExt)
	path := filepath.Join(d.root, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, f.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("spool frame: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("spool frame: %w", err)
	}
	if err := d.evict(); err != nil {
		return path, err
	}
	return path, nil
}

// ListPending returns spooled frames oldest first.
func (d *Dir) ListPending() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), frameExt) {
			continue
		}
		out = append(out, filepath.Join(d.root, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (d *Dir) Load(path string) (domain.Frame, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("load spooled frame: %w", err)
	}
	return domain.Frame{Bytes: b, Size: len(b)}, nil
}

// Remove deletes a spooled frame; a missing file is not an error.
func (d *Dir) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) evict() error {
	if d.maxFrames <= 0 {
		return nil
	}
	paths, err := d.ListPending()
	if err != nil {
		return err
	}
	var errs []error
	for len(paths) > d.maxFrames {
		errs = append(errs, d.Remove(paths[0]))
		paths = paths[1:]
	}
	return errors.Join(errs...)
}

var _ ports.Storage = (*Dir)(nil)
