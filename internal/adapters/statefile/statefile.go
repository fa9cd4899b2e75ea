// Package statefile persists the controller's counters as YAML so they
// survive deep sleep and restarts.
package statefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

type File struct {
	path string
}

func New(path string) *File { return &File{path: path} }

// Load returns the zero state when the file does not exist yet.
func (f *File) Load() (domain.PersistentState, error) {
	var st domain.PersistentState
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, err
	}
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return domain.PersistentState{}, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return st, nil
}

// Store replaces the file atomically.
func (f *File) Store(st domain.PersistentState) error {
	raw, err := yaml.Marshal(&st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

var _ ports.StateStore = (*File)(nil)
