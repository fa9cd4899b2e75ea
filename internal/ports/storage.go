package ports

import "github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"

// Storage persists frames locally (SD card) before or instead of
// transmission.
type Storage interface {
	Save(f domain.Frame) (path string, err error)
	ListPending() ([]string, error)
	Load(path string) (domain.Frame, error)
	Remove(path string) error
}

// StateStore loads and stores the node's persistent counters.
type StateStore interface {
	Load() (domain.PersistentState, error)
	Store(s domain.PersistentState) error
}
