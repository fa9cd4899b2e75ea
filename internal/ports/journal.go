package ports

import "github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"

// Journal records queue membership so pending payloads survive power loss.
type Journal interface {
	// Append records p. Appending an id again replaces its payload, so retry
	// state written after a failed send is what Replay returns.
	Append(p domain.Payload) error
	Settle(id domain.PayloadID) error
	Replay(fn func(p domain.Payload) error) error
	Compact() error
	Stats() JournalStats
}

type JournalStats struct {
	Live      int
	SizeBytes int64
}
