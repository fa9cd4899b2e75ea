package domain

import "time"

// PersistentState holds the counters that must survive deep sleep and
// restarts. It is loaded once at boot and stored before every sleep entry.
type PersistentState struct {
	NodeID         string    `yaml:"node_id"`
	BootCount      uint64    `yaml:"boot_count"`
	NextPayloadID  PayloadID `yaml:"next_payload_id"`
	NextSequenceID uint64    `yaml:"next_sequence_id"`
	LastEventAt    time.Time `yaml:"last_event_at"`
	EmergencyCount uint64    `yaml:"emergency_count"`
	LastFailure    string    `yaml:"last_failure,omitempty"`
}

// AllocPayloadID returns the next monotonic payload id.
func (s *PersistentState) AllocPayloadID() PayloadID {
	s.NextPayloadID++
	return s.NextPayloadID
}

// AllocSequenceID returns the next capture sequence id.
func (s *PersistentState) AllocSequenceID() uint64 {
	s.NextSequenceID++
	return s.NextSequenceID
}

// ObservePayloadID keeps the allocator ahead of ids recovered from a journal.
func (s *PersistentState) ObservePayloadID(id PayloadID) {
	if id > s.NextPayloadID {
		s.NextPayloadID = id
	}
}
