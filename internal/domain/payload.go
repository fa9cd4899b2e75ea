package domain

import "time"

type Priority uint8

const (
	PriorityRoutine Priority = iota
	PriorityAlert
)

func (p Priority) String() string {
	if p == PriorityAlert {
		return "ALERT"
	}
	return "ROUTINE"
}

type PayloadID uint64

// Payload is one queued unit of captured data plus delivery metadata. It is
// owned by the transmission queue until delivered or dropped.
type Payload struct {
	ID           PayloadID `json:"id"`
	SequenceID   uint64    `json:"sequence_id"`
	Bytes        []byte    `json:"bytes"`
	Size         int       `json:"size"`
	Priority     Priority  `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	Deadline     time.Time `json:"deadline,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	LastLink     LinkKind  `json:"last_link,omitempty"`
	LastFailed   bool      `json:"last_failed,omitempty"`
	// LastAttempt is when the most recent failed send ended.
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	StoragePath  string    `json:"storage_path,omitempty"`
}

// HasDeadline reports whether an explicit staleness deadline was set.
func (p *Payload) HasDeadline() bool { return !p.Deadline.IsZero() }

// Expired reports whether the payload's deadline has passed at now.
func (p *Payload) Expired(now time.Time) bool {
	return p.HasDeadline() && now.After(p.Deadline)
}
