package domain

import "time"

type Outcome uint8

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailed
	OutcomeTimeout
	// OutcomeAbandoned and OutcomeExpired mark payloads removed without delivery.
	OutcomeAbandoned
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeTimeout:
		return "TIMEOUT"
	case OutcomeAbandoned:
		return "DELIVERY_ABANDONED"
	case OutcomeExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// TransmissionRecord is an append-only diagnostics entry.
type TransmissionRecord struct {
	PayloadID PayloadID `json:"payload_id"`
	Link      LinkKind  `json:"link"`
	Outcome   Outcome   `json:"outcome"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"ts"`
}
