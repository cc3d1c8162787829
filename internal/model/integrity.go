package model

import (
	"time"

	"github.com/google/uuid"
)

// IntegrityKind classifies an integrity signal recorded on an attempt.
type IntegrityKind string

const (
	IntegrityKindFocusLost     IntegrityKind = "FOCUS_LOST"
	IntegrityKindFocusRegained IntegrityKind = "FOCUS_REGAINED"
	IntegrityKindDisconnected  IntegrityKind = "DISCONNECTED"
)

// IntegrityEvent is one recorded signal from the session monitor.
type IntegrityEvent struct {
	ID           int           `json:"id"`
	SubmissionID uuid.UUID     `json:"submission_id"`
	Kind         IntegrityKind `json:"kind"`
	Detail       string        `json:"detail,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}
