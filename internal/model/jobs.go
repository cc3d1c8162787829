package model

import (
	"time"

	"github.com/google/uuid"
)

// PersistAnswerJob is one buffered answer waiting to be flushed from
// Redis to Postgres by the autosave worker.
type PersistAnswerJob struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	QuestionID   uuid.UUID `json:"question_id"`
	Answer       string    `json:"answer"`
	SavedAt      time.Time `json:"saved_at"`
}

// SealJob asks the seal worker to retry a seal that could not reach the
// store. Re-running a seal is safe; the transition fires at most once.
type SealJob struct {
	SubmissionID uuid.UUID  `json:"submission_id"`
	Reason       SealReason `json:"reason"`
	RequestedAt  time.Time  `json:"requested_at"`
}

// IntegrityJob is one integrity signal waiting to be batch-inserted.
type IntegrityJob struct {
	SubmissionID uuid.UUID     `json:"submission_id"`
	Kind         IntegrityKind `json:"kind"`
	Detail       string        `json:"detail,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}
