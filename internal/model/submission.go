package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus enumerates submission states. IN_PROGRESS is the only
// state in which the participant may still change answers; all other
// states are reached through sealing and grading.
type SubmissionStatus string

const (
	SubmissionStatusInProgress      SubmissionStatus = "IN_PROGRESS"
	SubmissionStatusSubmitted       SubmissionStatus = "SUBMITTED"
	SubmissionStatusAutoGraded      SubmissionStatus = "AUTO_GRADED"
	SubmissionStatusPartiallyGraded SubmissionStatus = "PARTIALLY_GRADED"
	SubmissionStatusManuallyGraded  SubmissionStatus = "MANUALLY_GRADED"
)

// Terminal reports whether grading is fully resolved for this status.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionStatusAutoGraded || s == SubmissionStatusManuallyGraded
}

// SealReason records what forced a submission out of IN_PROGRESS.
type SealReason string

const (
	SealReasonManual     SealReason = "MANUAL"
	SealReasonTimeout    SealReason = "TIMEOUT"
	SealReasonIntegrity  SealReason = "INTEGRITY"
	SealReasonDisconnect SealReason = "DISCONNECT"
)

// Submission represents one participant's attempt at an assessment.
// Exactly one submission exists per (assessment, participant) pair.
type Submission struct {
	ID            uuid.UUID        `json:"id"`
	AssessmentID  uuid.UUID        `json:"assessment_id"`
	ParticipantID int              `json:"participant_id"`
	Status        SubmissionStatus `json:"status"`
	SealReason    *SealReason      `json:"seal_reason,omitempty"`
	// Answers maps question id to the submitted value. Multiple choice
	// answers carry the option index in decimal.
	Answers map[uuid.UUID]string `json:"answers,omitempty"`
	// QuestionSnapshot is the question list captured at seal time.
	// Grading reads the snapshot, never the live assessment, so later
	// edits to the assessment cannot change a sealed attempt's score.
	QuestionSnapshot []Question           `json:"question_snapshot,omitempty"`
	AutoScore        *float64             `json:"auto_score,omitempty"`
	ManualScores     map[uuid.UUID]int    `json:"manual_scores,omitempty"`
	Feedback         map[uuid.UUID]string `json:"feedback,omitempty"`
	TotalScore       *float64             `json:"total_score,omitempty"`
	Percentage       *int                 `json:"percentage,omitempty"`
	StartedAt        time.Time            `json:"started_at"`
	SubmittedAt      *time.Time           `json:"submitted_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ManualScoreEntry is one instructor-supplied score for a question.
type ManualScoreEntry struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Points     int       `json:"points" binding:"min=0"`
	Feedback   string    `json:"feedback" binding:"omitempty,max=2000"`
}

// ManualScoresRequest is the payload for recording manual scores.
type ManualScoresRequest struct {
	Scores []ManualScoreEntry `json:"scores" binding:"required,min=1,dive"`
}

// AttemptState is what a participant sees when (re)opening a running
// attempt: buffered answers plus the authoritative remaining time.
type AttemptState struct {
	AssessmentID     uuid.UUID         `json:"assessment_id"`
	SubmissionID     uuid.UUID         `json:"submission_id"`
	Status           SubmissionStatus  `json:"status"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingSeconds float64           `json:"remaining_seconds"`
	Deadline         time.Time         `json:"deadline"`
}
