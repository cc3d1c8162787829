package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus enumerates the possible states of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusScheduled AssessmentStatus = "SCHEDULED"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusActive    AssessmentStatus = "ACTIVE"
	AssessmentStatusCompleted AssessmentStatus = "COMPLETED"
	AssessmentStatusExpired   AssessmentStatus = "EXPIRED"
)

// GradingMode controls whether sealed submissions are scored automatically.
type GradingMode string

const (
	GradingModeAuto   GradingMode = "AUTO"
	GradingModeManual GradingMode = "MANUAL"
)

// Assessment represents an assessment definition. Questions are owned by
// the assessment; deleting it removes them.
type Assessment struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	GroupLabel       string           `json:"group_label"`
	AuthorID         int              `json:"author_id"`
	GradingMode      GradingMode      `json:"grading_mode"`
	Status           AssessmentStatus `json:"status"`
	ResultsPublished bool             `json:"results_published"`
	ScheduledStart   *time.Time       `json:"scheduled_start,omitempty"`
	DurationMinutes  int              `json:"duration_minutes"`
	StartDate        *time.Time       `json:"start_date,omitempty"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
	TotalPoints      int              `json:"total_points"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// OpensAt returns the earliest instant a participant may start an attempt.
// Zero time means the assessment opens as soon as it is published.
func (a *Assessment) OpensAt() time.Time {
	switch {
	case a.ScheduledStart != nil:
		return *a.ScheduledStart
	case a.StartDate != nil:
		return *a.StartDate
	default:
		return time.Time{}
	}
}

// ClosesAt returns the instant after which no new attempt may start.
// Zero time means the window never closes on its own.
func (a *Assessment) ClosesAt() time.Time {
	switch {
	case a.EndDate != nil:
		return *a.EndDate
	case a.ScheduledStart != nil && a.DurationMinutes > 0:
		return a.ScheduledStart.Add(time.Duration(a.DurationMinutes) * time.Minute)
	default:
		return time.Time{}
	}
}

// CreateAssessmentRequest is the payload for creating a new assessment.
type CreateAssessmentRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	GroupLabel      string     `json:"group_label" binding:"required,min=1,max=100"`
	GradingMode     string     `json:"grading_mode" binding:"required,oneof=AUTO MANUAL"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"omitempty"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	StartDate       *time.Time `json:"start_date" binding:"omitempty"`
	EndDate         *time.Time `json:"end_date" binding:"omitempty,gtfield=StartDate"`
}

// UpdateAssessmentRequest is the payload for updating a draft assessment.
type UpdateAssessmentRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	GroupLabel      string     `json:"group_label" binding:"omitempty,min=1,max=100"`
	GradingMode     string     `json:"grading_mode" binding:"omitempty,oneof=AUTO MANUAL"`
	ScheduledStart  *time.Time `json:"scheduled_start" binding:"omitempty"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	StartDate       *time.Time `json:"start_date" binding:"omitempty"`
	EndDate         *time.Time `json:"end_date" binding:"omitempty"`
}

// AssessmentPaper is the Redis-cached payload sent to participants
// (no correct answers).
type AssessmentPaper struct {
	AssessmentID uuid.UUID                `json:"assessment_id"`
	Title        string                   `json:"title"`
	Duration     int                      `json:"duration_minutes"`
	Questions    []QuestionForParticipant `json:"questions"`
}
