package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/grading"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/notifier"
)

// gradeBatchSize is the page size used when walking an assessment's
// submissions for a bulk regrade.
const gradeBatchSize = 500

// GradingStore is the submission data access grading needs.
type GradingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID, limit, offset int) ([]model.Submission, int, error)
	ApplyGrading(ctx context.Context, id uuid.UUID, status model.SubmissionStatus, autoScore, totalScore float64, percentage int) error
	SetManualScores(ctx context.Context, id uuid.UUID, scores map[uuid.UUID]int, feedback map[uuid.UUID]string) error
}

// IntegrityStore is the integrity-event data access grading needs for
// the instructor's per-submission review.
type IntegrityStore interface {
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]model.IntegrityEvent, error)
}

// SubmissionGradeOutcome is one submission's result within a bulk run.
// A failed submission carries its error and never blocks the rest.
type SubmissionGradeOutcome struct {
	SubmissionID uuid.UUID       `json:"submission_id"`
	Result       *grading.Result `json:"result,omitempty"`
	Err          error           `json:"-"`
	Error        string          `json:"error,omitempty"`
}

// GradingService regrades sealed submissions and records manual scores.
type GradingService struct {
	assessments AssessmentStore
	submissions GradingStore
	events      IntegrityStore
	notify      notifier.Notifier
	log         zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(assessments AssessmentStore, submissions GradingStore, events IntegrityStore, notify notifier.Notifier, log zerolog.Logger) *GradingService {
	return &GradingService{
		assessments: assessments,
		submissions: submissions,
		events:      events,
		notify:      notify,
		log:         log.With().Str("component", "grading_service").Logger(),
	}
}

// GradeOne recomputes and persists one submission's grade. Sealing is a
// precondition; an in-progress attempt cannot be graded. authorID of 0
// skips the ownership check (internal callers).
func (s *GradingService) GradeOne(ctx context.Context, submissionID uuid.UUID, authorID int) (*grading.Result, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sub.Status == model.SubmissionStatusInProgress {
		return nil, fmt.Errorf("submission %s is still in progress", submissionID)
	}

	assessment, err := s.assessments.GetByID(ctx, sub.AssessmentID)
	if err != nil {
		return nil, err
	}
	if authorID != 0 && assessment.AuthorID != authorID {
		return nil, ErrNotAuthor
	}

	res := grading.Grade(assessment.GradingMode, assessment.TotalPoints, sub)
	if err := s.submissions.ApplyGrading(ctx, sub.ID, res.Status, res.AutoScore, res.TotalScore, res.Percentage); err != nil {
		return nil, err
	}

	if res.Status.Terminal() {
		s.notify.Notify(ctx, notifier.Event{
			Type:          notifier.EventGradingCompleted,
			AssessmentID:  assessment.ID,
			SubmissionID:  &sub.ID,
			ParticipantID: &sub.ParticipantID,
		})
	}
	return &res, nil
}

// GradeAll regrades every sealed submission of an assessment
// concurrently. Each submission succeeds or fails on its own; one
// malformed attempt never blocks the rest of the run.
func (s *GradingService) GradeAll(ctx context.Context, assessmentID uuid.UUID, authorID int) ([]SubmissionGradeOutcome, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if authorID != 0 && assessment.AuthorID != authorID {
		return nil, ErrNotAuthor
	}

	var subs []model.Submission
	for offset := 0; ; offset += gradeBatchSize {
		page, _, err := s.submissions.ListByAssessment(ctx, assessmentID, gradeBatchSize, offset)
		if err != nil {
			return nil, err
		}
		subs = append(subs, page...)
		if len(page) < gradeBatchSize {
			break
		}
	}

	outcomes := make([]SubmissionGradeOutcome, 0, len(subs))
	for _, sub := range subs {
		if sub.Status == model.SubmissionStatusInProgress {
			continue
		}
		outcomes = append(outcomes, SubmissionGradeOutcome{SubmissionID: sub.ID})
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(out *SubmissionGradeOutcome) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.GradeOne(ctx, out.SubmissionID, 0)
			if err != nil {
				out.Err = err
				out.Error = err.Error()
				s.log.Error().Err(err).Str("submission_id", out.SubmissionID.String()).Msg("Bulk grade entry failed")
				return
			}
			out.Result = res
		}(&outcomes[i])
	}
	wg.Wait()

	s.log.Info().
		Str("assessment_id", assessmentID.String()).
		Int("graded", len(outcomes)).
		Msg("Bulk grading finished")
	return outcomes, nil
}

// SetManualScores records instructor scores for a submission and
// regrades it. Every score must land inside the question's point range;
// a manual score always wins over the automatic verdict afterwards.
func (s *GradingService) SetManualScores(ctx context.Context, submissionID uuid.UUID, authorID int, req *model.ManualScoresRequest) (*grading.Result, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sub.Status == model.SubmissionStatusInProgress {
		return nil, ErrSessionSealed
	}

	if authorID != 0 {
		assessment, err := s.assessments.GetByID(ctx, sub.AssessmentID)
		if err != nil {
			return nil, err
		}
		if assessment.AuthorID != authorID {
			return nil, ErrNotAuthor
		}
	}

	maxPoints := make(map[uuid.UUID]int, len(sub.QuestionSnapshot))
	for _, q := range sub.QuestionSnapshot {
		maxPoints[q.ID] = q.Points
	}

	scores := make(map[uuid.UUID]int, len(req.Scores))
	feedback := make(map[uuid.UUID]string)
	for _, entry := range req.Scores {
		limit, ok := maxPoints[entry.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %s is not part of this submission", ErrInvalidManualScore, entry.QuestionID)
		}
		if entry.Points < 0 || entry.Points > limit {
			return nil, fmt.Errorf("%w: question %s accepts 0..%d, got %d", ErrInvalidManualScore, entry.QuestionID, limit, entry.Points)
		}
		scores[entry.QuestionID] = entry.Points
		if entry.Feedback != "" {
			feedback[entry.QuestionID] = entry.Feedback
		}
	}

	if err := s.submissions.SetManualScores(ctx, submissionID, scores, feedback); err != nil {
		return nil, err
	}
	return s.GradeOne(ctx, submissionID, 0)
}

// ListIntegrityEvents returns a submission's recorded integrity events
// for the owning instructor.
func (s *GradingService) ListIntegrityEvents(ctx context.Context, submissionID uuid.UUID, authorID int) ([]model.IntegrityEvent, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if authorID != 0 {
		assessment, err := s.assessments.GetByID(ctx, sub.AssessmentID)
		if err != nil {
			return nil, err
		}
		if assessment.AuthorID != authorID {
			return nil, ErrNotAuthor
		}
	}

	return s.events.ListBySubmission(ctx, sub.ID)
}
