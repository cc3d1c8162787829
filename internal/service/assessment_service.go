package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/clock"
	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/notifier"
)

// AssessmentAdminStore is the assessment data access the instructor
// side and the lifecycle sweep need.
type AssessmentAdminStore interface {
	AssessmentStore
	Create(ctx context.Context, a *model.Assessment) error
	Update(ctx context.Context, a *model.Assessment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssessmentStatus) error
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.AssessmentStatus) (bool, error)
	SetResultsPublished(ctx context.Context, id uuid.UUID, published bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAuthorPaginated(ctx context.Context, authorID, limit, offset int) ([]model.Assessment, int, error)
	ListByStatuses(ctx context.Context, statuses ...model.AssessmentStatus) ([]model.Assessment, error)
	ReplaceQuestions(ctx context.Context, assessmentID uuid.UUID, questions []model.Question) error
}

// SubmissionAdminStore is the submission data access the instructor
// side and the lifecycle sweep need.
type SubmissionAdminStore interface {
	HasAny(ctx context.Context, assessmentID uuid.UUID) (bool, error)
	CountNotFullyGraded(ctx context.Context, assessmentID uuid.UUID) (int, error)
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID, limit, offset int) ([]model.Submission, int, error)
	ListInProgressByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Submission, error)
}

// AttemptSealer is the slice of the attempt service the sweep uses to
// close overdue attempts.
type AttemptSealer interface {
	Seal(ctx context.Context, submissionID uuid.UUID, reason model.SealReason) (*model.Submission, bool, error)
}

// AssessmentService runs the instructor side: authoring, publication,
// the lifecycle sweep, and the results gate.
type AssessmentService struct {
	assessments AssessmentAdminStore
	submissions SubmissionAdminStore
	sealer      AttemptSealer
	rdb         *redis.Client
	clk         clock.Clock
	notify      notifier.Notifier
	log         zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(assessments AssessmentAdminStore, submissions SubmissionAdminStore, sealer AttemptSealer, rdb *redis.Client, clk clock.Clock, notify notifier.Notifier, log zerolog.Logger) *AssessmentService {
	return &AssessmentService{
		assessments: assessments,
		submissions: submissions,
		sealer:      sealer,
		rdb:         rdb,
		clk:         clk,
		notify:      notify,
		log:         log.With().Str("component", "assessment_service").Logger(),
	}
}

// Create creates a new draft assessment.
func (s *AssessmentService) Create(ctx context.Context, authorID int, req *model.CreateAssessmentRequest) (*model.Assessment, error) {
	a := &model.Assessment{
		Title:           req.Title,
		GroupLabel:      req.GroupLabel,
		AuthorID:        authorID,
		GradingMode:     model.GradingMode(req.GradingMode),
		Status:          model.AssessmentStatusDraft,
		ScheduledStart:  req.ScheduledStart,
		DurationMinutes: req.DurationMinutes,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}
	if err := s.assessments.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info().Str("assessment_id", a.ID.String()).Int("author_id", authorID).Msg("Assessment created")
	return a, nil
}

// Get retrieves an assessment the instructor owns.
func (s *AssessmentService) Get(ctx context.Context, id uuid.UUID, authorID int) (*model.Assessment, error) {
	return s.getOwned(ctx, id, authorID)
}

func (s *AssessmentService) getOwned(ctx context.Context, id uuid.UUID, authorID int) (*model.Assessment, error) {
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if a.AuthorID != authorID {
		return nil, ErrNotAuthor
	}
	return a, nil
}

// List retrieves the instructor's assessments, paginated.
func (s *AssessmentService) List(ctx context.Context, authorID, limit, offset int) ([]model.Assessment, int, error) {
	return s.assessments.ListByAuthorPaginated(ctx, authorID, limit, offset)
}

// Update modifies a draft. Non-draft assessments are immutable; edits
// after publication would silently change live papers.
func (s *AssessmentService) Update(ctx context.Context, id uuid.UUID, authorID int, req *model.UpdateAssessmentRequest) (*model.Assessment, error) {
	a, err := s.getOwned(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AssessmentStatusDraft {
		return nil, ErrNotDraft
	}

	if req.Title != "" {
		a.Title = req.Title
	}
	if req.GroupLabel != "" {
		a.GroupLabel = req.GroupLabel
	}
	if req.GradingMode != "" {
		a.GradingMode = model.GradingMode(req.GradingMode)
	}
	if req.DurationMinutes != 0 {
		a.DurationMinutes = req.DurationMinutes
	}
	if req.ScheduledStart != nil {
		a.ScheduledStart = req.ScheduledStart
	}
	if req.StartDate != nil {
		a.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		a.EndDate = req.EndDate
	}

	if err := s.assessments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes a draft assessment.
func (s *AssessmentService) Delete(ctx context.Context, id uuid.UUID, authorID int) error {
	a, err := s.getOwned(ctx, id, authorID)
	if err != nil {
		return err
	}
	if a.Status != model.AssessmentStatusDraft {
		return ErrNotDraft
	}
	return s.assessments.Delete(ctx, id)
}

// ListQuestions retrieves an owned assessment's questions with the
// answer key.
func (s *AssessmentService) ListQuestions(ctx context.Context, id uuid.UUID, authorID int) ([]model.Question, error) {
	if _, err := s.getOwned(ctx, id, authorID); err != nil {
		return nil, err
	}
	return s.assessments.ListQuestions(ctx, id)
}

// ReplaceQuestions swaps a draft's question list.
func (s *AssessmentService) ReplaceQuestions(ctx context.Context, id uuid.UUID, authorID int, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	a, err := s.getOwned(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AssessmentStatusDraft {
		return nil, ErrNotDraft
	}

	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}
	if err := s.assessments.ReplaceQuestions(ctx, id, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// buildQuestions validates per-type answer key requirements that
// binding tags cannot express.
func buildQuestions(reqs []model.AddQuestionRequest) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(reqs))
	for i, req := range reqs {
		q := model.Question{
			Type:          model.QuestionType(req.Type),
			Prompt:        req.Prompt,
			Options:       req.Options,
			CorrectChoice: req.CorrectChoice,
			CorrectBool:   req.CorrectBool,
			Points:        req.Points,
			OrderNum:      req.OrderNum,
		}
		if q.OrderNum == 0 {
			q.OrderNum = i + 1
		}

		switch q.Type {
		case model.QuestionTypeMultipleChoice:
			if len(q.Options) < 2 {
				return nil, fmt.Errorf("%w: question %d needs at least two options", ErrInvalidQuestion, i+1)
			}
			if q.CorrectChoice == nil || *q.CorrectChoice < 0 || *q.CorrectChoice >= len(q.Options) {
				return nil, fmt.Errorf("%w: question %d correct_choice out of range", ErrInvalidQuestion, i+1)
			}
		case model.QuestionTypeTrueFalse:
			if q.CorrectBool == nil {
				return nil, fmt.Errorf("%w: question %d missing correct_bool", ErrInvalidQuestion, i+1)
			}
			q.Options = nil
			q.CorrectChoice = nil
		case model.QuestionTypeShortAnswer:
			q.Options = nil
			q.CorrectChoice = nil
			q.CorrectBool = nil
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Publish moves a draft into the participant-visible lifecycle. With a
// future scheduled start the assessment waits in SCHEDULED; otherwise
// it goes straight to PUBLISHED.
func (s *AssessmentService) Publish(ctx context.Context, id uuid.UUID, authorID int) (*model.Assessment, error) {
	a, err := s.getOwned(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AssessmentStatusDraft {
		return nil, ErrNotDraft
	}

	questions, err := s.assessments.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	target := model.AssessmentStatusPublished
	if opens := a.OpensAt(); !opens.IsZero() && s.clk.Now().Before(opens) {
		target = model.AssessmentStatusScheduled
	}
	if err := s.assessments.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}
	a.Status = target

	s.warmCaches(ctx, a, questions)

	s.log.Info().
		Str("assessment_id", id.String()).
		Str("status", string(target)).
		Msg("Assessment published")
	return a, nil
}

// warmCaches primes Redis with the paper and timing facts so the first
// wave of participants does not stampede Postgres.
func (s *AssessmentService) warmCaches(ctx context.Context, a *model.Assessment, questions []model.Question) {
	paper := model.AssessmentPaper{
		AssessmentID: a.ID,
		Title:        a.Title,
		Duration:     a.DurationMinutes,
		Questions:    make([]model.QuestionForParticipant, 0, len(questions)),
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, q.ForParticipant())
	}

	pipe := s.rdb.Pipeline()
	if payload, err := json.Marshal(paper); err == nil {
		pipe.Set(ctx, config.CacheKey.PaperKey(a.ID.String()), payload, 0)
	}
	pipe.Set(ctx, config.CacheKey.DurationKey(a.ID.String()), a.DurationMinutes, 0)
	if a.ScheduledStart != nil {
		pipe.Set(ctx, config.CacheKey.ScheduledStartKey(a.ID.String()), a.ScheduledStart.Format(time.RFC3339), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("assessment_id", a.ID.String()).Msg("Warm caches failed")
	}
}

// PublishResults opens the results gate. Refused while any submission
// still awaits grading so participants never see partial standings.
func (s *AssessmentService) PublishResults(ctx context.Context, id uuid.UUID, authorID int) error {
	if _, err := s.getOwned(ctx, id, authorID); err != nil {
		return err
	}

	pending, err := s.submissions.CountNotFullyGraded(ctx, id)
	if err != nil {
		return err
	}
	if pending > 0 {
		return fmt.Errorf("%w: %d pending", ErrIncompleteGrading, pending)
	}

	if err := s.assessments.SetResultsPublished(ctx, id, true); err != nil {
		return err
	}

	s.notify.Notify(ctx, notifier.Event{
		Type:         notifier.EventResultsPublished,
		AssessmentID: id,
	})
	s.log.Info().Str("assessment_id", id.String()).Msg("Results published")
	return nil
}

// ListSubmissions retrieves an owned assessment's submissions.
func (s *AssessmentService) ListSubmissions(ctx context.Context, id uuid.UUID, authorID, limit, offset int) ([]model.Submission, int, error) {
	if _, err := s.getOwned(ctx, id, authorID); err != nil {
		return nil, 0, err
	}
	return s.submissions.ListByAssessment(ctx, id, limit, offset)
}

// SweepOnce advances every non-terminal assessment one lifecycle step
// and seals overdue attempts. All transitions go through compare-and-set
// updates, so concurrent sweeps (multiple instances) stay harmless and
// re-running the sweep is always a no-op on settled rows.
func (s *AssessmentService) SweepOnce(ctx context.Context) (int, error) {
	assessments, err := s.assessments.ListByStatuses(ctx,
		model.AssessmentStatusScheduled,
		model.AssessmentStatusPublished,
		model.AssessmentStatusActive,
	)
	if err != nil {
		return 0, err
	}

	now := s.clk.Now()
	transitions := 0
	for i := range assessments {
		a := &assessments[i]
		moved, err := s.sweepOne(ctx, a, now)
		if err != nil {
			s.log.Error().Err(err).Str("assessment_id", a.ID.String()).Msg("Sweep step failed")
			continue
		}
		if moved {
			transitions++
		}
	}
	return transitions, nil
}

func (s *AssessmentService) sweepOne(ctx context.Context, a *model.Assessment, now time.Time) (bool, error) {
	opens := a.OpensAt()
	closes := a.ClosesAt()
	windowClosed := !closes.IsZero() && !now.Before(closes)

	switch a.Status {
	case model.AssessmentStatusScheduled:
		if opens.IsZero() || now.Before(opens) {
			return false, nil
		}
		return s.move(ctx, a, model.AssessmentStatusScheduled, model.AssessmentStatusPublished)

	case model.AssessmentStatusPublished:
		if windowClosed {
			// Nobody ever started: the window passed unused.
			hasAttempts, err := s.submissions.HasAny(ctx, a.ID)
			if err != nil {
				return false, err
			}
			target := model.AssessmentStatusExpired
			if hasAttempts {
				target = model.AssessmentStatusCompleted
			}
			s.sealStragglers(ctx, a)
			return s.move(ctx, a, model.AssessmentStatusPublished, target)
		}
		hasAttempts, err := s.submissions.HasAny(ctx, a.ID)
		if err != nil {
			return false, err
		}
		if !hasAttempts {
			return false, nil
		}
		return s.move(ctx, a, model.AssessmentStatusPublished, model.AssessmentStatusActive)

	case model.AssessmentStatusActive:
		// Per-attempt timers can lapse before the shared window does.
		s.sealStragglers(ctx, a)
		if !windowClosed {
			return false, nil
		}
		return s.move(ctx, a, model.AssessmentStatusActive, model.AssessmentStatusCompleted)
	}
	return false, nil
}

func (s *AssessmentService) move(ctx context.Context, a *model.Assessment, from, to model.AssessmentStatus) (bool, error) {
	moved, err := s.assessments.UpdateStatusIf(ctx, a.ID, from, to)
	if err != nil {
		return false, err
	}
	if moved {
		a.Status = to
		s.log.Info().
			Str("assessment_id", a.ID.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Lifecycle transition")
	}
	return moved, nil
}

// sealStragglers closes every in-progress attempt whose own deadline
// has passed. Participants who vanished mid-attempt still get sealed
// and graded like everyone else.
func (s *AssessmentService) sealStragglers(ctx context.Context, a *model.Assessment) {
	open, err := s.submissions.ListInProgressByAssessment(ctx, a.ID)
	if err != nil {
		s.log.Error().Err(err).Str("assessment_id", a.ID.String()).Msg("List open attempts failed")
		return
	}

	now := s.clk.Now()
	for _, sub := range open {
		if now.Before(AttemptDeadline(a, sub.StartedAt)) {
			continue
		}
		if _, _, err := s.sealer.Seal(ctx, sub.ID, model.SealReasonTimeout); err != nil {
			s.log.Error().Err(err).Str("submission_id", sub.ID.String()).Msg("Sweep seal failed")
		}
	}
}
