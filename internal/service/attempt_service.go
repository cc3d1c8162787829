package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/clock"
	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/grading"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/notifier"
)

// AssessmentStore is the assessment data access the attempt service needs.
type AssessmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	ListQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error)
}

// SubmissionStore is the submission data access the attempt service needs.
type SubmissionStore interface {
	Create(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	GetByAssessmentAndParticipant(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Submission, error)
	Seal(ctx context.Context, id uuid.UUID, reason model.SealReason, answers map[uuid.UUID]string, snapshot []model.Question, submittedAt time.Time) (*model.Submission, bool, error)
	ApplyGrading(ctx context.Context, id uuid.UUID, status model.SubmissionStatus, autoScore, totalScore float64, percentage int) error
}

// AttemptService runs the participant side of a timed attempt: start,
// autosave, remaining-time queries, and the seal.
type AttemptService struct {
	assessments AssessmentStore
	submissions SubmissionStore
	rdb         *redis.Client
	clk         clock.Clock
	notify      notifier.Notifier
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(assessments AssessmentStore, submissions SubmissionStore, rdb *redis.Client, clk clock.Clock, notify notifier.Notifier, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		assessments: assessments,
		submissions: submissions,
		rdb:         rdb,
		clk:         clk,
		notify:      notify,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// AttemptDeadline computes the authoritative end of an attempt. The
// timer never starts before the scheduled start, even when the attempt
// row was created early, and an explicit window end always caps it.
func AttemptDeadline(a *model.Assessment, startedAt time.Time) time.Time {
	effective := startedAt
	if a.ScheduledStart != nil && a.ScheduledStart.After(effective) {
		effective = *a.ScheduledStart
	}

	deadline := effective.Add(time.Duration(a.DurationMinutes) * time.Minute)
	if closes := a.ClosesAt(); !closes.IsZero() && closes.Before(deadline) {
		deadline = closes
	}
	return deadline
}

// StartAttempt opens an attempt for the participant. The second call
// for the same pair never opens another attempt: the existing
// submission comes back with ErrAlreadySubmitted so the caller can
// surface its id.
func (s *AttemptService) StartAttempt(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Submission, *model.AssessmentPaper, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	now := s.clk.Now()
	if err := s.checkWindow(assessment, now); err != nil {
		return nil, nil, err
	}

	sub := &model.Submission{
		AssessmentID:  assessmentID,
		ParticipantID: participantID,
		Status:        model.SubmissionStatusInProgress,
		StartedAt:     now,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, err
		}
		// Unique constraint fired: an attempt already exists.
		existing, err := s.submissions.GetByAssessmentAndParticipant(ctx, assessmentID, participantID)
		if err != nil {
			return nil, nil, err
		}
		return existing, nil, ErrAlreadySubmitted
	}

	s.anchorStart(ctx, assessment, sub)

	paper, err := s.GetPaper(ctx, assessment)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("assessment_id", assessmentID.String()).
		Int("participant_id", participantID).
		Str("submission_id", sub.ID.String()).
		Msg("Attempt started")
	return sub, paper, nil
}

func (s *AttemptService) checkWindow(a *model.Assessment, now time.Time) error {
	switch a.Status {
	case model.AssessmentStatusPublished, model.AssessmentStatusActive:
	case model.AssessmentStatusDraft, model.AssessmentStatusScheduled:
		return ErrWindowNotOpen
	default:
		return ErrWindowExpired
	}

	if opens := a.OpensAt(); !opens.IsZero() && now.Before(opens) {
		return ErrWindowNotOpen
	}
	if closes := a.ClosesAt(); !closes.IsZero() && !now.Before(closes) {
		return ErrWindowExpired
	}
	return nil
}

// anchorStart caches the start instant so remaining-time queries and
// the WebSocket stream avoid a DB read per tick. The DB row stays the
// source of truth; loss of the anchor only costs a fallback read.
func (s *AttemptService) anchorStart(ctx context.Context, a *model.Assessment, sub *model.Submission) {
	ttl := time.Duration(a.DurationMinutes)*time.Minute + time.Hour
	key := config.CacheKey.AttemptStartKey(a.ID.String(), sub.ParticipantID)
	if err := s.rdb.Set(ctx, key, sub.StartedAt.Format(time.RFC3339Nano), ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Anchor attempt start failed")
	}
}

// GetPaper returns the participant-facing paper, served from Redis when
// warm.
func (s *AttemptService) GetPaper(ctx context.Context, a *model.Assessment) (*model.AssessmentPaper, error) {
	key := config.CacheKey.PaperKey(a.ID.String())
	if cached, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var paper model.AssessmentPaper
		if err := json.Unmarshal(cached, &paper); err == nil {
			return &paper, nil
		}
		// Corrupt cache entry, rebuild below.
		s.rdb.Del(ctx, key)
	}

	questions, err := s.assessments.ListQuestions(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	paper := &model.AssessmentPaper{
		AssessmentID: a.ID,
		Title:        a.Title,
		Duration:     a.DurationMinutes,
		Questions:    make([]model.QuestionForParticipant, 0, len(questions)),
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, q.ForParticipant())
	}

	if payload, err := json.Marshal(paper); err == nil {
		s.rdb.Set(ctx, key, payload, 30*time.Minute)
	}
	return paper, nil
}

// GetPaperForParticipant serves the paper to a participant with a
// running attempt. Sealed attempts get the state endpoint instead.
func (s *AttemptService) GetPaperForParticipant(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.AssessmentPaper, error) {
	sub, err := s.submissions.GetByAssessmentAndParticipant(ctx, assessmentID, participantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sub.Status != model.SubmissionStatusInProgress {
		return nil, ErrSessionSealed
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return s.GetPaper(ctx, assessment)
}

// RecordAnswer buffers one answer in Redis and queues its persistence.
// The deadline check happens here, not in the client: an answer landing
// after the deadline seals the attempt instead of saving.
func (s *AttemptService) RecordAnswer(ctx context.Context, submissionID, questionID uuid.UUID, answer string) error {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if sub.Status != model.SubmissionStatusInProgress {
		return ErrSessionSealed
	}

	assessment, err := s.assessments.GetByID(ctx, sub.AssessmentID)
	if err != nil {
		return err
	}
	now := s.clk.Now()
	if !now.Before(AttemptDeadline(assessment, sub.StartedAt)) {
		if _, _, err := s.Seal(ctx, submissionID, model.SealReasonTimeout); err != nil {
			s.log.Error().Err(err).Str("submission_id", submissionID.String()).Msg("Timeout seal failed")
		}
		return ErrSessionSealed
	}

	answersKey := config.CacheKey.AttemptAnswersKey(sub.AssessmentID.String(), sub.ParticipantID)
	if err := s.rdb.HSet(ctx, answersKey, questionID.String(), answer).Err(); err != nil {
		return err
	}
	s.rdb.Expire(ctx, answersKey, time.Duration(assessment.DurationMinutes)*time.Minute+time.Hour)

	job, err := json.Marshal(model.PersistAnswerJob{
		SubmissionID: submissionID,
		QuestionID:   questionID,
		Answer:       answer,
		SavedAt:      now,
	})
	if err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		s.log.Warn().Err(err).Str("submission_id", submissionID.String()).Msg("Queue answer persistence failed")
	}
	return nil
}

// RecordIntegrityEvent queues an integrity signal for batch persistence.
func (s *AttemptService) RecordIntegrityEvent(ctx context.Context, submissionID uuid.UUID, kind model.IntegrityKind, detail string) {
	job, err := json.Marshal(model.IntegrityJob{
		SubmissionID: submissionID,
		Kind:         kind,
		Detail:       detail,
		OccurredAt:   s.clk.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal integrity job failed")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistIntegrityQueue, job).Err(); err != nil {
		s.log.Warn().Err(err).Str("submission_id", submissionID.String()).Msg("Queue integrity event failed")
	}
}

// GetAttemptState returns the participant's current view of a running
// attempt: buffered answers plus the authoritative remaining time.
// Remaining time is recomputed from the start anchor on every call, so
// it stays correct across refreshes and client clock drift.
func (s *AttemptService) GetAttemptState(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.AttemptState, error) {
	sub, err := s.submissions.GetByAssessmentAndParticipant(ctx, assessmentID, participantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	startedAt := sub.StartedAt
	startKey := config.CacheKey.AttemptStartKey(assessmentID.String(), participantID)
	if raw, err := s.rdb.Get(ctx, startKey).Result(); err == nil {
		if anchored, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			startedAt = anchored
		}
	}

	deadline := AttemptDeadline(assessment, startedAt)
	remaining := deadline.Sub(s.clk.Now()).Seconds()
	if remaining < 0 || sub.Status != model.SubmissionStatusInProgress {
		remaining = 0
	}

	answersKey := config.CacheKey.AttemptAnswersKey(assessmentID.String(), participantID)
	answers, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Read buffered answers failed")
		answers = map[string]string{}
	}
	if len(answers) == 0 && len(sub.Answers) > 0 {
		answers = make(map[string]string, len(sub.Answers))
		for qid, ans := range sub.Answers {
			answers[qid.String()] = ans
		}
	}

	return &model.AttemptState{
		AssessmentID:     assessmentID,
		SubmissionID:     sub.ID,
		Status:           sub.Status,
		AutosavedAnswers: answers,
		RemainingSeconds: remaining,
		Deadline:         deadline,
	}, nil
}

// Seal closes an attempt. The transition fires at most once no matter
// how many triggers race (manual submit, timeout, integrity violation,
// disconnect); later calls and losers of the race get the settled
// submission back with sealed=false and no error.
//
// When the store is unreachable the seal request is parked on a Redis
// queue for the seal worker, so a participant's submit is never lost to
// a transient outage.
func (s *AttemptService) Seal(ctx context.Context, submissionID uuid.UUID, reason model.SealReason) (*model.Submission, bool, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		s.parkSeal(ctx, submissionID, reason)
		return nil, false, ErrStoreUnavailable
	}
	if sub.Status != model.SubmissionStatusInProgress {
		return sub, false, nil
	}

	assessment, err := s.assessments.GetByID(ctx, sub.AssessmentID)
	if err != nil {
		s.parkSeal(ctx, submissionID, reason)
		return nil, false, ErrStoreUnavailable
	}

	answers := s.collectAnswers(ctx, sub)
	snapshot, err := s.assessments.ListQuestions(ctx, sub.AssessmentID)
	if err != nil {
		s.parkSeal(ctx, submissionID, reason)
		return nil, false, ErrStoreUnavailable
	}

	submittedAt := s.clk.Now()
	if deadline := AttemptDeadline(assessment, sub.StartedAt); submittedAt.After(deadline) {
		// A late-arriving timeout records the deadline, not the sweep time.
		submittedAt = deadline
	}

	sealed, fired, err := s.submissions.Seal(ctx, submissionID, reason, answers, snapshot, submittedAt)
	if err != nil {
		s.parkSeal(ctx, submissionID, reason)
		return nil, false, ErrStoreUnavailable
	}
	if !fired {
		return sealed, false, nil
	}

	s.log.Info().
		Str("submission_id", submissionID.String()).
		Str("reason", string(reason)).
		Msg("Attempt sealed")

	s.notify.Notify(ctx, notifier.Event{
		Type:          notifier.EventAttemptSealed,
		AssessmentID:  sub.AssessmentID,
		SubmissionID:  &sub.ID,
		ParticipantID: &sub.ParticipantID,
		Reason:        string(reason),
	})

	s.cleanupAttemptCache(ctx, sub)

	if assessment.GradingMode == model.GradingModeAuto {
		if err := s.gradeSealed(ctx, assessment, sealed); err != nil {
			s.log.Error().Err(err).Str("submission_id", submissionID.String()).Msg("Auto grading after seal failed")
		} else {
			sealed, err = s.submissions.GetByID(ctx, submissionID)
			if err != nil {
				return nil, false, err
			}
		}
	}
	return sealed, true, nil
}

// collectAnswers merges the Redis buffer over whatever the autosave
// worker already flushed to the row. The buffer wins per question; it
// is never older than the flushed copy.
func (s *AttemptService) collectAnswers(ctx context.Context, sub *model.Submission) map[uuid.UUID]string {
	answers := make(map[uuid.UUID]string, len(sub.Answers))
	for qid, ans := range sub.Answers {
		answers[qid] = ans
	}

	answersKey := config.CacheKey.AttemptAnswersKey(sub.AssessmentID.String(), sub.ParticipantID)
	buffered, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Read buffered answers for seal failed")
		return answers
	}
	for rawQID, ans := range buffered {
		qid, err := uuid.Parse(rawQID)
		if err != nil {
			continue
		}
		answers[qid] = ans
	}
	return answers
}

func (s *AttemptService) gradeSealed(ctx context.Context, a *model.Assessment, sub *model.Submission) error {
	res := grading.Grade(a.GradingMode, a.TotalPoints, sub)
	if err := s.submissions.ApplyGrading(ctx, sub.ID, res.Status, res.AutoScore, res.TotalScore, res.Percentage); err != nil {
		return err
	}

	if res.Status.Terminal() {
		s.notify.Notify(ctx, notifier.Event{
			Type:          notifier.EventGradingCompleted,
			AssessmentID:  a.ID,
			SubmissionID:  &sub.ID,
			ParticipantID: &sub.ParticipantID,
		})
	}
	return nil
}

func (s *AttemptService) parkSeal(ctx context.Context, submissionID uuid.UUID, reason model.SealReason) {
	job, err := json.Marshal(model.SealJob{
		SubmissionID: submissionID,
		Reason:       reason,
		RequestedAt:  s.clk.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Marshal seal job failed")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.SealFallbackQueue, job).Err(); err != nil {
		s.log.Error().Err(err).Str("submission_id", submissionID.String()).Msg("Park seal job failed")
	}
}

func (s *AttemptService) cleanupAttemptCache(ctx context.Context, sub *model.Submission) {
	s.rdb.Del(ctx,
		config.CacheKey.AttemptAnswersKey(sub.AssessmentID.String(), sub.ParticipantID),
		config.CacheKey.AttemptStartKey(sub.AssessmentID.String(), sub.ParticipantID),
	)
}

// GetResult returns a participant's own graded result, gated behind the
// instructor's results_published flag.
func (s *AttemptService) GetResult(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Submission, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !assessment.ResultsPublished {
		return nil, ErrResultsNotReleased
	}

	sub, err := s.submissions.GetByAssessmentAndParticipant(ctx, assessmentID, participantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}
