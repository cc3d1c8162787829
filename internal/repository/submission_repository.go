package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classhall/assess-backend/internal/model"
)

// SubmissionRepository handles attempt/submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const submissionColumns = `id, assessment_id, participant_id, status, seal_reason,
	answers, question_snapshot, manual_scores, feedback,
	auto_score, total_score, percentage, started_at, submitted_at, created_at, updated_at`

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	s := &model.Submission{}
	var answers, snapshot, manualScores, feedback []byte

	err := row.Scan(
		&s.ID, &s.AssessmentID, &s.ParticipantID, &s.Status, &s.SealReason,
		&answers, &snapshot, &manualScores, &feedback,
		&s.AutoScore, &s.TotalScore, &s.Percentage, &s.StartedAt, &s.SubmittedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		raw []byte
		dst interface{}
	}{
		{answers, &s.Answers},
		{snapshot, &s.QuestionSnapshot},
		{manualScores, &s.ManualScores},
		{feedback, &s.Feedback},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("unmarshal submission %s: %w", s.ID, err)
		}
	}
	return s, nil
}

// Create inserts a new in-progress attempt. The unique constraint on
// (assessment_id, participant_id) makes the insert race-safe: the loser
// of a concurrent start gets pgx.ErrNoRows via ON CONFLICT DO NOTHING.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO submissions (assessment_id, participant_id, status, started_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (assessment_id, participant_id) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		s.AssessmentID, s.ParticipantID, s.Status, s.StartedAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a submission by its UUID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// GetByAssessmentAndParticipant retrieves a participant's attempt for an
// assessment, if any.
func (r *SubmissionRepository) GetByAssessmentAndParticipant(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions
		 WHERE assessment_id = $1 AND participant_id = $2`,
		assessmentID, participantID))
}

// ListByAssessment retrieves submissions for an assessment, newest first.
func (r *SubmissionRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID, limit, offset int) ([]model.Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE assessment_id = $1`,
		assessmentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions
		 WHERE assessment_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`,
		assessmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var submissions []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		submissions = append(submissions, *s)
	}
	return submissions, total, rows.Err()
}

// ListInProgressByAssessment retrieves open attempts. Used by the
// lifecycle sweep to seal stragglers after the window closes.
func (r *SubmissionRepository) ListInProgressByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions
		 WHERE assessment_id = $1 AND status = $2`,
		assessmentID, model.SubmissionStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *s)
	}
	return submissions, rows.Err()
}

// HasAny reports whether any attempt exists for the assessment.
func (r *SubmissionRepository) HasAny(ctx context.Context, assessmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE assessment_id = $1)`,
		assessmentID).Scan(&exists)
	return exists, err
}

// CountNotFullyGraded counts submissions still awaiting grading work.
// Zero means results can be published.
func (r *SubmissionRepository) CountNotFullyGraded(ctx context.Context, assessmentID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions
		 WHERE assessment_id = $1 AND status NOT IN ($2, $3)`,
		assessmentID, model.SubmissionStatusAutoGraded, model.SubmissionStatusManuallyGraded).Scan(&count)
	return count, err
}

// Seal performs the single-fire transition out of IN_PROGRESS. It is a
// compare-and-set: only one caller ever observes sealed=true, everyone
// else finds the row already past IN_PROGRESS. The final answers and
// the question snapshot are frozen in the same statement.
func (r *SubmissionRepository) Seal(ctx context.Context, id uuid.UUID, reason model.SealReason, answers map[uuid.UUID]string, snapshot []model.Question, submittedAt time.Time) (*model.Submission, bool, error) {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, false, fmt.Errorf("marshal answers: %w", err)
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("marshal question snapshot: %w", err)
	}

	s, err := scanSubmission(r.pool.QueryRow(ctx,
		`UPDATE submissions
		 SET status = $1, seal_reason = $2, answers = $3, question_snapshot = $4,
		     submitted_at = $5, updated_at = NOW()
		 WHERE id = $6 AND status = $7
		 RETURNING `+submissionColumns,
		model.SubmissionStatusSubmitted, reason, answersJSON, snapshotJSON,
		submittedAt, id, model.SubmissionStatusInProgress))
	if err == nil {
		return s, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// Lost the race or already sealed earlier; return the settled row.
	s, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

// UpsertAnswer merges one autosaved answer into an open attempt's
// answers document. Sealed attempts are left untouched.
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, id uuid.UUID, questionID uuid.UUID, answer string) error {
	patch, err := json.Marshal(map[uuid.UUID]string{questionID: answer})
	if err != nil {
		return fmt.Errorf("marshal answer patch: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE submissions
		 SET answers = COALESCE(answers, '{}'::jsonb) || $1::jsonb, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		patch, id, model.SubmissionStatusInProgress)
	return err
}

// ApplyGrading persists a grading outcome onto a submission.
func (r *SubmissionRepository) ApplyGrading(ctx context.Context, id uuid.UUID, status model.SubmissionStatus, autoScore, totalScore float64, percentage int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET status = $1, auto_score = $2, total_score = $3, percentage = $4, updated_at = NOW()
		 WHERE id = $5`,
		status, autoScore, totalScore, percentage, id)
	return err
}

// SetManualScores merges instructor scores and feedback into a
// submission's documents.
func (r *SubmissionRepository) SetManualScores(ctx context.Context, id uuid.UUID, scores map[uuid.UUID]int, feedback map[uuid.UUID]string) error {
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal manual scores: %w", err)
	}
	feedbackJSON, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE submissions
		 SET manual_scores = COALESCE(manual_scores, '{}'::jsonb) || $1::jsonb,
		     feedback = COALESCE(feedback, '{}'::jsonb) || $2::jsonb,
		     updated_at = NOW()
		 WHERE id = $3`,
		scoresJSON, feedbackJSON, id)
	return err
}
