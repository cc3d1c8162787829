package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classhall/assess-backend/internal/model"
)

// AssessmentRepository handles assessment and question data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

const assessmentColumns = `id, title, group_label, author_id, grading_mode, status,
	results_published, scheduled_start, duration_minutes, start_date, end_date,
	total_points, created_at, updated_at`

func scanAssessment(row pgx.Row) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := row.Scan(
		&a.ID, &a.Title, &a.GroupLabel, &a.AuthorID, &a.GradingMode, &a.Status,
		&a.ResultsPublished, &a.ScheduledStart, &a.DurationMinutes, &a.StartDate,
		&a.EndDate, &a.TotalPoints, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessments
		   (title, group_label, author_id, grading_mode, status,
		    scheduled_start, duration_minutes, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.GroupLabel, a.AuthorID, a.GradingMode, a.Status,
		a.ScheduledStart, a.DurationMinutes, a.StartDate, a.EndDate,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID retrieves an assessment by its UUID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	return scanAssessment(r.pool.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id))
}

// Update modifies a draft assessment's editable fields.
func (r *AssessmentRepository) Update(ctx context.Context, a *model.Assessment) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessments
		 SET title = $1, group_label = $2, grading_mode = $3,
		     scheduled_start = $4, duration_minutes = $5,
		     start_date = $6, end_date = $7, updated_at = NOW()
		 WHERE id = $8`,
		a.Title, a.GroupLabel, a.GradingMode,
		a.ScheduledStart, a.DurationMinutes, a.StartDate, a.EndDate, a.ID)
	return err
}

// UpdateStatus sets the assessment status unconditionally.
func (r *AssessmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssessmentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessments SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// UpdateStatusIf moves status from one value to another atomically.
// Returns false when the assessment was no longer in the expected
// status, which makes the lifecycle sweep idempotent under races.
func (r *AssessmentRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.AssessmentStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessments SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetResultsPublished flips the instructor-controlled results gate.
func (r *AssessmentRepository) SetResultsPublished(ctx context.Context, id uuid.UUID, published bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessments SET results_published = $1, updated_at = NOW() WHERE id = $2`,
		published, id)
	return err
}

// Delete removes an assessment. Questions and submissions go with it
// via ON DELETE CASCADE.
func (r *AssessmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	return err
}

// ListByAuthorPaginated retrieves assessments, optionally filtered by author.
// authorID of 0 lists all (instructor-admin view).
func (r *AssessmentRepository) ListByAuthorPaginated(ctx context.Context, authorID, limit, offset int) ([]model.Assessment, int, error) {
	baseQuery := ` FROM assessments`
	args := []any{}
	if authorID != 0 {
		args = append(args, authorID)
		baseQuery += ` WHERE author_id = $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + assessmentColumns + baseQuery +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, total, rows.Err()
}

// ListByStatuses retrieves assessments in any of the given statuses.
// Used by the lifecycle sweep.
func (r *AssessmentRepository) ListByStatuses(ctx context.Context, statuses ...model.AssessmentStatus) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE status = ANY($1)`,
		statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, rows.Err()
}

// ListQuestions retrieves an assessment's questions in display order.
func (r *AssessmentRepository) ListQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, type, prompt, options, correct_choice, correct_bool, points, order_num
		 FROM questions
		 WHERE assessment_id = $1
		 ORDER BY order_num ASC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.AssessmentID, &q.Type, &q.Prompt, &options,
			&q.CorrectChoice, &q.CorrectBool, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options for question %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceQuestions swaps out the full question list in one transaction
// and keeps total_points consistent with the new list.
func (r *AssessmentRepository) ReplaceQuestions(ctx context.Context, assessmentID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE assessment_id = $1`, assessmentID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	totalPoints := 0
	for i := range questions {
		q := &questions[i]
		totalPoints += q.Points

		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}

		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (assessment_id, type, prompt, options, correct_choice, correct_bool, points, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			assessmentID, q.Type, q.Prompt, options, q.CorrectChoice, q.CorrectBool, q.Points, q.OrderNum,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		q.AssessmentID = assessmentID
	}

	if _, err := tx.Exec(ctx,
		`UPDATE assessments SET total_points = $1, updated_at = NOW() WHERE id = $2`,
		totalPoints, assessmentID); err != nil {
		return fmt.Errorf("update total points: %w", err)
	}

	return tx.Commit(ctx)
}
