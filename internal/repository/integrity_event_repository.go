package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classhall/assess-backend/internal/model"
)

// IntegrityEventRepository persists focus-loss and other integrity
// signals recorded against attempts.
type IntegrityEventRepository struct {
	pool *pgxpool.Pool
}

// NewIntegrityEventRepository creates a new IntegrityEventRepository.
func NewIntegrityEventRepository(pool *pgxpool.Pool) *IntegrityEventRepository {
	return &IntegrityEventRepository{pool: pool}
}

// BulkInsert writes a batch of integrity events with COPY.
func (r *IntegrityEventRepository) BulkInsert(ctx context.Context, events []model.IntegrityEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []interface{}{
			ev.SubmissionID, ev.Kind, ev.Detail, ev.OccurredAt,
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"integrity_events"},
		[]string{"submission_id", "kind", "detail", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// ListBySubmission retrieves integrity events for one attempt in
// chronological order.
func (r *IntegrityEventRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]model.IntegrityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, submission_id, kind, detail, occurred_at
		 FROM integrity_events
		 WHERE submission_id = $1
		 ORDER BY occurred_at ASC`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.IntegrityEvent
	for rows.Next() {
		var ev model.IntegrityEvent
		if err := rows.Scan(&ev.ID, &ev.SubmissionID, &ev.Kind, &ev.Detail, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountBySubmission returns the number of integrity events on an attempt.
func (r *IntegrityEventRepository) CountBySubmission(ctx context.Context, submissionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM integrity_events WHERE submission_id = $1`,
		submissionID).Scan(&count)
	return count, err
}
