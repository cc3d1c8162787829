package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/repository"
)

const (
	integrityBatchSize    = 50
	integrityBatchTimeout = 2 * time.Second
	pollTimeout           = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// IntegrityWorker batches integrity signals from Redis into Postgres.
// Signals are high-volume during an active exam; COPY beats row-by-row
// inserts by an order of magnitude here.
type IntegrityWorker struct {
	events *repository.IntegrityEventRepository
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewIntegrityWorker creates a new IntegrityWorker.
func NewIntegrityWorker(events *repository.IntegrityEventRepository, rdb *redis.Client, log zerolog.Logger) *IntegrityWorker {
	return &IntegrityWorker{
		events: events,
		rdb:    rdb,
		log:    log.With().Str("component", "integrity_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *IntegrityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]model.IntegrityJob, 0, integrityBatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= integrityBatchSize || time.Since(lastFlush) >= integrityBatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlush = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, pollTimeout, config.WorkerKey.PersistIntegrityQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job model.IntegrityJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed job")
			continue
		}
		buffer = append(buffer, job)
	}
}

// flushSafe attempts the bulk insert, then falls back to one-by-one
// inserts so a single bad row cannot sink the whole batch.
func (w *IntegrityWorker) flushSafe(ctx context.Context, batch []model.IntegrityJob) {
	if err := w.events.BulkInsert(ctx, toEvents(batch)); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func toEvents(batch []model.IntegrityJob) []model.IntegrityEvent {
	events := make([]model.IntegrityEvent, 0, len(batch))
	for _, job := range batch {
		events = append(events, model.IntegrityEvent{
			SubmissionID: job.SubmissionID,
			Kind:         job.Kind,
			Detail:       job.Detail,
			OccurredAt:   job.OccurredAt,
		})
	}
	return events
}

func (w *IntegrityWorker) fallbackInsert(ctx context.Context, batch []model.IntegrityJob) {
	requeue := make([]model.IntegrityJob, 0)
	for _, job := range batch {
		if err := w.events.BulkInsert(ctx, toEvents([]model.IntegrityJob{job})); err != nil {
			w.log.Error().Err(err).Str("submission_id", job.SubmissionID.String()).Msg("Insert failed, requeueing")
			requeue = append(requeue, job)
		}
	}
	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *IntegrityWorker) requeue(ctx context.Context, items []model.IntegrityJob) {
	pipe := w.rdb.Pipeline()
	for _, job := range items {
		data, _ := json.Marshal(job)
		pipe.RPush(ctx, config.WorkerKey.PersistIntegrityQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	time.Sleep(2 * time.Second)
}

func (w *IntegrityWorker) shutdown(buffer []model.IntegrityJob) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
