package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/service"
)

// SealWorker replays seal requests that could not reach the store at
// submit time. The seal transition itself fires at most once, so
// replaying an already-settled job is a harmless no-op.
type SealWorker struct {
	attempts      service.AttemptSealer
	rdb           *redis.Client
	retryInterval time.Duration
	log           zerolog.Logger
}

// NewSealWorker creates a new SealWorker.
func NewSealWorker(attempts service.AttemptSealer, rdb *redis.Client, retryInterval time.Duration, log zerolog.Logger) *SealWorker {
	return &SealWorker{
		attempts:      attempts,
		rdb:           rdb,
		retryInterval: retryInterval,
		log:           log.With().Str("component", "seal_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SealWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SealWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, pollTimeout, config.WorkerKey.SealFallbackQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(3 * time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var job model.SealJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed job")
		return
	}

	_, fired, err := w.attempts.Seal(ctx, job.SubmissionID, job.Reason)
	switch {
	case err == nil:
		if fired {
			w.log.Info().
				Str("submission_id", job.SubmissionID.String()).
				Str("reason", string(job.Reason)).
				Msg("Parked seal replayed")
		}
	case errors.Is(err, service.ErrStoreUnavailable):
		// The seal service re-parked the job itself; back off before the
		// next pull so a dead store is not hammered.
		w.log.Warn().
			Str("submission_id", job.SubmissionID.String()).
			Msg("Store still unavailable, backing off")
		time.Sleep(w.retryInterval)
	case errors.Is(err, service.ErrNotFound):
		w.log.Error().
			Str("submission_id", job.SubmissionID.String()).
			Msg("Dropping seal job for unknown submission")
	default:
		w.log.Error().Err(err).
			Str("submission_id", job.SubmissionID.String()).
			Msg("Seal replay failed, requeueing")
		w.rdb.RPush(ctx, config.WorkerKey.SealFallbackQueue, result[1])
		time.Sleep(w.retryInterval)
	}
}
