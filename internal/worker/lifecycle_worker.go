package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/service"
)

// LifecycleWorker drives the assessment status sweep on a fixed
// interval. Every transition the sweep makes is a compare-and-set, so
// overlapping runs from multiple instances never double-fire.
type LifecycleWorker struct {
	assessments *service.AssessmentService
	metrics     *service.MetricsService
	rdb         *redis.Client
	interval    time.Duration
	log         zerolog.Logger
}

// NewLifecycleWorker creates a new LifecycleWorker.
func NewLifecycleWorker(assessments *service.AssessmentService, metrics *service.MetricsService, rdb *redis.Client, interval time.Duration, log zerolog.Logger) *LifecycleWorker {
	return &LifecycleWorker{
		assessments: assessments,
		metrics:     metrics,
		rdb:         rdb,
		interval:    interval,
		log:         log.With().Str("component", "lifecycle_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *LifecycleWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// One pass right away so a restart does not wait a full interval to
	// settle overdue assessments.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
			w.observeQueues(ctx)
		}
	}
}

func (w *LifecycleWorker) sweep(ctx context.Context) {
	transitions, err := w.assessments.SweepOnce(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Sweep failed")
		return
	}
	if transitions > 0 {
		w.log.Info().Int("transitions", transitions).Msg("Sweep finished")
	}
	w.metrics.SweepTransitions(transitions)
}

func (w *LifecycleWorker) observeQueues(ctx context.Context) {
	for _, queue := range []string{
		config.WorkerKey.PersistAnswersQueue,
		config.WorkerKey.SealFallbackQueue,
		config.WorkerKey.PersistIntegrityQueue,
	} {
		depth, err := w.rdb.LLen(ctx, queue).Result()
		if err != nil {
			continue
		}
		w.metrics.SetQueueDepth(queue, depth)
	}
}
