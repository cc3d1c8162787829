// Package notifier carries fire-and-forget engine events to interested
// collaborators (messaging, announcements, live monitors) without the
// engine knowing their implementation.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/config"
)

// EventType enumerates the engine events collaborators can subscribe to.
type EventType string

const (
	EventAttemptSealed    EventType = "attempt_sealed"
	EventGradingCompleted EventType = "grading_completed"
	EventResultsPublished EventType = "results_published"
)

// Event is one engine notification.
type Event struct {
	Type          EventType  `json:"type"`
	AssessmentID  uuid.UUID  `json:"assessment_id"`
	SubmissionID  *uuid.UUID `json:"submission_id,omitempty"`
	ParticipantID *int       `json:"participant_id,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	At            time.Time  `json:"at"`
}

// Notifier delivers events without blocking the caller on subscriber
// behavior. Delivery is best-effort; failures are logged, not returned.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// RedisNotifier publishes events to a per-assessment Pub/Sub channel.
type RedisNotifier struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisNotifier creates a RedisNotifier.
func NewRedisNotifier(rdb *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb: rdb,
		log: log.With().Str("component", "notifier").Logger(),
	}
}

// Notify publishes ev to the assessment's events channel.
func (n *RedisNotifier) Notify(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Str("type", string(ev.Type)).Msg("Marshal event failed")
		return
	}

	channel := config.CacheKey.EventsChannel(ev.AssessmentID.String())
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		n.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Publish event failed")
	}
}

// Noop discards all events. Useful in tests and tooling.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}
