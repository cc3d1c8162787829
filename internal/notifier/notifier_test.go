package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classhall/assess-backend/internal/config"
)

func TestNotifyPublishesToAssessmentChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	assessmentID := uuid.New()
	submissionID := uuid.New()

	pubsub := rdb.Subscribe(ctx, config.CacheKey.EventsChannel(assessmentID.String()))
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(rdb, zerolog.Nop())
	n.Notify(ctx, Event{
		Type:         EventAttemptSealed,
		AssessmentID: assessmentID,
		SubmissionID: &submissionID,
		Reason:       "TIMEOUT",
	})

	select {
	case msg := <-pubsub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		require.Equal(t, EventAttemptSealed, got.Type)
		require.Equal(t, assessmentID, got.AssessmentID)
		require.NotNil(t, got.SubmissionID)
		require.Equal(t, submissionID, *got.SubmissionID)
		require.Equal(t, "TIMEOUT", got.Reason)
		require.False(t, got.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
