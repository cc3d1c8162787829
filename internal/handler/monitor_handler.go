package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams live attempt activity to the instructor over
// SSE: seals, grading completions, and periodic progress refreshes.
type MonitorHandler struct {
	assessments *service.AssessmentService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(assessments *service.AssessmentService, rdb *redis.Client, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		assessments: assessments,
		rdb:         rdb,
		log:         log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSSE godoc
// GET /api/v1/instructor/assessments/:assessment_id/monitor
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	assessment, err := h.assessments.Get(c.Request.Context(), id, authorID)
	if err != nil {
		failDomain(c, err)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, assessment, authorID)

	channelName := config.CacheKey.EventsChannel(id.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("assessment_id", id.String()).Msg("Instructor attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("assessment_id", id.String()).Msg("Instructor detached from live monitor SSE")
			return

		case msg := <-ch:
			// Engine events are already JSON; forward them untouched.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendRefresh(c, reqCtx, id, authorID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, ctx context.Context, assessment *model.Assessment, authorID int) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	submissions, total, err := h.assessments.ListSubmissions(fetchCtx, assessment.ID, authorID, 1000, 0)
	if err != nil {
		h.log.Warn().Err(err).Msg("Snapshot fetch failed")
		submissions = nil
	}

	inProgress, sealed, graded := countByPhase(submissions)

	participants := make([]map[string]interface{}, 0, len(submissions))
	for _, sub := range submissions {
		participants = append(participants, map[string]interface{}{
			"participant_id": sub.ParticipantID,
			"submission_id":  sub.ID,
			"status":         sub.Status,
			"started_at":     sub.StartedAt,
			"submitted_at":   sub.SubmittedAt,
			"answered_count": len(sub.Answers),
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"assessment": map[string]interface{}{
				"id":       assessment.ID,
				"title":    assessment.Title,
				"status":   assessment.Status,
				"duration": assessment.DurationMinutes,
			},
			"stats": map[string]interface{}{
				"total_attempts": total,
				"in_progress":    inProgress,
				"sealed":         sealed,
				"fully_graded":   graded,
			},
			"participants": participants,
		},
	})
	c.Writer.Flush()
}

func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, assessmentID uuid.UUID, authorID int) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	submissions, total, err := h.assessments.ListSubmissions(ctx, assessmentID, authorID, 1000, 0)
	if err != nil {
		h.log.Warn().Err(err).Msg("Refresh fetch failed")
		return
	}

	inProgress, sealed, graded := countByPhase(submissions)
	c.SSEvent("message", map[string]interface{}{
		"type":           "refresh",
		"total_attempts": total,
		"in_progress":    inProgress,
		"sealed":         sealed,
		"fully_graded":   graded,
	})
	c.Writer.Flush()
}

func countByPhase(submissions []model.Submission) (inProgress, sealed, graded int) {
	for _, sub := range submissions {
		switch {
		case sub.Status == model.SubmissionStatusInProgress:
			inProgress++
		case sub.Status.Terminal():
			graded++
		default:
			sealed++
		}
	}
	return inProgress, sealed, graded
}
