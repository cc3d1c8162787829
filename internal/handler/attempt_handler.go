package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/middleware"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/response"
	"github.com/classhall/assess-backend/internal/service"
)

// AttemptHandler exposes the participant-facing attempt endpoints. The
// WebSocket stream is the primary surface during an attempt; these REST
// endpoints cover starting, state recovery after a refresh, submitting
// without a socket, and reading the published result.
type AttemptHandler struct {
	attempts *service.AttemptService
	metrics  *service.MetricsService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService, metrics *service.MetricsService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		metrics:  metrics,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

func participantID(c *gin.Context) (int, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, false
	}
	return claims.UserID, true
}

// Start godoc
// POST /api/v1/participant/assessments/:assessment_id/attempt
// Opens the attempt and returns the paper. A repeat call returns the
// existing submission id inside an ALREADY_SUBMITTED error body.
func (h *AttemptHandler) Start(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	sub, paper, err := h.attempts.StartAttempt(c.Request.Context(), id, pid)
	if err != nil {
		if err == service.ErrAlreadySubmitted && sub != nil {
			c.JSON(http.StatusConflict, response.Response{
				Data: gin.H{"submission_id": sub.ID, "status": sub.Status},
				Error: &response.ErrorBody{
					Code:    response.ErrAlreadySubmitted,
					Message: response.GetMessage(response.ErrAlreadySubmitted),
				},
			})
			return
		}
		failDomain(c, err)
		return
	}

	h.metrics.AttemptStarted()
	response.Success(c, http.StatusCreated, gin.H{
		"submission_id": sub.ID,
		"started_at":    sub.StartedAt,
		"paper":         paper,
	})
}

// Paper godoc
// GET /api/v1/participant/assessments/:assessment_id/paper
// Serves the cached answer-free paper while the attempt is running.
func (h *AttemptHandler) Paper(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	paper, err := h.attempts.GetPaperForParticipant(c.Request.Context(), id, pid)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// State godoc
// GET /api/v1/participant/assessments/:assessment_id/attempt
// Returns buffered answers and the authoritative remaining time.
func (h *AttemptHandler) State(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	state, err := h.attempts.GetAttemptState(c.Request.Context(), id, pid)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// Submit godoc
// POST /api/v1/participant/assessments/:assessment_id/attempt/submit
// REST fallback for clients without a live WebSocket.
func (h *AttemptHandler) Submit(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	sub, err := h.attempts.GetAttemptState(c.Request.Context(), id, pid)
	if err != nil {
		failDomain(c, err)
		return
	}

	sealed, fired, err := h.attempts.Seal(c.Request.Context(), sub.SubmissionID, model.SealReasonManual)
	if err != nil {
		failDomain(c, err)
		return
	}
	if fired {
		h.metrics.AttemptSealed(model.SealReasonManual)
	}

	response.Success(c, http.StatusOK, gin.H{
		"submission_id": sealed.ID,
		"status":        sealed.Status,
		"submitted_at":  sealed.SubmittedAt,
	})
}

// Result godoc
// GET /api/v1/participant/assessments/:assessment_id/result
// Gated behind the instructor's results_published flag.
func (h *AttemptHandler) Result(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	sub, err := h.attempts.GetResult(c.Request.Context(), id, pid)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"submission_id": sub.ID,
		"status":        sub.Status,
		"auto_score":    sub.AutoScore,
		"total_score":   sub.TotalScore,
		"percentage":    sub.Percentage,
		"feedback":      sub.Feedback,
		"submitted_at":  sub.SubmittedAt,
	})
}
