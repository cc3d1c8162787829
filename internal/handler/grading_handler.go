package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/response"
	"github.com/classhall/assess-backend/internal/service"
	"github.com/classhall/assess-backend/internal/validator"
)

// GradingHandler exposes the instructor-facing grading endpoints.
type GradingHandler struct {
	grading *service.GradingService
	metrics *service.MetricsService
	log     zerolog.Logger
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(grading *service.GradingService, metrics *service.MetricsService, log zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading: grading,
		metrics: metrics,
		log:     log.With().Str("component", "grading_handler").Logger(),
	}
}

func submissionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("submission_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// GradeAll godoc
// POST /api/v1/instructor/assessments/:assessment_id/grade
// Regrades every sealed submission; per-submission failures are
// reported inline, never as a failure of the whole run.
func (h *GradingHandler) GradeAll(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	outcomes, err := h.grading.GradeAll(c.Request.Context(), id, authorID)
	if err != nil {
		failDomain(c, err)
		return
	}

	for _, out := range outcomes {
		if out.Result != nil {
			h.metrics.SubmissionGraded(out.Result.Status)
		}
	}
	response.Success(c, http.StatusOK, outcomes)
}

// GradeOne godoc
// POST /api/v1/instructor/submissions/:submission_id/grade
func (h *GradingHandler) GradeOne(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := submissionID(c)
	if !ok {
		return
	}

	result, err := h.grading.GradeOne(c.Request.Context(), id, authorID)
	if err != nil {
		failDomain(c, err)
		return
	}
	h.metrics.SubmissionGraded(result.Status)
	response.Success(c, http.StatusOK, result)
}

// ListIntegrityEvents godoc
// GET /api/v1/instructor/submissions/:submission_id/integrity
func (h *GradingHandler) ListIntegrityEvents(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := submissionID(c)
	if !ok {
		return
	}

	events, err := h.grading.ListIntegrityEvents(c.Request.Context(), id, authorID)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, events)
}

// SetManualScores godoc
// PUT /api/v1/instructor/submissions/:submission_id/manual-scores
func (h *GradingHandler) SetManualScores(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := submissionID(c)
	if !ok {
		return
	}

	var req model.ManualScoresRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.grading.SetManualScores(c.Request.Context(), id, authorID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}
	h.metrics.SubmissionGraded(result.Status)
	response.Success(c, http.StatusOK, result)
}
