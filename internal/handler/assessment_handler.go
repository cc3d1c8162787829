package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/middleware"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/response"
	"github.com/classhall/assess-backend/internal/service"
	"github.com/classhall/assess-backend/internal/validator"
)

// AssessmentHandler exposes the instructor-facing assessment endpoints.
type AssessmentHandler struct {
	assessments *service.AssessmentService
	log         zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessments *service.AssessmentService, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		log:         log.With().Str("component", "assessment_handler").Logger(),
	}
}

func instructorID(c *gin.Context) (int, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, false
	}
	return claims.UserID, true
}

func assessmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// Create godoc
// POST /api/v1/instructor/assessments
func (h *AssessmentHandler) Create(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}

	var req model.CreateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assessment, err := h.assessments.Create(c.Request.Context(), authorID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusCreated, assessment)
}

// List godoc
// GET /api/v1/instructor/assessments
func (h *AssessmentHandler) List(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	page, perPage, offset := parsePagination(c)

	assessments, total, err := h.assessments.List(c.Request.Context(), authorID, perPage, offset)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, assessments, buildPagination(page, perPage, total))
}

// Get godoc
// GET /api/v1/instructor/assessments/:assessment_id
func (h *AssessmentHandler) Get(c *gin.Context) {
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
	response.Success(c, http.StatusOK, assessment)
}

// Update godoc
// PUT /api/v1/instructor/assessments/:assessment_id
func (h *AssessmentHandler) Update(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	var req model.UpdateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assessment, err := h.assessments.Update(c.Request.Context(), id, authorID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, assessment)
}

// Delete godoc
// DELETE /api/v1/instructor/assessments/:assessment_id
func (h *AssessmentHandler) Delete(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	if err := h.assessments.Delete(c.Request.Context(), id, authorID); err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListQuestions godoc
// GET /api/v1/instructor/assessments/:assessment_id/questions
func (h *AssessmentHandler) ListQuestions(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	questions, err := h.assessments.ListQuestions(c.Request.Context(), id, authorID)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// ReplaceQuestions godoc
// PUT /api/v1/instructor/assessments/:assessment_id/questions
func (h *AssessmentHandler) ReplaceQuestions(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.assessments.ReplaceQuestions(c.Request.Context(), id, authorID, &req)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// Publish godoc
// POST /api/v1/instructor/assessments/:assessment_id/publish
func (h *AssessmentHandler) Publish(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	assessment, err := h.assessments.Publish(c.Request.Context(), id, authorID)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, assessment)
}

// PublishResults godoc
// POST /api/v1/instructor/assessments/:assessment_id/results/publish
func (h *AssessmentHandler) PublishResults(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}

	if err := h.assessments.PublishResults(c.Request.Context(), id, authorID); err != nil {
		failDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results_published": true})
}

// ListSubmissions godoc
// GET /api/v1/instructor/assessments/:assessment_id/submissions
func (h *AssessmentHandler) ListSubmissions(c *gin.Context) {
	authorID, ok := instructorID(c)
	if !ok {
		return
	}
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	page, perPage, offset := parsePagination(c)

	submissions, total, err := h.assessments.ListSubmissions(c.Request.Context(), id, authorID, perPage, offset)
	if err != nil {
		failDomain(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, submissions, buildPagination(page, perPage, total))
}
