package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/classhall/assess-backend/internal/response"
	"github.com/classhall/assess-backend/internal/service"
)

// failDomain maps a service error onto the response envelope. Unknown
// errors become a 500 without leaking internals.
func failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotAuthor)
	case errors.Is(err, service.ErrNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrAssessmentNotDraft)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, service.ErrInvalidQuestion):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrValidation)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, service.ErrWindowNotOpen):
		response.Fail(c, http.StatusForbidden, response.ErrWindowNotOpen)
	case errors.Is(err, service.ErrWindowExpired):
		response.Fail(c, http.StatusGone, response.ErrWindowExpired)
	case errors.Is(err, service.ErrSessionSealed):
		response.Fail(c, http.StatusConflict, response.ErrSessionSealed)
	case errors.Is(err, service.ErrIncompleteGrading):
		response.Fail(c, http.StatusConflict, response.ErrIncompleteGrading)
	case errors.Is(err, service.ErrInvalidManualScore):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidManualScore)
	case errors.Is(err, service.ErrResultsNotReleased):
		response.Fail(c, http.StatusForbidden, response.ErrResultsNotReleased)
	case errors.Is(err, service.ErrStoreUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parsePagination reads ?page= and ?per_page= with clamped defaults.
func parsePagination(c *gin.Context) (page, perPage, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, (page - 1) * perPage
}

func buildPagination(page, perPage, total int) *response.Pagination {
	totalPages := 0
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
