package service

import "errors"

// Domain errors surfaced to callers as actionable conditions. Handlers
// map them to typed response codes; nothing here is fatal to the process.
var (
	ErrAlreadySubmitted   = errors.New("an attempt already exists for this participant")
	ErrWindowNotOpen      = errors.New("assessment window has not opened yet")
	ErrWindowExpired      = errors.New("assessment window has expired")
	ErrSessionSealed      = errors.New("attempt is sealed, answers are immutable")
	ErrIncompleteGrading  = errors.New("at least one submission is not fully graded")
	ErrStoreUnavailable   = errors.New("store temporarily unavailable")
	ErrInvalidManualScore = errors.New("manual score outside the question's point range")
	ErrResultsNotReleased = errors.New("results have not been published")
	ErrNotFound           = errors.New("not found")
	ErrNotAuthor          = errors.New("not the author of this assessment")
	ErrNotDraft           = errors.New("assessment status is not DRAFT")
	ErrNoQuestions        = errors.New("assessment has no questions, cannot publish")
	ErrInvalidQuestion    = errors.New("question definition invalid")
)
