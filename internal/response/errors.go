package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden             ErrCode = "FORBIDDEN"
	ErrParticipantAccessOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrInstructorAccessOnly  ErrCode = "INSTRUCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Attempts ──────────────────────────────────────────────────────
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrWindowNotOpen    ErrCode = "WINDOW_NOT_OPEN"
	ErrWindowExpired    ErrCode = "WINDOW_EXPIRED"
	ErrSessionSealed    ErrCode = "SESSION_SEALED"

	// ─── Grading & results ─────────────────────────────────────────────
	ErrIncompleteGrading  ErrCode = "INCOMPLETE_GRADING"
	ErrInvalidManualScore ErrCode = "INVALID_MANUAL_SCORE"
	ErrResultsNotReleased ErrCode = "RESULTS_NOT_RELEASED"

	// ─── Assessment lifecycle ──────────────────────────────────────────
	ErrAssessmentNotDraft ErrCode = "ASSESSMENT_NOT_DRAFT"
	ErrNoQuestions        ErrCode = "NO_QUESTIONS"
	ErrNotAuthor          ErrCode = "NOT_ASSESSMENT_AUTHOR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStoreUnavailable ErrCode = "STORE_UNAVAILABLE"
	ErrInternal         ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrParticipantAccessOnly:
		return "This resource is restricted to participants."
	case ErrInstructorAccessOnly:
		return "This resource is restricted to instructors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Attempts ──────────────────────────────────────────────────────
	case ErrAlreadySubmitted:
		return "An attempt already exists for this assessment."
	case ErrWindowNotOpen:
		return "This assessment is not open yet."
	case ErrWindowExpired:
		return "The assessment window has closed."
	case ErrSessionSealed:
		return "This attempt has been sealed; answers can no longer change."

	// ─── Grading & results ─────────────────────────────────────────────
	case ErrIncompleteGrading:
		return "Not every submission has been fully graded yet."
	case ErrInvalidManualScore:
		return "A manual score must be between zero and the question's points."
	case ErrResultsNotReleased:
		return "Results have not been published for this assessment."

	// ─── Assessment lifecycle ──────────────────────────────────────────
	case ErrAssessmentNotDraft:
		return "This assessment is not in DRAFT status."
	case ErrNoQuestions:
		return "This assessment has no questions."
	case ErrNotAuthor:
		return "You are not the author of this assessment."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrStoreUnavailable:
		return "The data store is temporarily unavailable. Please retry."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
