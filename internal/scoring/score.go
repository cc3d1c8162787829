// Package scoring holds the pure per-question scoring rules. Given a
// question and the submitted value, it decides correctness and points
// with no state and no I/O.
package scoring

import (
	"strconv"
	"strings"

	"github.com/classhall/assess-backend/internal/model"
)

// Verdict is the outcome of scoring one question.
type Verdict int

const (
	// VerdictIncorrect means the answer was wrong, malformed or absent.
	VerdictIncorrect Verdict = iota
	// VerdictCorrect means the answer matched the key.
	VerdictCorrect
	// VerdictUnknown means correctness cannot be decided automatically;
	// points must come from a manual score.
	VerdictUnknown
)

// Score applies the scoring rule for q to the submitted value.
// present is false when the participant never answered the question.
// A missing or malformed value is an automatic incorrect/zero, never an
// error; short-answer questions always return VerdictUnknown so that no
// points are silently assigned without human judgment.
func Score(q model.Question, submitted string, present bool) (Verdict, int) {
	if q.Type == model.QuestionTypeShortAnswer {
		return VerdictUnknown, 0
	}

	if !present {
		return VerdictIncorrect, 0
	}

	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		if q.CorrectChoice == nil {
			return VerdictIncorrect, 0
		}
		idx, err := strconv.Atoi(strings.TrimSpace(submitted))
		if err != nil || idx != *q.CorrectChoice {
			return VerdictIncorrect, 0
		}
		return VerdictCorrect, q.Points

	case model.QuestionTypeTrueFalse:
		if q.CorrectBool == nil {
			return VerdictIncorrect, 0
		}
		// Compare after case-insensitive normalization to the canonical
		// "true"/"false"; any other input counts as incorrect.
		var val bool
		switch strings.ToLower(strings.TrimSpace(submitted)) {
		case "true":
			val = true
		case "false":
			val = false
		default:
			return VerdictIncorrect, 0
		}
		if val != *q.CorrectBool {
			return VerdictIncorrect, 0
		}
		return VerdictCorrect, q.Points
	}

	return VerdictIncorrect, 0
}
