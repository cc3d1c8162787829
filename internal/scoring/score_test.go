package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classhall/assess-backend/internal/model"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestScoreMultipleChoice(t *testing.T) {
	q := model.Question{
		Type:          model.QuestionTypeMultipleChoice,
		Options:       []string{"a", "b", "c", "d"},
		CorrectChoice: intPtr(2),
		Points:        4,
	}

	verdict, pts := Score(q, "2", true)
	require.Equal(t, VerdictCorrect, verdict)
	require.Equal(t, 4, pts)

	verdict, pts = Score(q, "1", true)
	require.Equal(t, VerdictIncorrect, verdict)
	require.Zero(t, pts)

	// Malformed index is incorrect, not an error.
	verdict, pts = Score(q, "banana", true)
	require.Equal(t, VerdictIncorrect, verdict)
	require.Zero(t, pts)

	// Missing answer is an automatic zero.
	verdict, pts = Score(q, "", false)
	require.Equal(t, VerdictIncorrect, verdict)
	require.Zero(t, pts)
}

func TestScoreTrueFalse(t *testing.T) {
	q := model.Question{
		Type:        model.QuestionTypeTrueFalse,
		CorrectBool: boolPtr(true),
		Points:      6,
	}

	for _, submitted := range []string{"true", "TRUE", " True "} {
		verdict, pts := Score(q, submitted, true)
		require.Equal(t, VerdictCorrect, verdict, "submitted %q", submitted)
		require.Equal(t, 6, pts)
	}

	verdict, pts := Score(q, "false", true)
	require.Equal(t, VerdictIncorrect, verdict)
	require.Zero(t, pts)

	// Anything outside the canonical strings is incorrect.
	verdict, pts = Score(q, "yes", true)
	require.Equal(t, VerdictIncorrect, verdict)
	require.Zero(t, pts)
}

func TestScoreShortAnswerNeverAuto(t *testing.T) {
	q := model.Question{
		Type:   model.QuestionTypeShortAnswer,
		Points: 5,
	}

	verdict, pts := Score(q, "some essay text", true)
	require.Equal(t, VerdictUnknown, verdict)
	require.Zero(t, pts)

	verdict, pts = Score(q, "", false)
	require.Equal(t, VerdictUnknown, verdict)
	require.Zero(t, pts)
}

func TestScoreBrokenKeyIsIncorrect(t *testing.T) {
	// A question with a missing answer key must not award points.
	verdict, pts := Score(model.Question{Type: model.QuestionTypeMultipleChoice, Points: 3}, "0", true)
	require.Equal(t, VerdictIncorrect, verdict)
	require.Zero(t, pts)

	verdict, pts = Score(model.Question{Type: model.QuestionTypeTrueFalse, Points: 3}, "true", true)
	require.Equal(t, VerdictIncorrect, verdict)
	require.Zero(t, pts)
}
