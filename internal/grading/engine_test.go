package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/classhall/assess-backend/internal/model"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func twoQuestionAuto() (model.Question, model.Question) {
	q1 := model.Question{
		ID:            uuid.New(),
		Type:          model.QuestionTypeMultipleChoice,
		Options:       []string{"a", "b", "c", "d"},
		CorrectChoice: intPtr(1),
		Points:        4,
	}
	q2 := model.Question{
		ID:          uuid.New(),
		Type:        model.QuestionTypeTrueFalse,
		CorrectBool: boolPtr(true),
		Points:      6,
	}
	return q1, q2
}

func TestGradeAutoAllCorrect(t *testing.T) {
	q1, q2 := twoQuestionAuto()
	sub := &model.Submission{
		ID:               uuid.New(),
		QuestionSnapshot: []model.Question{q1, q2},
		Answers: map[uuid.UUID]string{
			q1.ID: "1",
			q2.ID: "true",
		},
	}

	res := Grade(model.GradingModeAuto, 10, sub)
	require.Equal(t, model.SubmissionStatusAutoGraded, res.Status)
	require.Equal(t, 10.0, res.TotalScore)
	require.Equal(t, 10.0, res.AutoScore)
	require.Equal(t, 100, res.Percentage)
	require.Zero(t, res.PendingManual)
}

func TestGradeAutoAllWrong(t *testing.T) {
	q1, q2 := twoQuestionAuto()
	sub := &model.Submission{
		ID:               uuid.New(),
		QuestionSnapshot: []model.Question{q1, q2},
		Answers: map[uuid.UUID]string{
			q1.ID: "0",
			q2.ID: "false",
		},
	}

	res := Grade(model.GradingModeAuto, 10, sub)
	require.Equal(t, model.SubmissionStatusAutoGraded, res.Status)
	require.Zero(t, res.TotalScore)
	require.Zero(t, res.Percentage)
}

func TestGradeAutoWithShortAnswerStaysPartial(t *testing.T) {
	q1, _ := twoQuestionAuto()
	sa := model.Question{
		ID:     uuid.New(),
		Type:   model.QuestionTypeShortAnswer,
		Points: 5,
	}
	sub := &model.Submission{
		ID:               uuid.New(),
		QuestionSnapshot: []model.Question{q1, sa},
		Answers: map[uuid.UUID]string{
			q1.ID: "1",
			sa.ID: "a thoughtful essay",
		},
	}

	res := Grade(model.GradingModeAuto, 9, sub)
	require.Equal(t, model.SubmissionStatusPartiallyGraded, res.Status)
	require.Equal(t, 4.0, res.TotalScore, "short answer points must be excluded")
	require.Equal(t, 1, res.PendingManual)

	// Once the instructor scores the short answer, the submission is
	// fully resolved.
	sub.ManualScores = map[uuid.UUID]int{sa.ID: 5}
	res = Grade(model.GradingModeAuto, 9, sub)
	require.Equal(t, model.SubmissionStatusManuallyGraded, res.Status)
	require.Equal(t, 9.0, res.TotalScore)
	require.Equal(t, 100, res.Percentage)
	require.Zero(t, res.PendingManual)
}

func TestGradeManualModeIgnoresObjectivity(t *testing.T) {
	q1, q2 := twoQuestionAuto()
	sub := &model.Submission{
		ID:               uuid.New(),
		QuestionSnapshot: []model.Question{q1, q2},
		Answers: map[uuid.UUID]string{
			q1.ID: "1", // objectively correct selection
			q2.ID: "true",
		},
	}

	// Nothing is auto-scored in manual mode.
	res := Grade(model.GradingModeManual, 10, sub)
	require.Equal(t, model.SubmissionStatusSubmitted, res.Status)
	require.Zero(t, res.TotalScore)
	require.Equal(t, 2, res.PendingManual)

	// A manual zero on a correct selection stands: the engine never
	// overrides an explicit manual score.
	sub.ManualScores = map[uuid.UUID]int{q1.ID: 0, q2.ID: 6}
	res = Grade(model.GradingModeManual, 10, sub)
	require.Equal(t, model.SubmissionStatusManuallyGraded, res.Status)
	require.Equal(t, 6.0, res.TotalScore)
	require.Equal(t, 60, res.Percentage)
}

func TestGradeManualOverrideWinsInAutoMode(t *testing.T) {
	q1, q2 := twoQuestionAuto()
	sub := &model.Submission{
		ID:               uuid.New(),
		QuestionSnapshot: []model.Question{q1, q2},
		Answers: map[uuid.UUID]string{
			q1.ID: "1",
			q2.ID: "true",
		},
		ManualScores: map[uuid.UUID]int{q1.ID: 2},
	}

	res := Grade(model.GradingModeAuto, 10, sub)
	require.Equal(t, model.SubmissionStatusManuallyGraded, res.Status)
	require.Equal(t, 8.0, res.TotalScore)
	require.Equal(t, 6.0, res.AutoScore)
	require.Equal(t, 80, res.Percentage)
}

func TestGradeZeroTotalPoints(t *testing.T) {
	sub := &model.Submission{ID: uuid.New()}
	res := Grade(model.GradingModeAuto, 0, sub)
	require.Zero(t, res.Percentage)
	require.Equal(t, model.SubmissionStatusAutoGraded, res.Status)
}

func TestGradeIsIdempotent(t *testing.T) {
	q1, q2 := twoQuestionAuto()
	sa := model.Question{ID: uuid.New(), Type: model.QuestionTypeShortAnswer, Points: 5}
	sub := &model.Submission{
		ID:               uuid.New(),
		QuestionSnapshot: []model.Question{q1, q2, sa},
		Answers: map[uuid.UUID]string{
			q1.ID: "1",
			q2.ID: "false",
			sa.ID: "essay",
		},
		ManualScores: map[uuid.UUID]int{sa.ID: 3},
	}

	first := Grade(model.GradingModeAuto, 15, sub)
	second := Grade(model.GradingModeAuto, 15, sub)
	require.Equal(t, first, second)
}

func TestGradeMissingAnswerIsZeroNotError(t *testing.T) {
	q1, q2 := twoQuestionAuto()
	sub := &model.Submission{
		ID:               uuid.New(),
		QuestionSnapshot: []model.Question{q1, q2},
		Answers:          map[uuid.UUID]string{q2.ID: "true"},
	}

	res := Grade(model.GradingModeAuto, 10, sub)
	require.Equal(t, model.SubmissionStatusAutoGraded, res.Status)
	require.Equal(t, 6.0, res.TotalScore)
	require.Equal(t, 60, res.Percentage)
	require.False(t, *res.Questions[0].Correct)
}
