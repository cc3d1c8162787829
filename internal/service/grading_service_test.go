package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/classhall/assess-backend/internal/model"
)

type gradingFixture struct {
	svc         *GradingService
	assessments *stubAssessmentStore
	submissions *stubSubmissionStore
	events      *stubIntegrityStore
	notify      *recordingNotifier
}

func newGradingFixture(t *testing.T) *gradingFixture {
	t.Helper()
	assessments := newStubAssessmentStore()
	submissions := newStubSubmissionStore()
	events := newStubIntegrityStore()
	notify := &recordingNotifier{}
	return &gradingFixture{
		svc:         NewGradingService(assessments, submissions, events, notify, testLogger()),
		assessments: assessments,
		submissions: submissions,
		events:      events,
		notify:      notify,
	}
}

func sealedSubmission(fx *gradingFixture, a *model.Assessment, participantID int, answers map[uuid.UUID]string) *model.Submission {
	questions := fx.assessments.questions[a.ID]
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	sub := &model.Submission{
		AssessmentID:     a.ID,
		ParticipantID:    participantID,
		Status:           model.SubmissionStatusSubmitted,
		Answers:          answers,
		QuestionSnapshot: questions,
		StartedAt:        now.Add(-30 * time.Minute),
		SubmittedAt:      &now,
	}
	fx.submissions.put(sub)
	return sub
}

func mixedAssessment(fx *gradingFixture) (*model.Assessment, []model.Question) {
	questions := []model.Question{
		{ID: uuid.New(), Type: model.QuestionTypeMultipleChoice, Prompt: "Pick",
			Options: []string{"a", "b", "c"}, CorrectChoice: intPtr(2), Points: 4, OrderNum: 1},
		{ID: uuid.New(), Type: model.QuestionTypeShortAnswer, Prompt: "Explain", Points: 6, OrderNum: 2},
	}
	a := &model.Assessment{
		Title:       "Mixed",
		AuthorID:    7,
		GradingMode: model.GradingModeAuto,
		Status:      model.AssessmentStatusCompleted,
		TotalPoints: 10,
	}
	fx.assessments.put(a, questions...)
	return a, questions
}

func TestGradeOneLeavesShortAnswerPending(t *testing.T) {
	fx := newGradingFixture(t)
	a, questions := mixedAssessment(fx)
	sub := sealedSubmission(fx, a, 1, map[uuid.UUID]string{questions[0].ID: "2"})

	res, err := fx.svc.GradeOne(context.Background(), sub.ID, 7)
	require.NoError(t, err)
	require.Equal(t, model.SubmissionStatusPartiallyGraded, res.Status)
	require.Equal(t, 4.0, res.AutoScore)
	require.Equal(t, 1, res.PendingManual)
}

func TestGradeOneRefusesInProgress(t *testing.T) {
	fx := newGradingFixture(t)
	a, _ := mixedAssessment(fx)
	sub := &model.Submission{
		AssessmentID:  a.ID,
		ParticipantID: 1,
		Status:        model.SubmissionStatusInProgress,
	}
	fx.submissions.put(sub)

	_, err := fx.svc.GradeOne(context.Background(), sub.ID, 7)
	require.Error(t, err)
}

func TestSetManualScoresResolvesAndOverrides(t *testing.T) {
	fx := newGradingFixture(t)
	a, questions := mixedAssessment(fx)
	sub := sealedSubmission(fx, a, 1, map[uuid.UUID]string{questions[0].ID: "2"})

	res, err := fx.svc.SetManualScores(context.Background(), sub.ID, 7, &model.ManualScoresRequest{
		Scores: []model.ManualScoreEntry{
			{QuestionID: questions[1].ID, Points: 5, Feedback: "solid"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, model.SubmissionStatusManuallyGraded, res.Status)
	require.Equal(t, 9.0, res.TotalScore)
	require.Equal(t, 90, res.Percentage)

	// The instructor can override the automatic verdict; the manual
	// score stands even though the answer was objectively correct.
	res, err = fx.svc.SetManualScores(context.Background(), sub.ID, 7, &model.ManualScoresRequest{
		Scores: []model.ManualScoreEntry{
			{QuestionID: questions[0].ID, Points: 0},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 5.0, res.TotalScore)
	require.Equal(t, 50, res.Percentage)
}

func TestSetManualScoresValidatesRange(t *testing.T) {
	fx := newGradingFixture(t)
	a, questions := mixedAssessment(fx)
	sub := sealedSubmission(fx, a, 1, nil)

	_, err := fx.svc.SetManualScores(context.Background(), sub.ID, 7, &model.ManualScoresRequest{
		Scores: []model.ManualScoreEntry{{QuestionID: questions[1].ID, Points: 7}},
	})
	require.ErrorIs(t, err, ErrInvalidManualScore)

	_, err = fx.svc.SetManualScores(context.Background(), sub.ID, 7, &model.ManualScoresRequest{
		Scores: []model.ManualScoreEntry{{QuestionID: uuid.New(), Points: 1}},
	})
	require.ErrorIs(t, err, ErrInvalidManualScore)
}

func TestGradeAllWalksEveryPage(t *testing.T) {
	fx := newGradingFixture(t)
	a, questions := mixedAssessment(fx)

	// More submissions than one page so the walk has to keep going.
	count := gradeBatchSize + 25
	for i := 0; i < count; i++ {
		sealedSubmission(fx, a, i+1, map[uuid.UUID]string{questions[0].ID: "2"})
	}

	outcomes, err := fx.svc.GradeAll(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Len(t, outcomes, count)
	for _, out := range outcomes {
		require.NoError(t, out.Err)
		require.Equal(t, 4.0, out.Result.AutoScore)
	}
}

func TestListIntegrityEventsChecksOwnership(t *testing.T) {
	fx := newGradingFixture(t)
	a, questions := mixedAssessment(fx)
	sub := sealedSubmission(fx, a, 1, map[uuid.UUID]string{questions[0].ID: "2"})

	fx.events.put(model.IntegrityEvent{SubmissionID: sub.ID, Kind: model.IntegrityKindFocusLost})
	fx.events.put(model.IntegrityEvent{SubmissionID: sub.ID, Kind: model.IntegrityKindFocusRegained})

	events, err := fx.svc.ListIntegrityEvents(context.Background(), sub.ID, 7)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, model.IntegrityKindFocusLost, events[0].Kind)

	_, err = fx.svc.ListIntegrityEvents(context.Background(), sub.ID, 99)
	require.ErrorIs(t, err, ErrNotAuthor)
}

func TestGradeAllIsolatesFailures(t *testing.T) {
	fx := newGradingFixture(t)
	a, questions := mixedAssessment(fx)

	good := sealedSubmission(fx, a, 1, map[uuid.UUID]string{questions[0].ID: "2"})
	second := sealedSubmission(fx, a, 2, map[uuid.UUID]string{questions[0].ID: "0"})

	// An open attempt in the list is skipped, not treated as a failure.
	fx.submissions.put(&model.Submission{
		AssessmentID:  a.ID,
		ParticipantID: 3,
		Status:        model.SubmissionStatusInProgress,
	})

	outcomes, err := fx.svc.GradeAll(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byID := make(map[uuid.UUID]SubmissionGradeOutcome, len(outcomes))
	for _, out := range outcomes {
		byID[out.SubmissionID] = out
	}
	require.NoError(t, byID[good.ID].Err)
	require.Equal(t, 4.0, byID[good.ID].Result.AutoScore)
	require.NoError(t, byID[second.ID].Err)
	require.Equal(t, 0.0, byID[second.ID].Result.AutoScore)
}
