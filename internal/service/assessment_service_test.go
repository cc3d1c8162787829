package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/classhall/assess-backend/internal/clock"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/notifier"
)

type assessmentFixture struct {
	svc         *AssessmentService
	attempts    *AttemptService
	assessments *stubAssessmentStore
	submissions *stubSubmissionStore
	clk         *clock.Manual
	notify      *recordingNotifier
}

func newAssessmentFixture(t *testing.T) *assessmentFixture {
	t.Helper()
	_, rdb := newTestRedis(t)
	assessments := newStubAssessmentStore()
	submissions := newStubSubmissionStore()
	clk := clock.NewManual(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	notify := &recordingNotifier{}
	attempts := NewAttemptService(assessments, submissions, rdb, clk, notify, testLogger())
	return &assessmentFixture{
		svc:         NewAssessmentService(assessments, submissions, attempts, rdb, clk, notify, testLogger()),
		attempts:    attempts,
		assessments: assessments,
		submissions: submissions,
		clk:         clk,
		notify:      notify,
	}
}

func draftWithQuestions(t *testing.T, fx *assessmentFixture, authorID int) *model.Assessment {
	t.Helper()
	a, err := fx.svc.Create(context.Background(), authorID, &model.CreateAssessmentRequest{
		Title:           "Midterm",
		GroupLabel:      "grade-11",
		GradingMode:     "AUTO",
		DurationMinutes: 45,
	})
	require.NoError(t, err)

	_, err = fx.svc.ReplaceQuestions(context.Background(), a.ID, authorID, &model.ReplaceQuestionsRequest{
		Questions: []model.AddQuestionRequest{
			{Type: "MULTIPLE_CHOICE", Prompt: "Pick one", Options: []string{"a", "b"}, CorrectChoice: intPtr(0), Points: 5},
			{Type: "SHORT_ANSWER", Prompt: "Explain", Points: 5},
		},
	})
	require.NoError(t, err)
	return a
}

func TestCreateStartsAsDraft(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	got, err := fx.svc.Get(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Equal(t, model.AssessmentStatusDraft, got.Status)
	require.Equal(t, 10, got.TotalPoints)
}

func TestOwnershipEnforced(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	_, err := fx.svc.Get(context.Background(), a.ID, 8)
	require.ErrorIs(t, err, ErrNotAuthor)

	err = fx.svc.Delete(context.Background(), a.ID, 8)
	require.ErrorIs(t, err, ErrNotAuthor)
}

func TestUpdateRefusedOncePublished(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	_, err := fx.svc.Publish(context.Background(), a.ID, 7)
	require.NoError(t, err)

	_, err = fx.svc.Update(context.Background(), a.ID, 7, &model.UpdateAssessmentRequest{Title: "Renamed"})
	require.ErrorIs(t, err, ErrNotDraft)

	_, err = fx.svc.ReplaceQuestions(context.Background(), a.ID, 7, &model.ReplaceQuestionsRequest{
		Questions: []model.AddQuestionRequest{{Type: "SHORT_ANSWER", Prompt: "x", Points: 1}},
	})
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestPublishRequiresQuestions(t *testing.T) {
	fx := newAssessmentFixture(t)
	a, err := fx.svc.Create(context.Background(), 7, &model.CreateAssessmentRequest{
		Title: "Empty", GroupLabel: "g", GradingMode: "AUTO", DurationMinutes: 30,
	})
	require.NoError(t, err)

	_, err = fx.svc.Publish(context.Background(), a.ID, 7)
	require.ErrorIs(t, err, ErrNoQuestions)
}

func TestPublishSchedulesFutureStart(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	future := fx.clk.Now().Add(2 * time.Hour)
	_, err := fx.svc.Update(context.Background(), a.ID, 7, &model.UpdateAssessmentRequest{ScheduledStart: &future})
	require.NoError(t, err)

	published, err := fx.svc.Publish(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Equal(t, model.AssessmentStatusScheduled, published.Status)
}

func TestReplaceQuestionsValidatesAnswerKey(t *testing.T) {
	fx := newAssessmentFixture(t)
	a, err := fx.svc.Create(context.Background(), 7, &model.CreateAssessmentRequest{
		Title: "Quiz", GroupLabel: "g", GradingMode: "AUTO", DurationMinutes: 30,
	})
	require.NoError(t, err)

	_, err = fx.svc.ReplaceQuestions(context.Background(), a.ID, 7, &model.ReplaceQuestionsRequest{
		Questions: []model.AddQuestionRequest{
			{Type: "MULTIPLE_CHOICE", Prompt: "broken", Options: []string{"a", "b"}, CorrectChoice: intPtr(5), Points: 5},
		},
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = fx.svc.ReplaceQuestions(context.Background(), a.ID, 7, &model.ReplaceQuestionsRequest{
		Questions: []model.AddQuestionRequest{
			{Type: "TRUE_FALSE", Prompt: "no key", Points: 5},
		},
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)
}

func TestSweepPromotesScheduledAndActivates(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	future := fx.clk.Now().Add(time.Hour)
	_, err := fx.svc.Update(context.Background(), a.ID, 7, &model.UpdateAssessmentRequest{ScheduledStart: &future})
	require.NoError(t, err)
	_, err = fx.svc.Publish(context.Background(), a.ID, 7)
	require.NoError(t, err)

	// Before the scheduled start nothing moves.
	moved, err := fx.svc.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, moved)

	fx.clk.Advance(61 * time.Minute)
	moved, err = fx.svc.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	got, err := fx.svc.Get(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Equal(t, model.AssessmentStatusPublished, got.Status)

	// First attempt arrives; the next sweep marks the assessment active.
	_, _, err = fx.attempts.StartAttempt(context.Background(), a.ID, 1)
	require.NoError(t, err)

	moved, err = fx.svc.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	got, err = fx.svc.Get(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Equal(t, model.AssessmentStatusActive, got.Status)
}

func TestSweepExpiresUnusedWindow(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	end := fx.clk.Now().Add(30 * time.Minute)
	_, err := fx.svc.Update(context.Background(), a.ID, 7, &model.UpdateAssessmentRequest{EndDate: &end})
	require.NoError(t, err)
	_, err = fx.svc.Publish(context.Background(), a.ID, 7)
	require.NoError(t, err)

	fx.clk.Advance(31 * time.Minute)
	_, err = fx.svc.SweepOnce(context.Background())
	require.NoError(t, err)

	got, err := fx.svc.Get(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Equal(t, model.AssessmentStatusExpired, got.Status)
}

func TestSweepCompletesAndSealsStragglers(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	end := fx.clk.Now().Add(30 * time.Minute)
	_, err := fx.svc.Update(context.Background(), a.ID, 7, &model.UpdateAssessmentRequest{EndDate: &end})
	require.NoError(t, err)
	_, err = fx.svc.Publish(context.Background(), a.ID, 7)
	require.NoError(t, err)

	sub, _, err := fx.attempts.StartAttempt(context.Background(), a.ID, 1)
	require.NoError(t, err)
	_, err = fx.svc.SweepOnce(context.Background())
	require.NoError(t, err)

	// Window lapses while the participant is gone. The sweep seals the
	// attempt as a timeout and completes the assessment.
	fx.clk.Advance(31 * time.Minute)
	_, err = fx.svc.SweepOnce(context.Background())
	require.NoError(t, err)

	got, err := fx.svc.Get(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.Equal(t, model.AssessmentStatusCompleted, got.Status)

	sealed, err := fx.submissions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotEqual(t, model.SubmissionStatusInProgress, sealed.Status)
	require.Equal(t, model.SealReasonTimeout, *sealed.SealReason)

	// Re-running the sweep on settled rows changes nothing.
	moved, err := fx.svc.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, moved)
}

func TestPublishResultsGatedOnGrading(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)
	_, err := fx.svc.Publish(context.Background(), a.ID, 7)
	require.NoError(t, err)

	sub, _, err := fx.attempts.StartAttempt(context.Background(), a.ID, 1)
	require.NoError(t, err)
	_, _, err = fx.attempts.Seal(context.Background(), sub.ID, model.SealReasonManual)
	require.NoError(t, err)

	// The short-answer question still needs a manual score.
	err = fx.svc.PublishResults(context.Background(), a.ID, 7)
	require.ErrorIs(t, err, ErrIncompleteGrading)

	require.NoError(t, fx.submissions.ApplyGrading(context.Background(), sub.ID,
		model.SubmissionStatusManuallyGraded, 5, 10, 100))

	require.NoError(t, fx.svc.PublishResults(context.Background(), a.ID, 7))
	require.Len(t, fx.notify.ofType(notifier.EventResultsPublished), 1)

	got, err := fx.svc.Get(context.Background(), a.ID, 7)
	require.NoError(t, err)
	require.True(t, got.ResultsPublished)
}

func TestListSubmissionsRequiresOwnership(t *testing.T) {
	fx := newAssessmentFixture(t)
	a := draftWithQuestions(t, fx, 7)

	_, _, err := fx.svc.ListSubmissions(context.Background(), a.ID, 9, 20, 0)
	require.ErrorIs(t, err, ErrNotAuthor)

	_, _, err = fx.svc.ListSubmissions(context.Background(), uuid.New(), 7, 20, 0)
	require.ErrorIs(t, err, ErrNotFound)
}
