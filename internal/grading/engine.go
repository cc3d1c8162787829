// Package grading turns a sealed submission into a graded result. It is
// a pure computation over the submission's question snapshot: grading
// twice with the same manual inputs produces identical output, so
// regrading after a manual score edit is always safe.
package grading

import (
	"math"

	"github.com/google/uuid"

	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/scoring"
)

// QuestionResult is the per-question grading outcome.
type QuestionResult struct {
	QuestionID uuid.UUID `json:"question_id"`
	// Correct is nil when correctness was not decided automatically
	// (manual entry or still pending).
	Correct        *bool   `json:"correct,omitempty"`
	AwardedPoints  float64 `json:"awarded_points"`
	MaxPoints      int     `json:"max_points"`
	ManuallyScored bool    `json:"manually_scored"`
	// PendingManual marks a question that still needs an instructor
	// score before the submission can be considered fully graded.
	PendingManual bool   `json:"pending_manual"`
	Feedback      string `json:"feedback,omitempty"`
}

// Result is the aggregate grading outcome for one submission.
type Result struct {
	SubmissionID  uuid.UUID              `json:"submission_id"`
	Status        model.SubmissionStatus `json:"status"`
	AutoScore     float64                `json:"auto_score"`
	TotalScore    float64                `json:"total_score"`
	Percentage    int                    `json:"percentage"`
	PendingManual int                    `json:"pending_manual"`
	Questions     []QuestionResult       `json:"questions"`
}

// Grade scores sub against its question snapshot under the assessment's
// grading mode. A manual score, when present, is authoritative for its
// question in every mode. totalPoints of zero yields percentage 0.
func Grade(mode model.GradingMode, totalPoints int, sub *model.Submission) Result {
	res := Result{
		SubmissionID: sub.ID,
		Questions:    make([]QuestionResult, 0, len(sub.QuestionSnapshot)),
	}

	anyManual := false
	for _, q := range sub.QuestionSnapshot {
		qr := QuestionResult{QuestionID: q.ID, MaxPoints: q.Points}
		if fb, ok := sub.Feedback[q.ID]; ok {
			qr.Feedback = fb
		}

		if pts, ok := sub.ManualScores[q.ID]; ok {
			qr.AwardedPoints = float64(pts)
			qr.ManuallyScored = true
			anyManual = true
			res.TotalScore += qr.AwardedPoints
			res.Questions = append(res.Questions, qr)
			continue
		}

		if mode == model.GradingModeManual || !q.Type.AutoGradable() {
			qr.PendingManual = true
			res.PendingManual++
			res.Questions = append(res.Questions, qr)
			continue
		}

		submitted, present := sub.Answers[q.ID]
		verdict, pts := scoring.Score(q, submitted, present)
		correct := verdict == scoring.VerdictCorrect
		qr.Correct = &correct
		qr.AwardedPoints = float64(pts)
		res.AutoScore += qr.AwardedPoints
		res.TotalScore += qr.AwardedPoints
		res.Questions = append(res.Questions, qr)
	}

	res.Percentage = percentage(res.TotalScore, totalPoints)
	res.Status = resolveStatus(mode, res.PendingManual, anyManual)
	return res
}

// resolveStatus centralizes the submission status transition table.
func resolveStatus(mode model.GradingMode, pending int, anyManual bool) model.SubmissionStatus {
	if mode == model.GradingModeManual {
		if pending > 0 {
			return model.SubmissionStatusSubmitted
		}
		return model.SubmissionStatusManuallyGraded
	}

	if pending > 0 {
		return model.SubmissionStatusPartiallyGraded
	}
	if anyManual {
		// "Manually graded" here means fully resolved, even when most of
		// the score came from automatic scoring.
		return model.SubmissionStatusManuallyGraded
	}
	return model.SubmissionStatusAutoGraded
}

func percentage(total float64, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(total / float64(totalPoints) * 100))
}
