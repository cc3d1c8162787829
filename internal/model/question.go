package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
)

// AutoGradable reports whether correctness can be decided without human
// judgment. Short-answer questions always require a manual score.
func (t QuestionType) AutoGradable() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

// Question represents a single assessment question.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	AssessmentID uuid.UUID    `json:"assessment_id"`
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt"`
	Options      []string     `json:"options,omitempty"`
	// CorrectChoice is the option index for MULTIPLE_CHOICE questions.
	CorrectChoice *int `json:"correct_choice,omitempty"`
	// CorrectBool is the expected value for TRUE_FALSE questions.
	CorrectBool *bool `json:"correct_bool,omitempty"`
	Points      int   `json:"points"`
	OrderNum    int   `json:"order_num"`
}

// QuestionForParticipant is a question without the answer key.
type QuestionForParticipant struct {
	ID       uuid.UUID    `json:"id"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"prompt"`
	Options  []string     `json:"options,omitempty"`
	Points   int          `json:"points"`
	OrderNum int          `json:"order_num"`
}

// ForParticipant strips the answer key from a question.
func (q Question) ForParticipant() QuestionForParticipant {
	return QuestionForParticipant{
		ID:       q.ID,
		Type:     q.Type,
		Prompt:   q.Prompt,
		Options:  q.Options,
		Points:   q.Points,
		OrderNum: q.OrderNum,
	}
}

// AddQuestionRequest is the payload for adding a question to an assessment.
type AddQuestionRequest struct {
	Type          string   `json:"type" binding:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Prompt        string   `json:"prompt" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"omitempty,max=10,dive,min=1,max=500"`
	CorrectChoice *int     `json:"correct_choice" binding:"omitempty,min=0"`
	CorrectBool   *bool    `json:"correct_bool" binding:"omitempty"`
	Points        int      `json:"points" binding:"required,min=1,max=100"`
	OrderNum      int      `json:"order_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
