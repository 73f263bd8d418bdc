package entity

import (
	"time"

	"github.com/joseph-ayodele/writing-eval/constants"
)

// Attempt represents one learner submission of a two-task writing exercise.
type Attempt struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"user_id"`
	Mode        constants.Mode          `json:"mode"`
	Status      constants.AttemptStatus `json:"status"`
	EvaluatedAt *time.Time              `json:"evaluated_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TaskAnswer is the submitted text for one task of an attempt.
type TaskAnswer struct {
	AttemptID  string  `json:"attempt_id"`
	TaskNumber int     `json:"task_number"`
	AnswerText string  `json:"answer_text"`
	PromptText *string `json:"prompt_text,omitempty"`
	WordLimit  *int    `json:"word_limit,omitempty"`
}
