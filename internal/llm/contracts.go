package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/writing-eval/constants"
)

// TaskInput is one task of an attempt, ready to grade.
type TaskInput struct {
	Number    int    `json:"task_number"`
	Prompt    string `json:"prompt"`
	Answer    string `json:"answer"`
	WordLimit int    `json:"word_limit"`
	WordCount int    `json:"word_count"`
}

// EvaluationRequest is the provider-neutral input shared by every adapter.
type EvaluationRequest struct {
	AttemptID string         `json:"attempt_id"`
	Mode      constants.Mode `json:"mode"`
	Tasks     []TaskInput    `json:"tasks"`
}

// Task returns the task with the given number.
func (r EvaluationRequest) Task(n int) (TaskInput, bool) {
	for _, t := range r.Tasks {
		if t.Number == n {
			return t, true
		}
	}
	return TaskInput{}, false
}

// Blank reports whether every task answer is empty after trimming.
func (r EvaluationRequest) Blank() bool {
	for _, t := range r.Tasks {
		if strings.TrimSpace(t.Answer) != "" {
			return false
		}
	}
	return true
}

// Response is the raw JSON candidate an adapter extracted from its backend's envelope.
type Response struct {
	Provider string
	Model    string
	Payload  json.RawMessage
	Salvaged bool
}

// Provider is one language-model backend. Evaluate returns a *ProviderError on failure.
type Provider interface {
	Name() string
	Model() string
	Evaluate(ctx context.Context, req EvaluationRequest) (Response, error)
}
