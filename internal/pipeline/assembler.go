package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
	"github.com/joseph-ayodele/writing-eval/internal/repository"
)

// Assembler turns an attempt's stored answers into a provider-neutral request.
type Assembler struct {
	Logger  *slog.Logger
	Answers repository.AnswerRepository
}

func NewAssembler(logger *slog.Logger, answers repository.AnswerRepository) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{Logger: logger, Answers: answers}
}

// Assemble loads the task answers for the attempt and fills prompt and word limit defaults.
// A task with no stored row is included with an empty answer.
func (a *Assembler) Assemble(ctx context.Context, attempt *entity.Attempt) (llm.EvaluationRequest, error) {
	rows, err := a.Answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return llm.EvaluationRequest{}, fmt.Errorf("load answers: %w", err)
	}
	byTask := make(map[int]entity.TaskAnswer, len(rows))
	for _, r := range rows {
		byTask[r.TaskNumber] = r
	}

	req := llm.EvaluationRequest{AttemptID: attempt.ID, Mode: attempt.Mode}
	for _, n := range constants.TaskNumbers {
		row, ok := byTask[n]
		t := llm.TaskInput{
			Number:    n,
			Prompt:    constants.DefaultPrompt(attempt.Mode, n),
			WordLimit: constants.DefaultWordLimit(n),
		}
		if ok {
			t.Answer = row.AnswerText
			if row.PromptText != nil && strings.TrimSpace(*row.PromptText) != "" {
				t.Prompt = *row.PromptText
			}
			if row.WordLimit != nil && *row.WordLimit > 0 {
				t.WordLimit = *row.WordLimit
			}
		}
		t.WordCount = CountWords(t.Answer)
		req.Tasks = append(req.Tasks, t)
	}

	a.Logger.Debug("assembler.ok",
		"attempt_id", attempt.ID, "mode", attempt.Mode,
		"rows", len(rows), "task1_words", req.Tasks[0].WordCount, "task2_words", req.Tasks[1].WordCount,
	)
	return req, nil
}

// CountWords counts whitespace-separated tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
