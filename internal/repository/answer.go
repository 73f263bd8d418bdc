package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/writing-eval/internal/entity"
)

type AnswerRepository interface {
	ListByAttempt(ctx context.Context, attemptID string) ([]entity.TaskAnswer, error)
	Create(ctx context.Context, a entity.TaskAnswer) error
}

type answerRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewAnswerRepository(drv *entsql.Driver, logger *slog.Logger) AnswerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &answerRepo{drv: drv, logger: logger}
}

// ListByAttempt returns the attempt's answers ordered by task number.
func (r *answerRepo) ListByAttempt(ctx context.Context, attemptID string) ([]entity.TaskAnswer, error) {
	b := entsql.Dialect(r.drv.Dialect())
	q := b.Select("attempt_id", "task_number", "answer_text", "prompt_text", "word_limit").
		From(b.Table(AnswersTable)).
		Where(entsql.EQ("attempt_id", attemptID)).
		OrderBy("task_number")
	rows, err := queryRows(ctx, r.drv, q)
	if err != nil {
		r.logger.Error("failed to list task answers", "attempt_id", attemptID, "error", err)
		return nil, fmt.Errorf("list task answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.TaskAnswer
	for rows.Next() {
		var (
			a      entity.TaskAnswer
			prompt sql.NullString
			limit  sql.NullInt64
		)
		if err := rows.Scan(&a.AttemptID, &a.TaskNumber, &a.AnswerText, &prompt, &limit); err != nil {
			return nil, fmt.Errorf("scan task answer: %w", err)
		}
		a.PromptText = stringPtr(prompt)
		a.WordLimit = intPtr(limit)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *answerRepo) Create(ctx context.Context, a entity.TaskAnswer) error {
	if a.TaskNumber != 1 && a.TaskNumber != 2 {
		return fmt.Errorf("task number must be 1 or 2, got %d", a.TaskNumber)
	}
	var prompt, limit any
	if a.PromptText != nil {
		prompt = *a.PromptText
	}
	if a.WordLimit != nil {
		limit = *a.WordLimit
	}
	ins := entsql.Dialect(r.drv.Dialect()).Insert(AnswersTable).
		Columns("attempt_id", "task_number", "answer_text", "prompt_text", "word_limit").
		Values(a.AttemptID, a.TaskNumber, a.AnswerText, prompt, limit)
	if _, err := execQuery(ctx, r.drv, ins); err != nil {
		r.logger.Error("failed to create task answer", "attempt_id", a.AttemptID, "task_number", a.TaskNumber, "error", err)
		return fmt.Errorf("create task answer: %w", err)
	}
	return nil
}
