package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
)

type AttemptRepository interface {
	Get(ctx context.Context, id string) (*entity.Attempt, error)
	Create(ctx context.Context, a entity.Attempt) (*entity.Attempt, error)
	MarkEvaluated(ctx context.Context, id string, at time.Time) (bool, error)
}

type attemptRepo struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewAttemptRepository(drv *entsql.Driver, logger *slog.Logger) AttemptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &attemptRepo{
		drv:    drv,
		logger: logger,
	}
}

func (r *attemptRepo) Get(ctx context.Context, id string) (*entity.Attempt, error) {
	b := entsql.Dialect(r.drv.Dialect())
	q := b.Select("id", "user_id", "mode", "status", "evaluated_at", "created_at").
		From(b.Table(AttemptsTable)).
		Where(entsql.EQ("id", id))

	var (
		a           entity.Attempt
		mode        string
		status      string
		evaluatedAt sql.NullTime
	)
	err := queryRow(ctx, r.drv, q).Scan(&a.ID, &a.UserID, &mode, &status, &evaluatedAt, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.Mode = constants.Mode(mode)
	a.Status = constants.AttemptStatus(status)
	a.EvaluatedAt = timePtr(evaluatedAt)
	return &a, nil
}

// Create writes an attempt row the way the submission flow does.
func (r *attemptRepo) Create(ctx context.Context, a entity.Attempt) (*entity.Attempt, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	if a.Status == "" {
		a.Status = constants.AttemptStatusSubmitted
	}
	ins := entsql.Dialect(r.drv.Dialect()).Insert(AttemptsTable).
		Columns("id", "user_id", "mode", "status", "created_at").
		Values(a.ID, a.UserID, string(a.Mode), string(a.Status), a.CreatedAt)
	if _, err := execQuery(ctx, r.drv, ins); err != nil {
		r.logger.Error("failed to create attempt", "attempt_id", a.ID, "user_id", a.UserID, "error", err)
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return &a, nil
}

// MarkEvaluated stamps evaluated_at only when it is still unset. It reports whether a write happened.
func (r *attemptRepo) MarkEvaluated(ctx context.Context, id string, at time.Time) (bool, error) {
	upd := entsql.Dialect(r.drv.Dialect()).Update(AttemptsTable).
		Set("evaluated_at", at.UTC()).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.IsNull("evaluated_at"),
		))
	res, err := execQuery(ctx, r.drv, upd)
	if err != nil {
		r.logger.Error("failed to mark attempt evaluated", "attempt_id", id, "error", err)
		return false, fmt.Errorf("mark attempt evaluated: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
