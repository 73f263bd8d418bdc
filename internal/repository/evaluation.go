package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
)

type EvaluationRepository interface {
	Exists(ctx context.Context, attemptID string) (bool, error)
	// Upsert inserts the evaluation unless one already exists for the attempt.
	// created is false when an earlier row won.
	Upsert(ctx context.Context, ev *entity.Evaluation) (created bool, err error)
	// GetByAttempt returns (nil, nil) when no evaluation exists yet.
	GetByAttempt(ctx context.Context, attemptID string) (*entity.Evaluation, error)
	List(ctx context.Context, limit int) ([]*entity.Evaluation, error)
}

type evaluationRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewEvaluationRepository(drv *entsql.Driver, log *slog.Logger) EvaluationRepository {
	if log == nil {
		log = slog.Default()
	}
	return &evaluationRepo{drv: drv, log: log}
}

var evaluationColumns = []string{
	"attempt_id", "overall_band", "task1_band", "task2_band",
	"task1_criteria", "task2_criteria", "task1_verdict", "task2_verdict",
	"notes", "warnings", "next_steps", "provider_name", "model_name",
	"meta", "raw_payload", "created_at",
}

func (r *evaluationRepo) Exists(ctx context.Context, attemptID string) (bool, error) {
	b := entsql.Dialect(r.drv.Dialect())
	q := b.Select("attempt_id").
		From(b.Table(EvaluationsTable)).
		Where(entsql.EQ("attempt_id", attemptID)).
		Limit(1)
	var id string
	if err := queryRow(ctx, r.drv, q).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		r.log.Error("evaluation exists check failed", "attempt_id", attemptID, "err", err)
		return false, fmt.Errorf("check evaluation: %w", err)
	}
	return true, nil
}

func (r *evaluationRepo) Upsert(ctx context.Context, ev *entity.Evaluation) (bool, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now()
	}
	values, err := encodeEvaluation(ev)
	if err != nil {
		return false, common.NewAppError(common.CodeDatabase, "encode evaluation", err)
	}
	ins := entsql.Dialect(r.drv.Dialect()).Insert(EvaluationsTable).
		Columns(evaluationColumns...).
		Values(values...).
		OnConflict(entsql.ConflictColumns("attempt_id"), entsql.DoNothing())
	res, err := execQuery(ctx, r.drv, ins)
	if err != nil {
		r.log.Error("evaluation upsert failed", "attempt_id", ev.AttemptID, "err", err)
		return false, fmt.Errorf("upsert evaluation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		r.log.Warn("evaluation already present, upsert skipped", "attempt_id", ev.AttemptID)
		return false, nil
	}
	r.log.Info("evaluation stored", "attempt_id", ev.AttemptID, "provider", ev.ProviderName, "overall_band", ev.OverallBand)
	return true, nil
}

func (r *evaluationRepo) GetByAttempt(ctx context.Context, attemptID string) (*entity.Evaluation, error) {
	b := entsql.Dialect(r.drv.Dialect())
	q := b.Select(evaluationColumns...).
		From(b.Table(EvaluationsTable)).
		Where(entsql.EQ("attempt_id", attemptID))
	ev, err := scanEvaluation(queryRow(ctx, r.drv, q))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return ev, nil
}

func (r *evaluationRepo) List(ctx context.Context, limit int) ([]*entity.Evaluation, error) {
	b := entsql.Dialect(r.drv.Dialect())
	q := b.Select(evaluationColumns...).
		From(b.Table(EvaluationsTable)).
		OrderBy("created_at", "attempt_id")
	if limit > 0 {
		q.Limit(limit)
	}
	rows, err := queryRows(ctx, r.drv, q)
	if err != nil {
		r.log.Error("evaluation list failed", "err", err)
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func encodeEvaluation(ev *entity.Evaluation) ([]any, error) {
	docs := make([]string, 0, 6)
	for _, v := range []any{ev.Task1Criteria, ev.Task2Criteria, ev.Notes, nonNil(ev.Warnings), nonNil(ev.NextSteps), ev.Meta} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		docs = append(docs, string(b))
	}
	var task1, raw any
	if ev.Task1Band != nil {
		task1 = *ev.Task1Band
	}
	if len(ev.RawPayload) > 0 {
		raw = string(ev.RawPayload)
	}
	return []any{
		ev.AttemptID, ev.OverallBand, task1, ev.Task2Band,
		docs[0], docs[1], ev.Task1Verdict, ev.Task2Verdict,
		docs[2], docs[3], docs[4], ev.ProviderName, ev.ModelName,
		docs[5], raw, ev.CreatedAt,
	}, nil
}

func scanEvaluation(row rowScanner) (*entity.Evaluation, error) {
	var (
		ev                                 entity.Evaluation
		task1                              sql.NullFloat64
		t1Crit, t2Crit, notes, warns, next string
		meta                               string
		raw                                sql.NullString
	)
	err := row.Scan(
		&ev.AttemptID, &ev.OverallBand, &task1, &ev.Task2Band,
		&t1Crit, &t2Crit, &ev.Task1Verdict, &ev.Task2Verdict,
		&notes, &warns, &next, &ev.ProviderName, &ev.ModelName,
		&meta, &raw, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Task1Band = floatPtr(task1)
	targets := []struct {
		src string
		dst any
	}{
		{t1Crit, &ev.Task1Criteria},
		{t2Crit, &ev.Task2Criteria},
		{notes, &ev.Notes},
		{warns, &ev.Warnings},
		{next, &ev.NextSteps},
		{meta, &ev.Meta},
	}
	for _, t := range targets {
		if err := json.Unmarshal([]byte(t.src), t.dst); err != nil {
			return nil, fmt.Errorf("decode evaluation %s: %w", ev.AttemptID, err)
		}
	}
	if raw.Valid {
		ev.RawPayload = json.RawMessage(raw.String)
	}
	return &ev, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
