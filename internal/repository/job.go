package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
)

// ClaimSelector chooses which job Claim targets.
type ClaimSelector struct {
	attemptID string
}

// Oldest selects the oldest queued job by creation order.
func Oldest() ClaimSelector { return ClaimSelector{} }

// ByID selects one attempt's job, creating it as queued if absent.
func ByID(attemptID string) ClaimSelector { return ClaimSelector{attemptID: attemptID} }

// Forced reports whether the selector targets an explicit attempt.
func (s ClaimSelector) Forced() bool { return s.attemptID != "" }

func (s ClaimSelector) String() string {
	if s.Forced() {
		return "by_id:" + s.attemptID
	}
	return "oldest"
}

type JobRepository interface {
	Enqueue(ctx context.Context, attemptID string) (*entity.Job, error)
	Claim(ctx context.Context, sel ClaimSelector) (*entity.Job, error)
	Lock(ctx context.Context, attemptID string) (bool, error)
	MarkDone(ctx context.Context, attemptID string) error
	MarkFailed(ctx context.Context, attemptID, lastError string) error
	Get(ctx context.Context, attemptID string) (*entity.Job, error)
	List(ctx context.Context, status constants.JobStatus, limit int) ([]*entity.Job, error)
}

type jobRepo struct {
	drv *entsql.Driver
	log *slog.Logger
}

func NewJobRepository(drv *entsql.Driver, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{drv: drv, log: log}
}

var jobColumns = []string{"attempt_id", "status", "attempt_count", "locked_at", "last_error", "created_at", "updated_at"}

func (r *jobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

// Enqueue inserts a queued job or re-arms an existing one. A running job is left untouched.
func (r *jobRepo) Enqueue(ctx context.Context, attemptID string) (*entity.Job, error) {
	ts := now()
	ins := r.builder().Insert(JobsTable).
		Columns("attempt_id", "status", "attempt_count", "created_at", "updated_at").
		Values(attemptID, string(constants.JobStatusQueued), 0, ts, ts).
		OnConflict(
			entsql.ConflictColumns("attempt_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Set("status", string(constants.JobStatusQueued))
				u.SetNull("last_error")
				u.SetNull("locked_at")
				u.Set("updated_at", ts)
			}),
			entsql.UpdateWhere(entsql.NEQ("status", string(constants.JobStatusRunning))),
		)
	if _, err := execQuery(ctx, r.drv, ins); err != nil {
		r.log.Error("job enqueue failed", "attempt_id", attemptID, "err", err)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	job, err := r.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	r.log.Info("job enqueued", "attempt_id", attemptID, "status", job.Status, "attempt_count", job.AttemptCount)
	return job, nil
}

// Claim resolves the selector to a job row. For Oldest it returns (nil, nil) when nothing is queued.
func (r *jobRepo) Claim(ctx context.Context, sel ClaimSelector) (*entity.Job, error) {
	if sel.Forced() {
		ts := now()
		ins := r.builder().Insert(JobsTable).
			Columns("attempt_id", "status", "attempt_count", "created_at", "updated_at").
			Values(sel.attemptID, string(constants.JobStatusQueued), 0, ts, ts).
			OnConflict(entsql.ConflictColumns("attempt_id"), entsql.DoNothing())
		res, err := execQuery(ctx, r.drv, ins)
		if err != nil {
			r.log.Error("job claim(by_id) insert failed", "attempt_id", sel.attemptID, "err", err)
			return nil, fmt.Errorf("ensure job: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			r.log.Info("job created for forced claim", "attempt_id", sel.attemptID)
		}
		return r.Get(ctx, sel.attemptID)
	}

	b := r.builder()
	q := b.Select(jobColumns...).
		From(b.Table(JobsTable)).
		Where(entsql.EQ("status", string(constants.JobStatusQueued))).
		OrderBy("created_at", "attempt_id").
		Limit(1)
	job, err := scanJob(queryRow(ctx, r.drv, q))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("job claim(oldest) failed", "err", err)
		return nil, fmt.Errorf("select oldest queued job: %w", err)
	}
	return job, nil
}

// Lock moves a queued job to running in one conditional write. It returns false when the row
// was not queued at write time, meaning another claimer already holds or finished it.
func (r *jobRepo) Lock(ctx context.Context, attemptID string) (bool, error) {
	ts := now()
	upd := r.builder().Update(JobsTable).
		Set("status", string(constants.JobStatusRunning)).
		Set("locked_at", ts).
		Set("updated_at", ts).
		Add("attempt_count", 1).
		Where(entsql.And(
			entsql.EQ("attempt_id", attemptID),
			entsql.EQ("status", string(constants.JobStatusQueued)),
		))
	res, err := execQuery(ctx, r.drv, upd)
	if err != nil {
		r.log.Error("job lock failed", "attempt_id", attemptID, "err", err)
		return false, fmt.Errorf("lock job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock job rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *jobRepo) MarkDone(ctx context.Context, attemptID string) error {
	upd := r.builder().Update(JobsTable).
		Set("status", string(constants.JobStatusDone)).
		Set("updated_at", now()).
		SetNull("last_error").
		Where(entsql.EQ("attempt_id", attemptID))
	if _, err := execQuery(ctx, r.drv, upd); err != nil {
		r.log.Error("job finish(done) failed", "attempt_id", attemptID, "err", err)
		return fmt.Errorf("mark job done: %w", err)
	}
	r.log.Info("job finished (done)", "attempt_id", attemptID)
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, attemptID, lastError string) error {
	upd := r.builder().Update(JobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("last_error", lastError).
		Set("updated_at", now()).
		Where(entsql.EQ("attempt_id", attemptID))
	if _, err := execQuery(ctx, r.drv, upd); err != nil {
		r.log.Error("job finish(failed) failed", "attempt_id", attemptID, "err", err)
		return fmt.Errorf("mark job failed: %w", err)
	}
	r.log.Warn("job finished (failed)", "attempt_id", attemptID, "error", lastError)
	return nil
}

func (r *jobRepo) Get(ctx context.Context, attemptID string) (*entity.Job, error) {
	b := r.builder()
	q := b.Select(jobColumns...).
		From(b.Table(JobsTable)).
		Where(entsql.EQ("attempt_id", attemptID))
	job, err := scanJob(queryRow(ctx, r.drv, q))
	if err != nil {
		return nil, notFound(err)
	}
	return job, nil
}

// List returns jobs ordered by creation. An empty status lists every job.
func (r *jobRepo) List(ctx context.Context, status constants.JobStatus, limit int) ([]*entity.Job, error) {
	b := r.builder()
	q := b.Select(jobColumns...).
		From(b.Table(JobsTable)).
		OrderBy("created_at", "attempt_id")
	if status != "" {
		q.Where(entsql.EQ("status", string(status)))
	}
	if limit > 0 {
		q.Limit(limit)
	}
	rows, err := queryRows(ctx, r.drv, q)
	if err != nil {
		r.log.Error("job list failed", "status", status, "err", err)
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		job       entity.Job
		status    string
		lockedAt  sql.NullTime
		lastError sql.NullString
	)
	if err := row.Scan(&job.AttemptID, &status, &job.AttemptCount, &lockedAt, &lastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	job.LockedAt = timePtr(lockedAt)
	job.LastError = stringPtr(lastError)
	return &job, nil
}
