package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
	"github.com/joseph-ayodele/writing-eval/internal/repository"
)

// OutcomeStatus is the top-level result of one RunOnce call.
type OutcomeStatus string

const (
	StatusProcessed    OutcomeStatus = "processed"
	StatusNotProcessed OutcomeStatus = "not_processed"
	StatusError        OutcomeStatus = "error"
)

// RunMode says how a processed job was reached.
type RunMode string

const (
	ModeQueued      RunMode = "queued"
	ModeForced      RunMode = "forced"
	ModeAlreadyDone RunMode = "already_done"
)

// Reasons reported with StatusNotProcessed.
const (
	ReasonNoWork = "no queued jobs"
	ReasonBusy   = "busy"
)

// Outcome reports what a single RunOnce call did.
type Outcome struct {
	Status    OutcomeStatus
	Mode      RunMode
	AttemptID string
	Provider  string
	Reason    string
	Err       error
}

// NoWork reports whether the call found nothing to do.
func (o Outcome) NoWork() bool {
	return o.Status == StatusNotProcessed && o.Reason == ReasonNoWork
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusProcessed:
		s := fmt.Sprintf("processed attempt=%s mode=%s", o.AttemptID, o.Mode)
		if o.Provider != "" {
			s += " provider=" + o.Provider
		}
		return s
	case StatusNotProcessed:
		if o.AttemptID == "" {
			return "not processed: " + o.Reason
		}
		return fmt.Sprintf("not processed attempt=%s: %s", o.AttemptID, o.Reason)
	default:
		return fmt.Sprintf("error attempt=%s: %v", o.AttemptID, o.Err)
	}
}

// Runner processes at most one job per RunOnce call.
type Runner struct {
	Logger       *slog.Logger
	Jobs         repository.JobRepository
	Attempts     repository.AttemptRepository
	Evaluations  repository.EvaluationRepository
	Assembler    *Assembler
	Orchestrator *Orchestrator
}

func NewRunner(
	logger *slog.Logger,
	jobs repository.JobRepository,
	attempts repository.AttemptRepository,
	evaluations repository.EvaluationRepository,
	assembler *Assembler,
	orchestrator *Orchestrator,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Logger:       logger,
		Jobs:         jobs,
		Attempts:     attempts,
		Evaluations:  evaluations,
		Assembler:    assembler,
		Orchestrator: orchestrator,
	}
}

// RunOnce processes the given attempt, or the oldest queued job when attemptID is empty.
// Once the job lock is won any failure marks the job failed with the error text.
func (r *Runner) RunOnce(ctx context.Context, attemptID string) Outcome {
	sel := repository.Oldest()
	mode := ModeQueued
	if attemptID != "" {
		sel = repository.ByID(attemptID)
		mode = ModeForced
	}
	log := r.Logger.With("selector", sel.String(), "worker_id", common.WorkerIDFromContext(ctx))

	job, err := r.Jobs.Claim(ctx, sel)
	if err != nil {
		log.Error("runner.claim.failed", "error", err)
		return Outcome{Status: StatusError, AttemptID: attemptID, Err: err}
	}
	if job == nil {
		log.Debug("runner.idle")
		return Outcome{Status: StatusNotProcessed, Reason: ReasonNoWork}
	}
	log = log.With("attempt_id", job.AttemptID)

	won, err := r.Jobs.Lock(ctx, job.AttemptID)
	if err != nil {
		log.Error("runner.lock.failed", "error", err)
		return Outcome{Status: StatusError, AttemptID: job.AttemptID, Err: err}
	}
	if !won {
		return r.lockLost(ctx, log, job, mode)
	}
	log.Info("runner.lock.won", "mode", mode)

	start := time.Now()
	provider, already, err := r.process(ctx, log, job.AttemptID)
	if err != nil {
		// record the failure even when the caller's context is already cancelled
		if mErr := r.Jobs.MarkFailed(context.WithoutCancel(ctx), job.AttemptID, err.Error()); mErr != nil {
			log.Error("runner.mark_failed.failed", "error", mErr)
		}
		log.Error("runner.failed", "error", err, "code", common.CodeOf(err), "elapsed_ms", time.Since(start).Milliseconds())
		return Outcome{Status: StatusError, AttemptID: job.AttemptID, Err: err}
	}
	if already {
		mode = ModeAlreadyDone
	}
	log.Info("runner.done", "mode", mode, "provider", provider, "elapsed_ms", time.Since(start).Milliseconds())
	return Outcome{Status: StatusProcessed, Mode: mode, AttemptID: job.AttemptID, Provider: provider}
}

func (r *Runner) lockLost(ctx context.Context, log *slog.Logger, job *entity.Job, mode RunMode) Outcome {
	exists, err := r.Evaluations.Exists(ctx, job.AttemptID)
	if err != nil {
		log.Error("runner.lock.lost.check_failed", "error", err)
		return Outcome{Status: StatusError, AttemptID: job.AttemptID, Err: err}
	}
	if exists {
		log.Info("runner.lock.lost.already_done")
		return Outcome{Status: StatusProcessed, Mode: ModeAlreadyDone, AttemptID: job.AttemptID}
	}
	if mode == ModeForced && job.Status == constants.JobStatusFailed {
		err := common.PreconditionError("job for attempt %s is failed (last error: %s); re-enqueue it to run again",
			job.AttemptID, derefOr(job.LastError, "none"))
		log.Warn("runner.lock.lost.failed_job", "error", err)
		return Outcome{Status: StatusError, AttemptID: job.AttemptID, Err: err}
	}
	log.Info("runner.lock.lost", "job_status", job.Status)
	return Outcome{Status: StatusNotProcessed, AttemptID: job.AttemptID, Reason: ReasonBusy}
}

// process runs the locked part of the protocol. already reports an evaluation that existed
// before any provider was called.
func (r *Runner) process(ctx context.Context, log *slog.Logger, attemptID string) (provider string, already bool, err error) {
	exists, err := r.Evaluations.Exists(ctx, attemptID)
	if err != nil {
		return "", false, err
	}
	if exists {
		log.Info("runner.idempotent.skip")
		return "", true, r.Jobs.MarkDone(ctx, attemptID)
	}

	attempt, err := r.Attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", false, common.PreconditionError("attempt %s not found", attemptID)
		}
		return "", false, err
	}
	if !attempt.Status.Evaluable() {
		return "", false, common.PreconditionError("attempt %s is not evaluable (status=%s)", attemptID, attempt.Status)
	}

	req, err := r.Assembler.Assemble(ctx, attempt)
	if err != nil {
		return "", false, err
	}
	if req.Blank() {
		return "", false, common.PreconditionError("attempt %s has no answer text for either task", attemptID)
	}

	res, err := r.Orchestrator.Evaluate(ctx, req)
	if err != nil {
		return "", false, err
	}

	created, err := r.Evaluations.Upsert(ctx, res.Evaluation)
	if err != nil {
		return "", false, err
	}
	if !created {
		log.Warn("runner.evaluation.conflict", "provider", res.Provider)
	}
	if _, err := r.Attempts.MarkEvaluated(ctx, attemptID, time.Now().UTC()); err != nil {
		return "", false, err
	}
	if err := r.Jobs.MarkDone(ctx, attemptID); err != nil {
		return "", false, err
	}
	return res.Provider, false, nil
}

func derefOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
