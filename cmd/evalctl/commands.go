package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/evaluation"
	"github.com/joseph-ayodele/writing-eval/internal/export"
	"github.com/joseph-ayodele/writing-eval/internal/llm/providers"
	"github.com/joseph-ayodele/writing-eval/internal/notify"
	"github.com/joseph-ayodele/writing-eval/internal/pipeline"
	repo "github.com/joseph-ayodele/writing-eval/internal/repository"
	"github.com/joseph-ayodele/writing-eval/internal/services/submission"
)

type app struct {
	cfg         *common.Config
	logger      *slog.Logger
	jobs        repo.JobRepository
	attempts    repo.AttemptRepository
	answers     repo.AnswerRepository
	evaluations repo.EvaluationRepository
	submissions *submission.Service
	queued      *notify.Local
}

func newApp(db *repo.DBResult, cfg *common.Config, logger *slog.Logger) *app {
	a := &app{
		cfg:         cfg,
		logger:      logger,
		jobs:        repo.NewJobRepository(db.Driver, logger),
		attempts:    repo.NewAttemptRepository(db.Driver, logger),
		answers:     repo.NewAnswerRepository(db.Driver, logger),
		evaluations: repo.NewEvaluationRepository(db.Driver, logger),
	}
	a.queued = notify.NewLocal(1, logger)
	a.submissions = submission.NewService(a.attempts, a.answers, a.jobs, a.evaluations, a.queued, logger)
	return a
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	var (
		attemptID = fs.String("attempt", "", "attempt id (generated when empty)")
		userID    = fs.String("user", "", "user id (required)")
		mode      = fs.String("mode", string(constants.ModeAcademic), "academic or general")
		task1     = fs.String("task1", "", "task 1 answer, or @file")
		task2     = fs.String("task2", "", "task 2 answer, or @file")
		runNow    = fs.Bool("run", false, "evaluate the attempt right after queueing it")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	notices, err := a.queued.Subscribe(subCtx)
	if err != nil {
		return err
	}

	req := submission.SubmitRequest{AttemptID: *attemptID, UserID: *userID, Mode: *mode}
	for n, src := range map[int]string{1: *task1, 2: *task2} {
		text, err := readText(src)
		if err != nil {
			return err
		}
		if text != "" {
			req.Tasks = append(req.Tasks, submission.TaskSubmission{Number: n, Answer: text})
		}
	}

	job, err := a.submissions.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("submitted attempt %s (job %s)\n", job.AttemptID, job.Status)
	if !*runNow {
		return nil
	}

	var id string
	select {
	case id = <-notices:
	case <-ctx.Done():
		return ctx.Err()
	}
	runner, err := a.runner()
	if err != nil {
		return err
	}
	out := runner.RunOnce(ctx, id)
	fmt.Println(out.String())
	return out.Err
}

// readText returns s, or the contents of the file named after a leading '@'.
func readText(s string) (string, error) {
	path, ok := strings.CutPrefix(s, "@")
	if !ok {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func (a *app) enqueue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	attemptID := fs.String("attempt", "", "attempt id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	job, err := a.submissions.Enqueue(ctx, *attemptID)
	if err != nil {
		return err
	}
	fmt.Printf("attempt %s is %s (locks so far: %d)\n", job.AttemptID, job.Status, job.AttemptCount)
	return nil
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var (
		attemptID = fs.String("attempt", "", "process this attempt instead of the oldest queued job")
		all       = fs.Bool("all", false, "keep going until the queue is empty")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}

	var failed int
	for {
		out := runner.RunOnce(ctx, *attemptID)
		fmt.Println(out.String())
		if out.Status == pipeline.StatusError {
			failed++
			if *attemptID != "" || !*all {
				return out.Err
			}
		}
		if *attemptID != "" || !*all || out.Status == pipeline.StatusNotProcessed || ctx.Err() != nil {
			break
		}
	}
	if failed > 0 {
		return common.NewAppError(common.CodeAggregate, fmt.Sprintf("%d job(s) failed", failed), nil)
	}
	return nil
}

func (a *app) runner() (*pipeline.Runner, error) {
	adapters, err := providers.Build(a.cfg.Providers.Ordered(), a.logger)
	if err != nil {
		return nil, err
	}
	validator, err := evaluation.NewValidator(a.logger, evaluation.WithLenientNormalize(a.cfg.Evaluation.LenientNormalize))
	if err != nil {
		return nil, err
	}
	orch, err := pipeline.NewOrchestrator(a.logger, validator, adapters...)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(a.logger, a.jobs, a.attempts, a.evaluations,
		pipeline.NewAssembler(a.logger, a.answers), orch), nil
}

func (a *app) status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	var (
		attemptID = fs.String("attempt", "", "show one attempt with its evaluation")
		state     = fs.String("state", "", "filter jobs by status")
		limit     = fs.Int("limit", 50, "max jobs to list")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *attemptID != "" {
		view, err := a.submissions.Status(ctx, *attemptID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("no job for attempt %s", *attemptID)
			}
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"job":        view.Job,
			"pending":    view.Pending(),
			"evaluation": view.Evaluation,
		})
	}

	jobs, err := a.jobs.List(ctx, constants.JobStatus(*state), *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ATTEMPT\tSTATUS\tLOCKS\tUPDATED\tLAST ERROR")
	for _, j := range jobs {
		lastErr := ""
		if j.LastError != nil {
			lastErr = *j.LastError
			if len(lastErr) > 80 {
				lastErr = lastErr[:79] + "…"
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", j.AttemptID, j.Status, j.AttemptCount,
			j.UpdatedAt.Format("2006-01-02 15:04:05"), lastErr)
	}
	return tw.Flush()
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var (
		out   = fs.String("out", "evaluations.xlsx", "output XLSX path")
		limit = fs.Int("limit", 0, "max rows (0 = all)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := export.NewService(a.evaluations, a.logger).ExportEvaluationsXLSX(ctx, *limit)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}
