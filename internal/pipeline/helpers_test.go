package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
	"github.com/joseph-ayodele/writing-eval/internal/evaluation"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
	"github.com/joseph-ayodele/writing-eval/internal/repository"
)

const validPayload = `{
  "evaluation_version": "v1.0",
  "confidence": "medium",
  "overall_band": 6.5,
  "task1_band": 6.0,
  "task2_band": 6.5,
  "task1_criteria": {"task_response": 6, "coherence_cohesion": 6, "lexical_resource": 6.5, "grammar_accuracy": 5.5},
  "task2_criteria": {"task_response": 6.5, "coherence_cohesion": 6.5, "lexical_resource": 6, "grammar_accuracy": 7},
  "task1_verdict": "Accurate overview.",
  "task2_verdict": "Clear position.",
  "strengths": ["clear overview"],
  "weaknesses": ["repetitive linking"],
  "improvement_actions": ["compare data points"],
  "warnings": [],
  "next_steps": ["practise line graphs"]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider returns a fixed payload or error and counts calls.
type fakeProvider struct {
	name    string
	payload string
	err     error

	mu    sync.Mutex
	calls int
	seen  llm.EvaluationRequest
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.name + "-model" }

func (f *fakeProvider) Evaluate(_ context.Context, req llm.EvaluationRequest) (llm.Response, error) {
	f.mu.Lock()
	f.calls++
	f.seen = req
	f.mu.Unlock()
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.ParseContent(f.name, f.Model(), f.payload)
}

type fixture struct {
	drv         *entsql.Driver
	jobs        repository.JobRepository
	attempts    repository.AttemptRepository
	answers     repository.AnswerRepository
	evaluations repository.EvaluationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "pipeline.db")
	drv, _, err := repository.Open(ctx, repository.Config{DSN: dsn}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	require.NoError(t, repository.Migrate(ctx, drv, discardLogger()))

	return &fixture{
		drv:         drv,
		jobs:        repository.NewJobRepository(drv, discardLogger()),
		attempts:    repository.NewAttemptRepository(drv, discardLogger()),
		answers:     repository.NewAnswerRepository(drv, discardLogger()),
		evaluations: repository.NewEvaluationRepository(drv, discardLogger()),
	}
}

// submit writes an attempt with the given task answers and queues its job.
func (f *fixture) submit(t *testing.T, id string, status constants.AttemptStatus, answers map[int]string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.attempts.Create(ctx, entity.Attempt{ID: id, UserID: "u1", Mode: constants.ModeAcademic, Status: status})
	require.NoError(t, err)
	for n, text := range answers {
		require.NoError(t, f.answers.Create(ctx, entity.TaskAnswer{AttemptID: id, TaskNumber: n, AnswerText: text}))
	}
	_, err = f.jobs.Enqueue(ctx, id)
	require.NoError(t, err)
}

func (f *fixture) runner(t *testing.T, providers ...llm.Provider) *Runner {
	t.Helper()
	v, err := evaluation.NewValidator(discardLogger())
	require.NoError(t, err)
	orch, err := NewOrchestrator(discardLogger(), v, providers...)
	require.NoError(t, err)
	return NewRunner(discardLogger(), f.jobs, f.attempts, f.evaluations,
		NewAssembler(discardLogger(), f.answers), orch)
}
