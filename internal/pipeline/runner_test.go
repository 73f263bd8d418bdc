package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

var bothTasks = map[int]string{
	1: "The chart illustrates the proportion of households that owned their home.",
	2: "Universities have long debated whether their purpose is knowledge or employment.",
}

func TestRunner_EndToEnd_OldestQueuedAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "A1", constants.AttemptStatusSubmitted, map[int]string{
		1: strings.TrimSpace(strings.Repeat("word ", 180)),
		2: strings.TrimSpace(strings.Repeat("essay ", 310)),
	})
	primary := &fakeProvider{name: "primary", payload: validPayload}
	secondary := &fakeProvider{name: "secondary", payload: validPayload}

	out := f.runner(t, primary, secondary).RunOnce(ctx, "")
	require.NoError(t, out.Err)
	assert.Equal(t, StatusProcessed, out.Status)
	assert.Equal(t, ModeQueued, out.Mode)
	assert.Equal(t, "A1", out.AttemptID)
	assert.Zero(t, secondary.Calls())

	t1, _ := primary.seen.Task(1)
	t2, _ := primary.seen.Task(2)
	assert.Equal(t, 180, t1.WordCount)
	assert.Equal(t, 310, t2.WordCount)

	ev, err := f.evaluations.GetByAttempt(ctx, "A1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 6.5, ev.OverallBand)
	assert.Equal(t, "primary", ev.ProviderName)
	assert.Equal(t, "medium", ev.Meta.Confidence)
	assert.Empty(t, ev.Meta.FailedProviders)

	job, err := f.jobs.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Nil(t, job.LastError)

	attempt, err := f.attempts.Get(ctx, "A1")
	require.NoError(t, err)
	assert.NotNil(t, attempt.EvaluatedAt)
}

func TestRunner_EndToEnd_PrimaryDownSecondaryAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "A1", constants.AttemptStatusSubmitted, bothTasks)

	primary := &fakeProvider{name: "primary", err: llm.TransportError("primary", 503, nil, errors.New("non-2xx status: 503"))}
	secondary := &fakeProvider{name: "secondary", payload: validPayload}
	r := f.runner(t, primary, secondary)

	out := r.RunOnce(ctx, "")
	require.NoError(t, out.Err)
	assert.Equal(t, StatusProcessed, out.Status)
	assert.Equal(t, ModeQueued, out.Mode)
	assert.Equal(t, "A1", out.AttemptID)
	assert.Equal(t, "secondary", out.Provider)

	ev, err := f.evaluations.GetByAttempt(ctx, "A1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "secondary", ev.ProviderName)
	assert.Equal(t, 6.5, ev.OverallBand)
	assert.Equal(t, 6.5, ev.Task2Band)

	job, err := f.jobs.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Equal(t, 1, job.AttemptCount)

	attempt, err := f.attempts.Get(ctx, "A1")
	require.NoError(t, err)
	assert.NotNil(t, attempt.EvaluatedAt)

	// the provider saw both tasks with defaults applied
	t2, ok := secondary.seen.Task(2)
	require.True(t, ok)
	assert.Equal(t, constants.DefaultTask2WordLimit, t2.WordLimit)
	assert.Equal(t, constants.DefaultPrompt(constants.ModeAcademic, 2), t2.Prompt)
}

func TestRunner_IdempotentSecondRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "A1", constants.AttemptStatusSubmitted, bothTasks)
	p := &fakeProvider{name: "primary", payload: validPayload}
	r := f.runner(t, p)

	first := r.RunOnce(ctx, "A1")
	require.Equal(t, StatusProcessed, first.Status, first.String())
	assert.Equal(t, ModeForced, first.Mode)

	second := r.RunOnce(ctx, "A1")
	require.Equal(t, StatusProcessed, second.Status, second.String())
	assert.Equal(t, ModeAlreadyDone, second.Mode)
	assert.Equal(t, 1, p.Calls())

	evs, err := f.evaluations.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	// a forced run on a done job loses the lock, so it is not counted as a lock
	job, err := f.jobs.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Equal(t, 1, job.AttemptCount)
}

func TestRunner_ReenqueuedAfterEvaluationSkipsProviders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "A1", constants.AttemptStatusSubmitted, bothTasks)
	p := &fakeProvider{name: "primary", payload: validPayload}
	r := f.runner(t, p)

	require.Equal(t, StatusProcessed, r.RunOnce(ctx, "").Status)
	_, err := f.jobs.Enqueue(ctx, "A1")
	require.NoError(t, err)

	out := r.RunOnce(ctx, "")
	assert.Equal(t, StatusProcessed, out.Status)
	assert.Equal(t, ModeAlreadyDone, out.Mode)
	assert.Equal(t, 1, p.Calls())

	job, err := f.jobs.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Equal(t, 2, job.AttemptCount)
}

func TestRunner_NoWork(t *testing.T) {
	f := newFixture(t)
	out := f.runner(t, &fakeProvider{name: "primary", payload: validPayload}).RunOnce(context.Background(), "")
	assert.Equal(t, StatusNotProcessed, out.Status)
	assert.True(t, out.NoWork())
	assert.NoError(t, out.Err)
}

func TestRunner_PreconditionFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		target  string
		wantMsg string
	}{
		{
			name: "empty_answers",
			setup: func(t *testing.T, f *fixture) {
				f.submit(t, "A1", constants.AttemptStatusSubmitted, map[int]string{1: "   ", 2: "\n"})
			},
			target:  "A1",
			wantMsg: "no answer text",
		},
		{
			name: "no_answer_rows",
			setup: func(t *testing.T, f *fixture) {
				f.submit(t, "A1", constants.AttemptStatusSubmitted, nil)
			},
			target:  "A1",
			wantMsg: "no answer text",
		},
		{
			name: "draft_attempt",
			setup: func(t *testing.T, f *fixture) {
				f.submit(t, "A1", constants.AttemptStatusDraft, bothTasks)
			},
			target:  "A1",
			wantMsg: "not evaluable (status=draft)",
		},
		{
			name:    "missing_attempt",
			setup:   func(t *testing.T, f *fixture) {},
			target:  "ghost",
			wantMsg: "attempt ghost not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			tt.setup(t, f)
			p := &fakeProvider{name: "primary", payload: validPayload}

			out := f.runner(t, p).RunOnce(ctx, tt.target)
			assert.Equal(t, StatusError, out.Status)
			require.Error(t, out.Err)
			assert.True(t, errors.Is(out.Err, common.ErrPrecondition))
			assert.Contains(t, out.Err.Error(), tt.wantMsg)
			assert.Zero(t, p.Calls())

			job, err := f.jobs.Get(ctx, tt.target)
			require.NoError(t, err)
			assert.Equal(t, constants.JobStatusFailed, job.Status)
			require.NotNil(t, job.LastError)
			assert.Equal(t, out.Err.Error(), *job.LastError)
		})
	}
}

func TestRunner_AggregateFailureMarksJobFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "A1", constants.AttemptStatusSubmitted, bothTasks)
	r := f.runner(t,
		&fakeProvider{name: "primary", err: llm.ConfigError("primary", "PRIMARY_API_KEY is not set")},
		&fakeProvider{name: "secondary", payload: "not json"},
	)

	out := r.RunOnce(ctx, "")
	assert.Equal(t, StatusError, out.Status)
	_, ok := AsAggregate(out.Err)
	require.True(t, ok)

	job, err := f.jobs.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	require.NotNil(t, job.LastError)
	assert.Contains(t, *job.LastError, "primary: configuration")
	assert.Contains(t, *job.LastError, "secondary: malformed_output")

	ev, err := f.evaluations.GetByAttempt(ctx, "A1")
	require.NoError(t, err)
	assert.Nil(t, ev)

	// a failed job is not picked up again without an explicit re-enqueue
	assert.True(t, r.RunOnce(ctx, "").NoWork())

	forced := r.RunOnce(ctx, "A1")
	assert.Equal(t, StatusError, forced.Status)
	assert.Contains(t, forced.Err.Error(), "re-enqueue")
}

func TestRunner_LostLockReportsBusy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "A1", constants.AttemptStatusSubmitted, bothTasks)
	won, err := f.jobs.Lock(ctx, "A1")
	require.NoError(t, err)
	require.True(t, won)

	p := &fakeProvider{name: "primary", payload: validPayload}
	out := f.runner(t, p).RunOnce(ctx, "A1")
	assert.Equal(t, StatusNotProcessed, out.Status)
	assert.Equal(t, ReasonBusy, out.Reason)
	assert.Zero(t, p.Calls())

	job, err := f.jobs.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, job.Status)
}

func TestRunner_ConcurrentRunsEvaluateOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "A1", constants.AttemptStatusSubmitted, bothTasks)
	p := &fakeProvider{name: "primary", payload: validPayload}
	r := f.runner(t, p)

	const n = 6
	outs := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = r.RunOnce(common.WithWorkerID(ctx, i+1), "A1")
		}(i)
	}
	wg.Wait()

	evaluated := 0
	for _, o := range outs {
		assert.NotEqual(t, StatusError, o.Status, o.String())
		if o.Status == StatusProcessed && o.Mode == ModeForced {
			evaluated++
		}
	}
	assert.Equal(t, 1, evaluated)
	assert.Equal(t, 1, p.Calls())

	evs, err := f.evaluations.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}
