package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/evaluation"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

func newOrchestrator(t *testing.T, providers ...llm.Provider) *Orchestrator {
	t.Helper()
	v, err := evaluation.NewValidator(discardLogger())
	require.NoError(t, err)
	o, err := NewOrchestrator(discardLogger(), v, providers...)
	require.NoError(t, err)
	return o
}

var sampleRequest = llm.EvaluationRequest{
	AttemptID: "A1",
	Tasks: []llm.TaskInput{
		{Number: 1, Answer: "The chart shows"},
		{Number: 2, Answer: "Some people think"},
	},
}

func TestOrchestrator_FallsThroughInOrder(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: llm.TransportError("primary", 503, nil, errors.New("unavailable"))}
	secondary := &fakeProvider{name: "secondary", payload: "Sure! " + validPayload}
	tertiary := &fakeProvider{name: "tertiary", payload: validPayload}

	res, err := newOrchestrator(t, primary, secondary, tertiary).Evaluate(context.Background(), sampleRequest)
	require.NoError(t, err)

	assert.Equal(t, "secondary", res.Provider)
	assert.Equal(t, "secondary-model", res.Model)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
	assert.Zero(t, tertiary.Calls())

	require.Len(t, res.Trail, 1)
	assert.Equal(t, llm.KindTransport, res.Trail[0].Kind)

	ev := res.Evaluation
	assert.Equal(t, "A1", ev.AttemptID)
	assert.Equal(t, "secondary", ev.ProviderName)
	assert.Equal(t, 6.5, ev.OverallBand)
	assert.True(t, ev.Meta.Salvaged)
	require.Len(t, ev.Meta.FailedProviders, 1)
	assert.Contains(t, ev.Meta.FailedProviders[0], "primary: transport")
	assert.JSONEq(t, validPayload, string(ev.RawPayload))
}

func TestOrchestrator_ValidationFailureFallsThrough(t *testing.T) {
	bad := &fakeProvider{name: "primary", payload: `{"overall_band": 6.3}`}
	good := &fakeProvider{name: "secondary", payload: validPayload}

	res, err := newOrchestrator(t, bad, good).Evaluate(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "secondary", res.Provider)
	require.Len(t, res.Trail, 1)
	assert.Equal(t, KindValidation, res.Trail[0].Kind)
	assert.True(t, errors.Is(res.Trail[0].Err, common.ErrValidation))
}

func TestOrchestrator_AllProvidersFail(t *testing.T) {
	tests := []struct {
		name        string
		providers   []llm.Provider
		wantSummary string
		wantParts   []string
	}{
		{
			name: "all_unreachable",
			providers: []llm.Provider{
				&fakeProvider{name: "primary", err: llm.ConfigError("primary", "PRIMARY_API_KEY is not set")},
				&fakeProvider{name: "secondary", err: llm.TransportError("secondary", 500, []byte("boom"), errors.New("non-2xx status: 500"))},
			},
			wantSummary: "all providers unreachable",
			wantParts:   []string{"primary: configuration", "secondary: transport"},
		},
		{
			name: "all_garbage",
			providers: []llm.Provider{
				&fakeProvider{name: "primary", payload: "I cannot grade this."},
				&fakeProvider{name: "secondary", payload: `{"overall_band": 7}`},
			},
			wantSummary: "all providers returned invalid output",
			wantParts:   []string{"primary: malformed_output", "secondary: VALIDATION_ERROR"},
		},
		{
			name: "mixed",
			providers: []llm.Provider{
				&fakeProvider{name: "primary", err: llm.TransportError("primary", 429, nil, errors.New("non-2xx status: 429"))},
				&fakeProvider{name: "secondary", payload: ""},
			},
			wantSummary: "providers unreachable or returned invalid output",
			wantParts:   []string{"primary: transport", "secondary: empty_payload"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newOrchestrator(t, tt.providers...).Evaluate(context.Background(), sampleRequest)
			require.Error(t, err)
			assert.Nil(t, res)

			agg, ok := AsAggregate(err)
			require.True(t, ok)
			assert.Len(t, agg.Failures, len(tt.providers))
			assert.Equal(t, tt.wantSummary, agg.Summary())
			assert.True(t, errors.Is(err, common.ErrAllProviders))
			for _, part := range tt.wantParts {
				assert.Contains(t, err.Error(), part)
			}
		})
	}
}

func TestOrchestrator_StopsOnCancelledContext(t *testing.T) {
	p := &fakeProvider{name: "primary", payload: validPayload}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newOrchestrator(t, p).Evaluate(ctx, sampleRequest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, p.Calls())
}

func TestNewOrchestrator_RequiresProvider(t *testing.T) {
	v, err := evaluation.NewValidator(discardLogger())
	require.NoError(t, err)
	_, err = NewOrchestrator(discardLogger(), v)
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))
}
