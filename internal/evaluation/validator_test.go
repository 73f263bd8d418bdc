package evaluation

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/writing-eval/internal/common"
)

func newTestValidator(t *testing.T, opts ...Option) *Validator {
	t.Helper()
	v, err := NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	require.NoError(t, err)
	return v
}

// validDoc returns a payload that satisfies the contract; tests mutate it.
func validDoc() map[string]any {
	crit := func(a, b, c, d float64) map[string]any {
		return map[string]any{
			"task_response":      a,
			"coherence_cohesion": b,
			"lexical_resource":   c,
			"grammar_accuracy":   d,
		}
	}
	return map[string]any{
		"evaluation_version":  Version,
		"confidence":          "medium",
		"overall_band":        6.5,
		"task1_band":          6.0,
		"task2_band":          6.5,
		"task1_criteria":      crit(6, 6, 6.5, 5.5),
		"task2_criteria":      crit(6.5, 6.5, 6, 7),
		"task1_verdict":       "Accurate overview, limited comparison.",
		"task2_verdict":       "Clear position with uneven development.",
		"strengths":           []any{"clear overview"},
		"weaknesses":          []any{"repetitive linking"},
		"improvement_actions": []any{"compare data points explicitly"},
		"warnings":            []any{},
		"next_steps":          []any{"practise line graphs"},
	}
}

func encode(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	return b
}

func TestValidator_AcceptsValidPayload(t *testing.T) {
	v := newTestValidator(t)

	p, err := v.Validate(encode(t, validDoc()))
	require.NoError(t, err)
	require.NotNil(t, p.OverallBand)
	assert.Equal(t, 6.5, *p.OverallBand)
	require.NotNil(t, p.Task2Band)
	assert.Equal(t, 6.5, *p.Task2Band)
	assert.Equal(t, "medium", p.Confidence)
	require.NotNil(t, p.Task1Criteria)

	ev := p.ToEntity("A1")
	assert.Equal(t, "A1", ev.AttemptID)
	assert.Equal(t, 6.5, ev.OverallBand)
	assert.Equal(t, Version, ev.Meta.EvaluationVersion)
	assert.Equal(t, []string{"clear overview"}, ev.Notes.Strengths)
}

func TestValidator_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc map[string]any)
		wantMsg string
	}{
		{
			name:    "missing_task2_band",
			mutate:  func(doc map[string]any) { delete(doc, "task2_band") },
			wantMsg: "task2_band",
		},
		{
			name:    "null_task2_band",
			mutate:  func(doc map[string]any) { doc["task2_band"] = nil },
			wantMsg: "task2_band",
		},
		{
			name: "low_confidence_with_top_band",
			mutate: func(doc map[string]any) {
				doc["confidence"] = "low"
				doc["overall_band"] = 9.0
			},
			wantMsg: "confidence=low",
		},
		{
			name: "low_confidence_at_threshold",
			mutate: func(doc map[string]any) {
				doc["confidence"] = "low"
				doc["overall_band"] = 8.5
			},
			wantMsg: "confidence=low",
		},
		{
			name:    "unknown_confidence",
			mutate:  func(doc map[string]any) { doc["confidence"] = "certain" },
			wantMsg: "confidence",
		},
		{
			name:    "short_version_tag",
			mutate:  func(doc map[string]any) { doc["evaluation_version"] = "v1" },
			wantMsg: "evaluation_version",
		},
		{
			name:    "band_above_nine",
			mutate:  func(doc map[string]any) { doc["overall_band"] = 9.5 },
			wantMsg: "overall_band",
		},
		{
			name:    "negative_criteria_band",
			mutate:  func(doc map[string]any) { doc["task2_criteria"].(map[string]any)["lexical_resource"] = -0.5 },
			wantMsg: "lexical_resource",
		},
		{
			name:    "empty_strengths",
			mutate:  func(doc map[string]any) { doc["strengths"] = []any{} },
			wantMsg: "strengths",
		},
		{
			name:    "unexpected_field",
			mutate:  func(doc map[string]any) { doc["reasoning"] = "hidden" },
			wantMsg: "reasoning",
		},
	}

	v := newTestValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)

			p, err := v.Validate(encode(t, doc))
			require.Error(t, err)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, common.CodeValidation, common.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidator_BandQuantization(t *testing.T) {
	tests := []struct {
		name   string
		band   string
		wantOK bool
	}{
		{name: "quarter_step", band: "6.25", wantOK: false},
		{name: "tenth_step", band: "7.3", wantOK: false},
		{name: "half_step", band: "6.5", wantOK: true},
		{name: "whole_with_decimal", band: "7.0", wantOK: true},
		{name: "zero", band: "0", wantOK: true},
		{name: "nine", band: "9", wantOK: true},
	}

	v := newTestValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			doc["task2_band"] = json.Number(tt.band)

			_, err := v.Validate(encode(t, doc))
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, common.ErrValidation)
				assert.Contains(t, err.Error(), "multipleOf")
			}
		})
	}
}

func TestValidator_AcceptsCurrentVersionTag(t *testing.T) {
	require.GreaterOrEqual(t, len(Version), 3)

	doc := validDoc()
	doc["evaluation_version"] = Version
	p, err := newTestValidator(t).Validate(encode(t, doc))
	require.NoError(t, err)
	assert.Equal(t, Version, p.EvaluationVersion)
}

func TestValidator_Task1IsNullable(t *testing.T) {
	v := newTestValidator(t)
	doc := validDoc()
	doc["task1_band"] = nil
	doc["task1_criteria"] = nil
	doc["task1_verdict"] = nil

	p, err := v.Validate(encode(t, doc))
	require.NoError(t, err)
	assert.Nil(t, p.Task1Band)
	assert.Nil(t, p.Task1Criteria)

	ev := p.ToEntity("A1")
	assert.Nil(t, ev.Task1Band)
	assert.Empty(t, ev.Task1Verdict)
}

func TestValidator_LenientNormalize(t *testing.T) {
	doc := validDoc()
	doc["confidence"] = "Medium"
	doc["overall_band"] = "6.5"
	delete(doc, "evaluation_version")
	doc["version"] = Version
	raw := encode(t, doc)

	_, err := newTestValidator(t).Validate(raw)
	assert.ErrorIs(t, err, common.ErrValidation)

	p, err := newTestValidator(t, WithLenientNormalize(true)).Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "medium", p.Confidence)
	assert.Equal(t, Version, p.EvaluationVersion)
	require.NotNil(t, p.OverallBand)
	assert.Equal(t, 6.5, *p.OverallBand)
}

func TestValidator_LenientNormalizeDoesNotInventTask2Band(t *testing.T) {
	doc := validDoc()
	delete(doc, "task2_band")

	_, err := newTestValidator(t, WithLenientNormalize(true)).Validate(encode(t, doc))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "task2_band")
}

func TestNormalizePayload_KeepsExactBandText(t *testing.T) {
	out, changed, err := NormalizePayload([]byte(`{"task2_band":"6.25","warnings":"short essay"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"task2_band":6.25,"warnings":["short essay"]}`, string(out))
	assert.ElementsMatch(t, []string{"task2_band(string)", "warnings(scalar)"}, changed)
}
