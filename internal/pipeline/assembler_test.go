package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/entity"
)

func TestAssembler_FillsDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prompt := "Describe the process shown in the diagram."
	limit := 180
	require.NoError(t, f.answers.Create(ctx, entity.TaskAnswer{
		AttemptID: "A1", TaskNumber: 1, AnswerText: "The diagram shows how bricks are made.",
		PromptText: &prompt, WordLimit: &limit,
	}))

	a := NewAssembler(discardLogger(), f.answers)
	req, err := a.Assemble(ctx, &entity.Attempt{ID: "A1", Mode: constants.ModeGeneral})
	require.NoError(t, err)
	require.Len(t, req.Tasks, 2)

	t1, ok := req.Task(1)
	require.True(t, ok)
	assert.Equal(t, prompt, t1.Prompt)
	assert.Equal(t, 180, t1.WordLimit)
	assert.Equal(t, 7, t1.WordCount)

	// task 2 has no row: canned prompt and default limit, empty answer
	t2, ok := req.Task(2)
	require.True(t, ok)
	assert.Equal(t, constants.DefaultPrompt(constants.ModeGeneral, 2), t2.Prompt)
	assert.Equal(t, constants.DefaultTask2WordLimit, t2.WordLimit)
	assert.Empty(t, t2.Answer)
	assert.Zero(t, t2.WordCount)
	assert.False(t, req.Blank())
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("  \n\t "))
	assert.Equal(t, 3, CountWords(" one  two\nthree "))
}
