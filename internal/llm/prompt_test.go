package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/evaluation"
)

func TestBuildSystemPrompt_CarriesContract(t *testing.T) {
	p := BuildSystemPrompt()
	assert.Contains(t, p, `"task2_criteria"`)
	assert.Contains(t, p, `evaluation_version to "`+evaluation.Version+`"`)
	assert.Contains(t, p, "8.5")
	// the module comes from the request, so the shared prompt must not pin one
	assert.NotContains(t, p, string(constants.ModeAcademic))
	assert.NotContains(t, p, string(constants.ModeGeneral))
}

func TestBuildUserPrompt_NamesGeneralModule(t *testing.T) {
	req := EvaluationRequest{
		AttemptID: "G1",
		Mode:      constants.ModeGeneral,
		Tasks:     []TaskInput{{Number: 1, Prompt: "Write a letter.", Answer: "Dear Sir,", WordLimit: 150, WordCount: 2}},
	}
	assert.Contains(t, BuildUserPrompt(req), "Module: general")
}

func TestBuildUserPrompt(t *testing.T) {
	req := EvaluationRequest{
		AttemptID: "A1",
		Mode:      constants.ModeAcademic,
		Tasks: []TaskInput{
			{Number: 2, Prompt: "Discuss both views.", Answer: "Some people argue...", WordLimit: 250, WordCount: 3},
			{Number: 1, Prompt: "Summarise the chart.", Answer: "  ", WordLimit: 150},
		},
	}
	p := BuildUserPrompt(req)

	assert.Contains(t, p, "Module: academic")
	assert.Contains(t, p, "### Task 1 (minimum 150 words, submitted 0 words)")
	assert.Contains(t, p, "(no answer submitted)")
	assert.Contains(t, p, "Some people argue...")
	// task 1 is rendered first regardless of input order
	assert.Less(t, strings.Index(p, "### Task 1"), strings.Index(p, "### Task 2"))
}

func TestEvaluationRequest_Blank(t *testing.T) {
	assert.True(t, EvaluationRequest{}.Blank())
	assert.True(t, EvaluationRequest{Tasks: []TaskInput{{Number: 1, Answer: " \n"}}}.Blank())
	assert.False(t, EvaluationRequest{Tasks: []TaskInput{{Number: 2, Answer: "text"}}}.Blank())
}
