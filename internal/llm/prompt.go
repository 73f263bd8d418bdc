package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/writing-eval/constants"
	"github.com/joseph-ayodele/writing-eval/internal/evaluation"
)

// BuildSystemPrompt composes the grading instruction shared by every backend.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an experienced examiner for a two-task writing test.",
		"The user message names the test module; grade Task 1 against that module's task type.",
		"Grade both tasks with the public band descriptors: Task Achievement/Response, Coherence and Cohesion, Lexical Resource, Grammatical Range and Accuracy.",
		"Every band is a number from 0 to 9 in steps of 0.5.",
		"Task 2 carries twice the weight of Task 1 in the overall band.",
		"If a task answer is empty set its band and criteria to null and add a warning.",
		"If an answer is shorter than the minimum word count, penalise Task Achievement/Response and add a warning.",
		"Report confidence as low, medium or high. Never report low confidence with an overall band of " + fmt.Sprintf("%.1f", evaluation.TopTierBand) + " or above.",
		"Set evaluation_version to \"" + evaluation.Version + "\".",
		"Return ONLY one JSON object that matches the JSON Schema below. No prose, no markdown.",
		"JSON Schema:\n" + mustJSON(evaluation.BuildEvaluationJSONSchema()),
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt renders the two tasks of the request.
func BuildUserPrompt(req EvaluationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n", req.Mode)
	for _, n := range constants.TaskNumbers {
		t, ok := req.Task(n)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n### Task %d (minimum %d words, submitted %d words)\n", t.Number, t.WordLimit, t.WordCount)
		b.WriteString("Prompt:\n")
		b.WriteString(strings.TrimSpace(t.Prompt))
		b.WriteString("\n\nAnswer:\n")
		if a := strings.TrimSpace(t.Answer); a != "" {
			b.WriteString(a)
		} else {
			b.WriteString("(no answer submitted)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
