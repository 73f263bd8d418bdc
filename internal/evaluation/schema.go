package evaluation

// Version tags the payload contract the validator enforces.
const Version = "v1.0"

// Confidence levels a payload may report.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Criteria keys, identical for both tasks.
var CriteriaKeys = []string{"task_response", "coherence_cohesion", "lexical_resource", "grammar_accuracy"}

// BuildEvaluationJSONSchema returns the JSON Schema (draft 2020-12 subset) of a candidate
// evaluation as a generic map. Bands are exact multiples of 0.5 in [0, 9]. Task 1 may be null
// as a whole; task2_band never may.
func BuildEvaluationJSONSchema() map[string]any {
	criteria := func(nullable bool) map[string]any {
		props := map[string]any{}
		for _, k := range CriteriaKeys {
			props[k] = bandProp(nullable)
		}
		obj := map[string]any{
			"type":                 "object",
			"properties":           props,
			"required":             CriteriaKeys,
			"additionalProperties": false,
		}
		if nullable {
			return map[string]any{"anyOf": []any{obj, map[string]any{"type": "null"}}}
		}
		return obj
	}
	stringList := func(minItems int) map[string]any {
		return map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string", "minLength": 1},
			"minItems": minItems,
		}
	}

	props := map[string]any{
		"evaluation_version":  map[string]any{"type": "string", "minLength": 3},
		"confidence":          map[string]any{"type": "string", "enum": []any{ConfidenceLow, ConfidenceMedium, ConfidenceHigh}},
		"overall_band":        bandProp(false),
		"task1_band":          bandProp(true),
		"task2_band":          bandProp(false),
		"task1_criteria":      criteria(true),
		"task2_criteria":      criteria(false),
		"task1_verdict":       map[string]any{"type": []any{"string", "null"}},
		"task2_verdict":       map[string]any{"type": "string", "minLength": 1},
		"strengths":           stringList(1),
		"weaknesses":          stringList(1),
		"improvement_actions": stringList(1),
		"warnings":            stringList(0),
		"next_steps":          stringList(0),
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required": []any{
			"evaluation_version", "confidence",
			"overall_band", "task1_band", "task2_band",
			"task1_criteria", "task2_criteria",
			"task2_verdict",
			"strengths", "weaknesses", "improvement_actions",
			"warnings",
		},
		"additionalProperties": false,
	}
}

func bandProp(nullable bool) map[string]any {
	p := map[string]any{
		"type":       "number",
		"minimum":    0,
		"maximum":    9,
		"multipleOf": 0.5,
	}
	if nullable {
		p["type"] = []any{"number", "null"}
	}
	return p
}
