package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

var bandKeys = []string{"overall_band", "task1_band", "task2_band"}

// NormalizePayload repairs cosmetic deviations models commonly make without inventing data:
//   - renames known synonyms (overall -> overall_band, confidence_level -> confidence)
//   - lowercases and trims confidence
//   - coerces numeric strings in band fields to numbers, keeping their exact decimal text
//   - turns a bare string in a list field into a one-item list
//
// It returns the rewritten document and the list of changes applied.
func NormalizePayload(raw []byte) ([]byte, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}

	changed := make([]string, 0, 4)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changed = append(changed, from+"->"+to)
		}
	}

	// 1) synonyms
	rename("overall", "overall_band")
	rename("band", "overall_band")
	rename("task_1_band", "task1_band")
	rename("task_2_band", "task2_band")
	rename("confidence_level", "confidence")
	rename("version", "evaluation_version")
	rename("actions", "improvement_actions")

	// 2) confidence casing
	if v, ok := m["confidence"].(string); ok {
		c := strings.ToLower(strings.TrimSpace(v))
		if c != v {
			m["confidence"] = c
			changed = append(changed, "confidence(case)")
		}
	}

	// 3) band strings -> numbers
	coerce := func(obj map[string]any, k, label string) {
		s, ok := obj[k].(string)
		if !ok {
			return
		}
		s = strings.TrimSpace(s)
		if json.Valid([]byte(s)) {
			var n json.Number
			if err := json.Unmarshal([]byte(s), &n); err == nil {
				obj[k] = n
				changed = append(changed, label+"(string)")
			}
		}
	}
	for _, k := range bandKeys {
		coerce(m, k, k)
	}
	for _, ck := range []string{"task1_criteria", "task2_criteria"} {
		if obj, ok := m[ck].(map[string]any); ok {
			for _, k := range CriteriaKeys {
				coerce(obj, k, ck+"."+k)
			}
		}
	}

	// 4) scalar -> list
	for _, k := range []string{"strengths", "weaknesses", "improvement_actions", "warnings", "next_steps"} {
		if s, ok := m[k].(string); ok {
			if strings.TrimSpace(s) == "" {
				m[k] = []any{}
			} else {
				m[k] = []any{strings.TrimSpace(s)}
			}
			changed = append(changed, k+"(scalar)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("normalize: encode: %w", err)
	}
	return out, changed, nil
}
