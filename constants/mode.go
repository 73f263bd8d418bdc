package constants

import (
	"strings"
)

// Mode selects the exam module an attempt was written for.
type Mode string

const (
	ModeAcademic Mode = "academic"
	ModeGeneral  Mode = "general"
)

var allModes = []Mode{
	ModeAcademic,
	ModeGeneral,
}

func ModesAsStringSlice() []string {
	result := make([]string, len(allModes))
	for i, m := range allModes {
		result[i] = string(m)
	}
	return result
}

// ParseMode canonicalizes a free-form mode label. Unknown input falls back to academic.
func ParseMode(input string) (Mode, bool) {
	if input == "" {
		return ModeAcademic, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Mode{
		"ac":               ModeAcademic,
		"aca":              ModeAcademic,
		"gt":               ModeGeneral,
		"general training": ModeGeneral,
		"general_training": ModeGeneral,
	}
	if m, ok := synonyms[normalized]; ok {
		return m, true
	}

	for _, m := range allModes {
		if normalized == string(m) {
			return m, true
		}
	}

	return ModeAcademic, false
}
