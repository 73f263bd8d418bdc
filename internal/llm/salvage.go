package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ExtractJSON turns a model's text reply into a JSON object. Clean JSON is returned as is.
// Otherwise markdown fences are stripped and the slice from the first '{' to the last '}'
// is tried. salvaged reports whether the reply needed either repair.
func ExtractJSON(text string) (payload json.RawMessage, salvaged bool, err error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, false, errors.New("empty content")
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), false, nil
	}

	s = stripFences(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, false, errors.New("no JSON object found in content")
	}
	slice := s[start : end+1]
	if !json.Valid([]byte(slice)) {
		return nil, false, errors.New("salvaged slice is not valid JSON")
	}
	return json.RawMessage(slice), true, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// ParseContent applies ExtractJSON and maps failures onto provider error kinds.
func ParseContent(provider, model, text string) (Response, error) {
	if strings.TrimSpace(text) == "" {
		return Response{}, EmptyError(provider, "response carried no text")
	}
	payload, salvaged, err := ExtractJSON(text)
	if err != nil {
		return Response{}, MalformedError(provider, "could not parse JSON from content", err)
	}
	return Response{Provider: provider, Model: model, Payload: payload, Salvaged: salvaged}, nil
}
