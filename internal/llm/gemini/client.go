package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

var _ llm.Provider = (*Client)(nil)

// Evaluate implements llm.Provider using models/{model}:generateContent with a JSON response
// mime type.
func (c *Client) Evaluate(ctx context.Context, req llm.EvaluationRequest) (llm.Response, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.evaluate.start", "req_id", rid, "attempt_id", req.AttemptID, "model", c.cfg.Model)

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.log.Warn("llm.evaluate.missing_credentials", "req_id", rid)
		return llm.Response{}, llm.ConfigError(c.cfg.Name, "GEMINI_API_KEY is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return llm.Response{}, llm.TransportError(c.cfg.Name, 0, nil, err)
	}

	body := map[string]any{
		"systemInstruction": map[string]any{
			"parts": []map[string]any{{"text": llm.BuildSystemPrompt()}},
		},
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": llm.BuildUserPrompt(req)}}},
		},
		"generationConfig": map[string]any{
			"temperature":      c.cfg.Temperature,
			"maxOutputTokens":  c.cfg.MaxTokens,
			"responseMimeType": "application/json",
		},
	}

	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	raw, status, err := llm.SendJSON(common.WithRequestID(ctx, rid), c.http, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.evaluate.http_error", "req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Response{}, llm.TransportError(c.cfg.Name, status, raw, err)
	}

	var gr struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &gr); err != nil {
		return llm.Response{}, llm.MalformedError(c.cfg.Name, "decode generateContent envelope", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		c.log.Error("llm.evaluate.no_candidates", "req_id", rid)
		return llm.Response{}, llm.EmptyError(c.cfg.Name, "no candidates in response")
	}

	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	resp, err := llm.ParseContent(c.cfg.Name, c.cfg.Model, text.String())
	if err != nil {
		c.log.Error("llm.evaluate.parse_failed", "req_id", rid, "error", err)
		return llm.Response{}, err
	}
	c.log.Info("llm.evaluate.ok", "req_id", rid, "salvaged", resp.Salvaged,
		"finish_reason", gr.Candidates[0].FinishReason, "elapsed_ms", time.Since(start).Milliseconds())
	return resp, nil
}
