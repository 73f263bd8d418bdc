package openai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

var _ llm.Provider = (*Client)(nil)

// Evaluate implements llm.Provider using chat/completions in JSON mode.
func (c *Client) Evaluate(ctx context.Context, req llm.EvaluationRequest) (llm.Response, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.evaluate.start",
		"req_id", rid,
		"attempt_id", req.AttemptID,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
	)

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.log.Warn("llm.evaluate.missing_credentials", "req_id", rid)
		return llm.Response{}, llm.ConfigError(c.cfg.Name, "OPENAI_API_KEY is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return llm.Response{}, llm.TransportError(c.cfg.Name, 0, nil, err)
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := llm.SendJSON(common.WithRequestID(ctx, rid), c.http, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.evaluate.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, llm.TransportError(c.cfg.Name, status, raw, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.evaluate.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return llm.Response{}, llm.MalformedError(c.cfg.Name, "decode chat completion envelope", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.evaluate.no_choices", "req_id", rid)
		return llm.Response{}, llm.EmptyError(c.cfg.Name, "no choices in response")
	}

	resp, err := llm.ParseContent(c.cfg.Name, c.cfg.Model, cc.Choices[0].Message.Content)
	if err != nil {
		c.log.Error("llm.evaluate.parse_failed", "req_id", rid, "error", err)
		return llm.Response{}, err
	}

	c.log.Info("llm.evaluate.ok",
		"req_id", rid,
		"salvaged", resp.Salvaged,
		"payload_bytes", len(resp.Payload),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
