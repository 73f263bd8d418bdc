package anthropic

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

// Evaluate implements llm.Provider using the messages API. The system prompt travels in its
// own field rather than as a message.
func (c *Client) Evaluate(ctx context.Context, req llm.EvaluationRequest) (llm.Response, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.evaluate.start", "req_id", rid, "attempt_id", req.AttemptID, "model", c.cfg.Model)

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.log.Warn("llm.evaluate.missing_credentials", "req_id", rid)
		return llm.Response{}, llm.ConfigError(c.cfg.Name, "ANTHROPIC_API_KEY is not set")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return llm.Response{}, llm.TransportError(c.cfg.Name, 0, nil, err)
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"system":      llm.BuildSystemPrompt(),
		"messages": []map[string]any{
			{"role": "user", "content": llm.BuildUserPrompt(req)},
		},
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": APIVersion,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	raw, status, err := llm.SendJSON(common.WithRequestID(ctx, rid), c.http, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.evaluate.http_error", "req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Response{}, llm.TransportError(c.cfg.Name, status, raw, err)
	}

	var msg struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return llm.Response{}, llm.MalformedError(c.cfg.Name, "decode messages envelope", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" || block.Type == "" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		c.log.Error("llm.evaluate.no_text", "req_id", rid, "stop_reason", msg.StopReason)
		return llm.Response{}, llm.EmptyError(c.cfg.Name, "no text content blocks")
	}

	resp, err := llm.ParseContent(c.cfg.Name, c.cfg.Model, text.String())
	if err != nil {
		c.log.Error("llm.evaluate.parse_failed", "req_id", rid, "error", err)
		return llm.Response{}, err
	}
	c.log.Info("llm.evaluate.ok", "req_id", rid, "salvaged", resp.Salvaged, "stop_reason", msg.StopReason,
		"elapsed_ms", time.Since(start).Milliseconds())
	return resp, nil
}
