package providers

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	"github.com/joseph-ayodele/writing-eval/internal/llm"
	"github.com/joseph-ayodele/writing-eval/internal/llm/anthropic"
	"github.com/joseph-ayodele/writing-eval/internal/llm/gemini"
	"github.com/joseph-ayodele/writing-eval/internal/llm/openai"
)

// Build constructs adapters in fallback order. A backend without an API key is still built;
// it fails with a configuration error at call time so the next backend gets its turn.
func Build(cfgs []common.ProviderConfig, logger *slog.Logger) ([]llm.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]llm.Provider, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := build(c, logger)
		if err != nil {
			return nil, err
		}
		if c.APIKey == "" {
			logger.Warn("provider has no API key", "provider", c.Name)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, common.NewAppError(common.CodeConfig, "no providers configured", common.ErrProviderConfig)
	}
	names := make([]string, len(out))
	for i, p := range out {
		names[i] = p.Name() + "/" + p.Model()
	}
	logger.Info("providers configured", "order", names)
	return out, nil
}

func build(c common.ProviderConfig, logger *slog.Logger) (llm.Provider, error) {
	switch c.Name {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey: c.APIKey, BaseURL: c.BaseURL, Model: c.Model,
			Temperature: c.Temperature, Timeout: c.Timeout, RPS: c.RPS,
		}, logger), nil
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey: c.APIKey, BaseURL: c.BaseURL, Model: c.Model,
			Temperature: c.Temperature, Timeout: c.Timeout, RPS: c.RPS,
		}, logger), nil
	case "gemini":
		return gemini.NewClient(gemini.Config{
			APIKey: c.APIKey, BaseURL: c.BaseURL, Model: c.Model,
			Temperature: c.Temperature, Timeout: c.Timeout, RPS: c.RPS,
		}, logger), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown provider %q", c.Name), common.ErrProviderConfig)
	}
}
