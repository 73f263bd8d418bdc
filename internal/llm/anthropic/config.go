package anthropic

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

// APIVersion is sent as the anthropic-version header.
const APIVersion = "2023-06-01"

// Config for the Anthropic messages client.
type Config struct {
	Name        string        // default "anthropic"
	APIKey      string
	BaseURL     string        // default https://api.anthropic.com/v1
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration // per-call deadline
	RPS         float64
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = "anthropic"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: llm.NewLimiter(cfg.RPS),
		log:     logger.With("provider", cfg.Name),
	}
}

func (c *Client) Name() string  { return c.cfg.Name }
func (c *Client) Model() string { return c.cfg.Model }
