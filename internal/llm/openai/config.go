package openai

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

// Config for the OpenAI client.
type Config struct {
	Name        string        // identity used in results and failure trails; default "openai"
	APIKey      string        // required at call time; absence is a provider-scoped failure
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	Temperature float32       // 0..2
	MaxTokens   int           // completion budget
	Timeout     time.Duration // per-call deadline
	RPS         float64       // requests per second; <= 0 disables limiting
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
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
