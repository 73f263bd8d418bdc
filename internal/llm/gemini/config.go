package gemini

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/writing-eval/internal/llm"
)

// Config for the Gemini generateContent client.
type Config struct {
	Name        string // default "gemini"
	APIKey      string
	BaseURL     string // default https://generativelanguage.googleapis.com/v1beta
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
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
		cfg.Name = "gemini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
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
