package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Providers  ProvidersConfig
	Worker     WorkerConfig
	Redis      RedisConfig
	Evaluation EvaluationConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// ProviderConfig configures one language-model backend.
type ProviderConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	RPS         float64
}

// ProvidersConfig lists backends in fallback order.
type ProvidersConfig struct {
	Order []string
	ByKey map[string]ProviderConfig
}

// Ordered returns the configured providers in fallback order, skipping unknown names.
func (p ProvidersConfig) Ordered() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(p.Order))
	for _, name := range p.Order {
		if pc, ok := p.ByKey[name]; ok {
			out = append(out, pc)
		}
	}
	return out
}

// WorkerConfig holds scheduler configuration
type WorkerConfig struct {
	Workers      int
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// RedisConfig enables the optional enqueue wake-up channel
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// EvaluationConfig tunes payload validation
type EvaluationConfig struct {
	// LenientNormalize repairs cosmetic payload deviations before a second validation pass.
	LenientNormalize bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	rps := getEnvAsFloat64("PROVIDER_RPS", 2)
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Providers: ProvidersConfig{
			Order: getEnvAsList("PROVIDER_ORDER", []string{"openai", "anthropic", "gemini"}),
			ByKey: map[string]ProviderConfig{
				"openai": {
					Name:        "openai",
					APIKey:      getEnv("OPENAI_API_KEY", ""),
					BaseURL:     getEnv("OPENAI_BASE_URL", ""),
					Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
					Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
					Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
					RPS:         rps,
				},
				"anthropic": {
					Name:        "anthropic",
					APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
					BaseURL:     getEnv("ANTHROPIC_BASE_URL", ""),
					Model:       getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
					Temperature: getEnvAsFloat32("ANTHROPIC_TEMPERATURE", 0.0),
					Timeout:     getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
					RPS:         rps,
				},
				"gemini": {
					Name:        "gemini",
					APIKey:      getEnv("GEMINI_API_KEY", ""),
					BaseURL:     getEnv("GEMINI_BASE_URL", ""),
					Model:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
					Temperature: getEnvAsFloat32("GEMINI_TEMPERATURE", 0.0),
					Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
					RPS:         rps,
				},
			},
		},
		Worker: WorkerConfig{
			Workers:      getEnvAsInt("WORKERS", 2),
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
			RunTimeout:   getEnvAsDuration("RUN_TIMEOUT", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_CHANNEL", "writing-eval:jobs"),
		},
		Evaluation: EvaluationConfig{
			LenientNormalize: getEnvAsBool("EVAL_LENIENT_NORMALIZE", false),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate checks the loaded configuration. Missing provider keys are not an error here;
// they surface as provider-scoped failures at evaluation time.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	if len(c.Providers.Ordered()) == 0 {
		return NewAppError(CodeConfig, fmt.Sprintf("PROVIDER_ORDER names no known provider: %v", c.Providers.Order), ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 {
		return NewAppError(CodeConfig, "WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
