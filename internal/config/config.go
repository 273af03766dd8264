package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty keeps stories in memory only.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	DuplicateThreshold float64 `envconfig:"DUPLICATE_THRESHOLD" default:"0.85"`

	EmbeddingProvider   string        `envconfig:"EMBEDDING_PROVIDER" default:"http"`
	EmbeddingEndpoint   string        `envconfig:"EMBEDDING_ENDPOINT" default:""`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:""`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"20s"`
	EmbeddingCacheSize  int           `envconfig:"EMBEDDING_CACHE_SIZE" default:"4096"`
	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY" default:""`

	LLMProvider string        `envconfig:"LLM_PROVIDER" default:"none"`
	LLMAPIKey   string        `envconfig:"LLM_API_KEY" default:""`
	LLMModel    string        `envconfig:"LLM_MODEL" default:""`
	LLMBaseURL  string        `envconfig:"LLM_BASE_URL" default:""`
	LLMTimeout  time.Duration `envconfig:"LLM_TIMEOUT" default:"8s"`

	ReferenceDataPath string `envconfig:"REFERENCE_DATA_PATH" default:""`
	PipelineWorkers   int    `envconfig:"PIPELINE_WORKERS" default:"4"`
	FetchMissingBody  bool   `envconfig:"FETCH_MISSING_BODY" default:"false"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("DUPLICATE_THRESHOLD must be in (0, 1], got %v", c.DuplicateThreshold)
	}

	switch strings.ToLower(strings.TrimSpace(c.EmbeddingProvider)) {
	case "http":
	case "openai":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be http or openai, got %q", c.EmbeddingProvider)
	}
	if c.EmbeddingDimensions < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be >= 1")
	}
	if c.EmbeddingTimeout <= 0 {
		return fmt.Errorf("EMBEDDING_TIMEOUT must be positive")
	}
	if c.EmbeddingCacheSize < 0 {
		return fmt.Errorf("EMBEDDING_CACHE_SIZE must be >= 0")
	}

	switch provider := strings.ToLower(strings.TrimSpace(c.LLMProvider)); provider {
	case "", "none":
	case "gemini", "openai", "claude":
		if strings.TrimSpace(c.LLMAPIKey) == "" {
			return fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER=%s", provider)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of none, gemini, openai, claude; got %q", c.LLMProvider)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.PipelineWorkers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be >= 1")
	}
	return nil
}

// HasDatabase reports whether stories should be persisted.
func (c *Config) HasDatabase() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
