package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default generation settings. Temperature stays moderate so the model can
// vary phrasing while staying grounded in the sources embedded in the prompt.
const (
	DefaultModelName   = "gemini-2.5-flash"
	DefaultTemperature = 0.7

	// DefaultSoftResponseLimit is a target ceiling for one full research
	// round trip. Crossing it logs a warning; it never aborts a query.
	DefaultSoftResponseLimit = 20 * time.Second

	// DefaultFederalConcurrency bounds the per-domain federal search
	// fan-out so a long domain list does not hammer the provider.
	DefaultFederalConcurrency = 4
)

// Config carries the runtime settings for the advisor backend. All values
// come from the environment; Load fails when a required credential is
// missing so a misconfigured deployment dies at startup rather than on the
// first query.
type Config struct {
	GeminiAPIKey string
	SerperAPIKey string

	ModelName   string
	Temperature float64

	Port        string
	DatabaseURL string

	// SourceRegistryPath optionally points at a YAML file overriding the
	// built-in source registry.
	SourceRegistryPath string

	FederalConcurrency int
	SoftResponseLimit  time.Duration
}

// Load reads configuration from the environment and applies defaults for
// everything that is not a credential.
func Load() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		SerperAPIKey:       os.Getenv("SERPER_API_KEY"),
		ModelName:          DefaultModelName,
		Temperature:        DefaultTemperature,
		Port:               "8080",
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SourceRegistryPath: os.Getenv("SOURCE_REGISTRY_PATH"),
		FederalConcurrency: DefaultFederalConcurrency,
		SoftResponseLimit:  DefaultSoftResponseLimit,
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if cfg.SerperAPIKey == "" {
		return nil, fmt.Errorf("SERPER_API_KEY environment variable not set")
	}

	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.ModelName = v
	}
	if v := os.Getenv("MODEL_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MODEL_TEMPERATURE %q: %w", v, err)
		}
		cfg.Temperature = t
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("FEDERAL_SEARCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid FEDERAL_SEARCH_CONCURRENCY %q", v)
		}
		cfg.FederalConcurrency = n
	}
	if v := os.Getenv("MAX_RESPONSE_TIME"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 1 {
			return nil, fmt.Errorf("invalid MAX_RESPONSE_TIME %q", v)
		}
		cfg.SoftResponseLimit = time.Duration(secs) * time.Second
	}

	return cfg, nil
}
