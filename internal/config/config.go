package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the conversation relay.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	Debug            bool

	// OpenAIAPIKey may be empty: the server still starts, but every
	// completion-dependent route answers with a configuration error.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	VisionModel   string

	// DatabaseURL selects the Postgres store; empty means in-memory.
	DatabaseURL string

	ExtractorWorkers   int
	ExtractorQueueSize int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":3000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "chatrelay"),
		OpenAIAPIKey:     stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:    stringsTrimSpace("OPENAI_BASE_URL"),
		ChatModel:        envOrDefault("CHAT_MODEL", "gpt-3.5-turbo"),
		VisionModel:      envOrDefault("VISION_MODEL", "gpt-4o"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),

		ShutdownTimeout:    15 * time.Second,
		ExtractorWorkers:   2,
		ExtractorQueueSize: 64,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ExtractorWorkers, err = intFromEnv("EXTRACTOR_WORKERS", cfg.ExtractorWorkers)
	if err != nil {
		return Config{}, err
	}
	cfg.ExtractorQueueSize, err = intFromEnv("EXTRACTOR_QUEUE_SIZE", cfg.ExtractorQueueSize)
	if err != nil {
		return Config{}, err
	}
	cfg.Debug, err = boolFromEnv("APP_DEBUG", cfg.Debug)
	if err != nil {
		return Config{}, err
	}

	// Legacy deployments configure the listen port as a bare PORT variable.
	if port := stringsTrimSpace("PORT"); port != "" && os.Getenv("APP_BIND_ADDR") == "" {
		if _, err := strconv.Atoi(port); err != nil {
			return Config{}, fmt.Errorf("PORT parse error: %w", err)
		}
		cfg.BindAddr = ":" + port
	}

	if cfg.ExtractorWorkers <= 0 {
		return Config{}, fmt.Errorf("EXTRACTOR_WORKERS must be positive")
	}
	if cfg.ExtractorQueueSize <= 0 {
		return Config{}, fmt.Errorf("EXTRACTOR_QUEUE_SIZE must be positive")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		return Config{}, fmt.Errorf("CHAT_MODEL must not be blank")
	}
	if strings.TrimSpace(cfg.VisionModel) == "" {
		return Config{}, fmt.Errorf("VISION_MODEL must not be blank")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
