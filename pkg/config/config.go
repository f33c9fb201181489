package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the runtime settings for the API server and the recurring
// obligations scheduler. All date handling is UTC by convention.
type Config struct {
	DBPath          string
	Storage         string // "sqlite" or "memory"
	ListenAddr      string
	ProcessInterval time.Duration
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:          getEnv("DB_PATH", "obligations.db"),
		Storage:         getEnv("STORAGE", "sqlite"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		ProcessInterval: 24 * time.Hour,
	}

	if cfg.Storage != "sqlite" && cfg.Storage != "memory" {
		return nil, fmt.Errorf("STORAGE must be sqlite or memory, got %q", cfg.Storage)
	}

	if raw := os.Getenv("PROCESS_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PROCESS_INTERVAL %q: %w", raw, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("PROCESS_INTERVAL must be positive, got %q", raw)
		}
		cfg.ProcessInterval = interval
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
