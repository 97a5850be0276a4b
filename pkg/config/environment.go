package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

func loadDevelopmentConfig(cfg *Config) {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		cfg.APIBaseURL = url
	} else {
		cfg.APIBaseURL = "http://localhost:6060"
	}

	cfg.Debug = true
	cfg.CacheDir = "./tmp/cache"
	cfg.DownloadDir = "./tmp/downloads"
}

func loadTestConfig(cfg *Config) {
	dir, err := os.MkdirTemp("", "bookwright-test")
	if err != nil {
		dir = "./tmp/test"
	}
	cfg.ConfigDir = filepath.Join(dir, "config")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.DownloadDir = filepath.Join(dir, "downloads")
	cfg.CreditsPollInterval = time.Second
	cfg.SessionIdleTimeout = time.Minute
}

func loadProductionConfig(cfg *Config) {
	// Guard against a dev base URL leaking into a production build.
	if strings.Contains(cfg.APIBaseURL, "localhost") && os.Getenv("API_BASE_URL") == "" {
		cfg.APIBaseURL = "https://api.bookwright.app"
	}
}

// normalizeEnvKey maps BOOKWRIGHT_API_BASE_URL to api_base_url.
func normalizeEnvKey(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(key)
}
