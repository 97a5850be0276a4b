package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	APIBaseURL           string        `koanf:"api_base_url" default:"https://api.bookwright.app"`
	RequestTimeout       time.Duration `koanf:"request_timeout" default:"30s"`
	ConfigDir            string        `koanf:"config_dir"`
	CacheDir             string        `koanf:"cache_dir"`
	DownloadDir          string        `koanf:"download_dir"`
	CreditsPollInterval  time.Duration `koanf:"credits_poll_interval" default:"30s"`
	BalanceStaleAfter    time.Duration `koanf:"balance_stale_after" default:"15s"`
	BookStaleAfter       time.Duration `koanf:"book_stale_after" default:"60s"`
	SessionIdleTimeout   time.Duration `koanf:"session_idle_timeout" default:"30m"`
	RateLimitGracePeriod time.Duration `koanf:"rate_limit_grace_period" default:"2s"`
	DownloadCacheMaxMB   int64         `koanf:"download_cache_max_mb" default:"512"`
	Debug                bool          `koanf:"debug"`

	Environment string `koanf:"-"`
	Hostname    string `koanf:"-"`
}

const (
	environmentENV = "ENVIRONMENT"
	configDirENV   = "CONFIG_DIRECTORY"
	envPrefix      = "BOOKWRIGHT_"
)

// New builds the client configuration. Precedence, lowest to highest: struct
// defaults, the optional config.yaml in the config directory, then
// BOOKWRIGHT_-prefixed environment variables.
func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{Hostname: hostname}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	cfg.ConfigDir = defaultConfigDir()
	cfg.CacheDir = defaultCacheDir()

	k := koanf.New(".")

	configFile := filepath.Join(cfg.ConfigDir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", configFile)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return normalizeEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	cfg.Environment = os.Getenv(environmentENV)
	switch cfg.Environment {
	case "development":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production", "":
		cfg.Environment = "production"
		loadProductionConfig(cfg)
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = defaultDownloadDir()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.APIBaseURL == "" {
		return errors.New("api_base_url must not be empty")
	}
	if cfg.CreditsPollInterval < time.Second {
		return errors.New("credits_poll_interval must be at least 1s")
	}
	if cfg.SessionIdleTimeout < time.Minute {
		return errors.New("session_idle_timeout must be at least 1m")
	}
	return nil
}

// DownloadCacheMaxBytes returns the artifact cache budget in bytes.
func (cfg *Config) DownloadCacheMaxBytes() int64 {
	return cfg.DownloadCacheMaxMB * 1024 * 1024
}

func defaultConfigDir() string {
	if dir := os.Getenv(configDirENV); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".bookwright"
	}
	return filepath.Join(base, "bookwright")
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(defaultConfigDir(), "cache")
	}
	return filepath.Join(base, "bookwright")
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads")
}
