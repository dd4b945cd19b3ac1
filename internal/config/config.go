package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	BackendURL      string `yaml:"backendURL"`
	LogLevel        string `yaml:"logLevel"`
	DataDir         string `yaml:"dataDir"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	RefreshInterval string `yaml:"refreshInterval"`
	RequestTimeout  string `yaml:"requestTimeout"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("PRICETOOL_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("PRICETOOL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PRICETOOL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("PRICETOOL_REFRESH_INTERVAL"); v != "" {
		cfg.RefreshInterval = v
	}
	if v := os.Getenv("PRICETOOL_REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = v
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.BackendURL == "" {
		return errors.New("config: backendURL is required (set in config.yaml or PRICETOOL_BACKEND_URL)")
	}
	if _, err := ParseRefreshInterval(cfg.RefreshInterval); err != nil {
		return err
	}
	if _, err := ParseRequestTimeout(cfg.RequestTimeout); err != nil {
		return err
	}
	return nil
}

// ParseRefreshInterval parses the token-refresh period, defaulting to
// the 45 minutes the browser front end used.
func ParseRefreshInterval(s string) (time.Duration, error) {
	if s == "" {
		return 45 * time.Minute, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid refreshInterval duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("config: refreshInterval must be positive")
	}
	return dur, nil
}

// ParseRequestTimeout parses the per-request timeout, defaulting to 10s.
func ParseRequestTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 10 * time.Second, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid requestTimeout duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("config: requestTimeout must be positive")
	}
	return dur, nil
}
