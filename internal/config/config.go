package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DatabaseConfig holds the database connection information.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// AuthConfig holds token signing and credential encryption settings.
// Durations are strings ("24h") because yaml.v2 has no native duration type.
type AuthConfig struct {
	// JWTSecret signs identity tokens. Must be at least 32 bytes.
	JWTSecret string `yaml:"jwt_secret"`
	// MasterKey encrypts provider credentials at rest, base64-encoded 32 bytes.
	MasterKey string `yaml:"master_key"`
	TokenTTL  string `yaml:"token_ttl"`
}

// TokenTTLDuration returns the parsed session lifetime. The value is
// validated at load time.
func (a AuthConfig) TokenTTLDuration() time.Duration {
	d, _ := time.ParseDuration(a.TokenTTL)
	return d
}

// BackendConfig points at the inference backend the gateway fronts.
type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	SyncPath    string `yaml:"sync_path"`
	HealthPath  string `yaml:"health_path"`
	ProbePeriod string `yaml:"probe_period"`
}

// ProbePeriodDuration returns the parsed health-probe interval.
func (b BackendConfig) ProbePeriodDuration() time.Duration {
	d, _ := time.ParseDuration(b.ProbePeriod)
	return d
}

// RateLimitConfig bounds requests per caller per window.
type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

// WindowDuration returns the parsed rate-limit window.
func (r RateLimitConfig) WindowDuration() time.Duration {
	d, _ := time.ParseDuration(r.Window)
	return d
}

// Config holds the full gateway configuration.
type Config struct {
	Port           int             `yaml:"port"`
	Debug          bool            `yaml:"debug"`
	Database       DatabaseConfig  `yaml:"database"`
	Auth           AuthConfig      `yaml:"auth"`
	Backend        BackendConfig   `yaml:"backend"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
}

// LoadConfig reads and parses the configuration file, then applies environment
// overrides and defaults. It returns the config and a potential warning
// message.
var LoadConfig = func(path string) (*Config, string, error) {
	var config Config

	// A missing .env is fine; explicit environment still wins below.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}
	// If the file does not exist we continue with an empty config and rely on
	// environment variables.

	applyEnvOverrides(&config)
	warning := applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, "", err
	}
	return &config, warning, nil
}

func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("AIGATEWAY_DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if dbType := os.Getenv("AIGATEWAY_DATABASE_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if port := os.Getenv("AIGATEWAY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if secret := os.Getenv("AIGATEWAY_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if key := os.Getenv("AIGATEWAY_MASTER_KEY"); key != "" {
		config.Auth.MasterKey = key
	}
	if base := os.Getenv("AIGATEWAY_BACKEND_URL"); base != "" {
		config.Backend.BaseURL = base
	}
	if debug := os.Getenv("AIGATEWAY_DEBUG"); debug != "" {
		config.Debug = debug == "true"
	}
}

func applyDefaults(config *Config) string {
	var warning string
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Auth.TokenTTL == "" {
		config.Auth.TokenTTL = "24h"
	}
	if config.Backend.SyncPath == "" {
		config.Backend.SyncPath = "/internal/keys/sync"
	}
	if config.Backend.HealthPath == "" {
		config.Backend.HealthPath = "/health"
	}
	if config.Backend.ProbePeriod == "" {
		config.Backend.ProbePeriod = "30s"
	}
	if config.RateLimit.Requests == 0 {
		config.RateLimit.Requests = 60
		warning = "rate_limit.requests not set, using default of 60 per minute"
	}
	if config.RateLimit.Window == "" {
		config.RateLimit.Window = "1m"
	}
	return warning
}

// validate fails fast on anything the process cannot safely start without.
func validate(config *Config) error {
	if config.Database.Type == "" || config.Database.DSN == "" {
		return fmt.Errorf("database type and dsn must be configured in config.yaml or via environment variables")
	}
	if len(config.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if _, err := config.DecodeMasterKey(); err != nil {
		return err
	}
	if config.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must be configured")
	}
	for name, value := range map[string]string{
		"auth.token_ttl":       config.Auth.TokenTTL,
		"backend.probe_period": config.Backend.ProbePeriod,
		"rate_limit.window":    config.RateLimit.Window,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s is not a valid duration: %w", name, err)
		}
	}
	return nil
}

// DecodeMasterKey decodes the configured master key and checks its length.
func (c *Config) DecodeMasterKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.Auth.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("auth.master_key must be base64-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("auth.master_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
