// Package config loads the process configuration: defaults, then an optional
// YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is used when JWT_SECRET is unset. Tokens signed with it can be
// forged by anyone who has read this source, so production deployments must set
// JWT_SECRET.
const DefaultJWTSecret = "devsecret"

// ConfigFileEnv names the environment variable pointing at an optional YAML file.
const ConfigFileEnv = "CONFIG_FILE"

// Config is the immutable process configuration.
type Config struct {
	Port        string `yaml:"port" env:"PORT"`
	JWTSecret   string `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenIssuer string `yaml:"token_issuer" env:"TOKEN_ISSUER"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// Comma separated list of origins allowed to call the API from a browser.
	CORSAllowedOrigins string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`

	// Empty disables the metrics listener.
	MetricsPort string `yaml:"metrics_port" env:"METRICS_PORT"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:               "3000",
		JWTSecret:          DefaultJWTSecret,
		TokenIssuer:        "statsgate",
		LogLevel:           "info",
		LogFormat:          "json",
		CORSAllowedOrigins: "http://localhost:5173,https://qr-factorization-system.netlify.app",
		MetricsPort:        "9090",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		MaxBodyBytes:       8 << 20,
	}
}

// Load builds the configuration from defaults, the file named by CONFIG_FILE
// (if any) and the environment.
func Load() (*Config, error) {
	return LoadFromPath(strings.TrimSpace(os.Getenv(ConfigFileEnv)))
}

// LoadFromPath is Load with an explicit YAML path. An empty path skips the file layer.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Only variables that are present overwrite the lower layers.
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DefaultJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if err := validatePort("port", c.Port, false); err != nil {
		return err
	}
	if err := validatePort("metrics_port", c.MetricsPort, true); err != nil {
		return err
	}
	if c.MetricsPort != "" && c.MetricsPort == c.Port {
		return fmt.Errorf("metrics_port must differ from port (%s)", c.Port)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"idle_timeout":     c.IdleTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// UsingDefaultSecret reports whether tokens are signed with the insecure
// development secret.
func (c *Config) UsingDefaultSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// AllowedOrigins returns the parsed CORS allow-list.
func (c *Config) AllowedOrigins() []string {
	return splitAndTrimCSV(c.CORSAllowedOrigins)
}

// Addr returns the public listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// MetricsAddr returns the metrics listen address, or "" when disabled.
func (c *Config) MetricsAddr() string {
	if c.MetricsPort == "" {
		return ""
	}
	return ":" + c.MetricsPort
}

func validatePort(name, value string, optional bool) error {
	if value == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s is required", name)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%s: invalid port %q", name, value)
	}
	return nil
}

func splitAndTrimCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
