// Package config loads signbrokerd settings. Sources are applied in order,
// later ones winning: built-in defaults, an optional YAML file, an optional
// .env file, then SIGNBROKER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIGNBROKER_"

// Config is the daemon configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	ReviewToken     string        `yaml:"review_token"`
	KeyringPath     string        `yaml:"keyring_path"`
	AuditPath       string        `yaml:"audit_path"`
	MaxPending      int           `yaml:"max_pending"`
	LogLevel        string        `yaml:"log_level"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	OTLPEndpoint    string        `yaml:"otlp_endpoint"`
	OTLPInsecure    bool          `yaml:"otlp_insecure"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:          "127.0.0.1:8750",
		KeyringPath:     "signbroker-keyring.json",
		MaxPending:      64,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration. path names a YAML file and envFile a .env
// file; either may be empty, and a missing .env file is not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv.Load never overrides variables already in the environment
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("LISTEN", &c.Listen)
	str("REVIEW_TOKEN", &c.ReviewToken)
	str("KEYRING_PATH", &c.KeyringPath)
	str("AUDIT_PATH", &c.AuditPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("OTLP_ENDPOINT", &c.OTLPEndpoint)

	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "MAX_PENDING"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_PENDING: %w", EnvPrefix, err)
		}
		c.MaxPending = n
	}
	if v, ok := lookup(EnvPrefix + "OTLP_INSECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sOTLP_INSECURE: %w", EnvPrefix, err)
		}
		c.OTLPInsecure = b
	}
	if v, ok := lookup(EnvPrefix + "SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", EnvPrefix, err)
		}
		c.ShutdownTimeout = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.ReviewToken == "" {
		return errors.New("review token is required (review_token or " + EnvPrefix + "REVIEW_TOKEN)")
	}
	if len(c.ReviewToken) < 16 {
		return errors.New("review token must be at least 16 characters")
	}
	if c.KeyringPath == "" {
		return errors.New("keyring path is required")
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("max_pending must not be negative, got %d", c.MaxPending)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", c.ShutdownTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
