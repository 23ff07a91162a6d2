// Package config loads application configuration from YAML files with
// environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/anvil/pkg/db"
	"github.com/dmitrymomot/anvil/pkg/logger"
	"github.com/dmitrymomot/anvil/pkg/redis"
	"github.com/dmitrymomot/anvil/pkg/storage"
)

// Config errors.
var (
	ErrReadFile  = errors.New("config: failed to read file")
	ErrParseYAML = errors.New("config: failed to parse yaml")
)

// Server holds HTTP server settings.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Session holds session preset settings.
type Session struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
}

// Config is the root application configuration.
type Config struct {
	Environment string              `yaml:"environment"`
	Server      Server              `yaml:"server"`
	Database    db.Config           `yaml:"database"`
	Redis       redis.Config        `yaml:"redis"`
	Storage     storage.S3Config    `yaml:"storage"`
	Sentry      logger.SentryConfig `yaml:"sentry"`
	Session     Session             `yaml:"session"`
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sid"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}
}

// Load reads a YAML config file, expanding ${VAR} references from the
// environment before parsing.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrReadFile, err)
	}
	return Parse(raw)
}

// Parse parses YAML config bytes with environment expansion.
func Parse(raw []byte) (*Config, error) {
	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseYAML, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
