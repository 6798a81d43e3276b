// Package config provides configuration management for crawlscope.
//
// Sources are layered, later ones winning:
//  1. built-in defaults
//  2. the YAML config file
//  3. CRAWLSCOPE_* environment variables (a .env file is loaded first)
//  4. command-line flags
//
// Config file locations (priority order):
//  1. $CRAWLSCOPE_CONFIG
//  2. ./crawlscope.yaml
//  3. $XDG_CONFIG_HOME/crawlscope/config.yaml
//  4. ~/.config/crawlscope/config.yaml
//  5. /etc/crawlscope/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found.
// Environment overrides are applied; the result is not yet validated so
// flag overrides can still be layered on top.
func Load() (*Config, string, error) {
	return LoadEnv(os.LookupEnv)
}

// LoadEnv is Load with the environment read through lookup, for both the
// file search and the overrides.
func LoadEnv(lookup LookupFunc) (*Config, string, error) {
	path := FindConfigPath(lookup)

	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = DefaultConfig()
	} else if cfg, _, err = LoadFromPath(path); err != nil {
		return nil, path, err
	}

	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, path, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if !fileExists(path) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Stream: StreamConfig{
			URL:              "ws://127.0.0.1:9001",
			HandshakeTimeout: Duration(10 * time.Second),
			Reconnect: ReconnectConfig{
				InitialInterval:     Duration(500 * time.Millisecond),
				MaxInterval:         Duration(30 * time.Second),
				Multiplier:          2,
				RandomizationFactor: 0.5,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				OpenTimeout:      Duration(30 * time.Second),
			},
			CommandRate:  5,
			CommandBurst: 2,
		},
		Aggregator: AggregatorConfig{
			FlushQuietPeriod: Duration(300 * time.Millisecond),
			NotificationTTL:  Duration(3 * time.Second),
		},
		Server: ServerConfig{
			Addr:            ":3000",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyDefaults fills in values a partial file left zeroed
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.Stream.URL == "" {
		c.Stream.URL = def.Stream.URL
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = def.Stream.HandshakeTimeout
	}
	if c.Stream.Reconnect.InitialInterval == 0 {
		c.Stream.Reconnect.InitialInterval = def.Stream.Reconnect.InitialInterval
	}
	if c.Stream.Reconnect.MaxInterval == 0 {
		c.Stream.Reconnect.MaxInterval = def.Stream.Reconnect.MaxInterval
	}
	if c.Stream.Reconnect.Multiplier == 0 {
		c.Stream.Reconnect.Multiplier = def.Stream.Reconnect.Multiplier
	}
	if c.Stream.Breaker.FailureThreshold == 0 {
		c.Stream.Breaker.FailureThreshold = def.Stream.Breaker.FailureThreshold
	}
	if c.Stream.Breaker.OpenTimeout == 0 {
		c.Stream.Breaker.OpenTimeout = def.Stream.Breaker.OpenTimeout
	}
	if c.Stream.CommandRate == 0 {
		c.Stream.CommandRate = def.Stream.CommandRate
	}
	if c.Stream.CommandBurst == 0 {
		c.Stream.CommandBurst = def.Stream.CommandBurst
	}
	if c.Aggregator.FlushQuietPeriod == 0 {
		c.Aggregator.FlushQuietPeriod = def.Aggregator.FlushQuietPeriod
	}
	if c.Aggregator.NotificationTTL == 0 {
		c.Aggregator.NotificationTTL = def.Aggregator.NotificationTTL
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

var validate = validator.New()

// Validate checks every field constraint and reports all violations at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	return fmt.Sprintf("stream=%s server=%s quiet=%s ttl=%s log=%s/%s",
		c.Stream.URL, c.Server.Addr,
		c.Aggregator.FlushQuietPeriod.Duration(), c.Aggregator.NotificationTTL.Duration(),
		c.Log.Level, c.Log.Format)
}
