package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CRAWLSCOPE_"

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"STREAM_URL", func(c *Config, v string) error { c.Stream.URL = v; return nil }},
	{"STREAM_MAX_ATTEMPTS", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return err
		}
		c.Stream.Reconnect.MaxAttempts = uint(n)
		return nil
	}},
	{"COMMAND_RATE", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Stream.CommandRate = f
		return nil
	}},
	{"FLUSH_QUIET_PERIOD", durationSetter(func(c *Config) *Duration { return &c.Aggregator.FlushQuietPeriod })},
	{"NOTIFICATION_TTL", durationSetter(func(c *Config) *Duration { return &c.Aggregator.NotificationTTL })},
	{"SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"ALLOWED_ORIGINS", func(c *Config, v string) error {
		c.Server.AllowedOrigins = splitList(v)
		return nil
	}},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = strings.ToLower(v); return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = strings.ToLower(v); return nil }},
}

// ApplyEnv overrides cfg with any CRAWLSCOPE_* variables lookup finds
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for _, b := range envBindings {
		value, ok := lookup(EnvPrefix + b.key)
		if !ok || value == "" {
			continue
		}
		if err := b.apply(cfg, value); err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, b.key, err)
		}
	}
	return nil
}

func durationSetter(field func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = Duration(d)
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
