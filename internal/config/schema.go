package config

import (
	"time"
)

// Config is the complete crawlscope configuration
type Config struct {
	Version    int              `yaml:"version"`
	Stream     StreamConfig     `yaml:"stream"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// StreamConfig describes the crawler WebSocket connection
type StreamConfig struct {
	URL              string          `yaml:"url" validate:"required,url"`
	HandshakeTimeout Duration        `yaml:"handshake_timeout" validate:"gt=0"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
	Breaker          BreakerConfig   `yaml:"breaker"`
	// CommandRate is the sustained outbound commands per second.
	CommandRate  float64 `yaml:"command_rate" validate:"gt=0"`
	CommandBurst int     `yaml:"command_burst" validate:"gte=1"`
}

// ReconnectConfig tunes the exponential reconnect backoff
type ReconnectConfig struct {
	InitialInterval     Duration `yaml:"initial_interval" validate:"gt=0"`
	MaxInterval         Duration `yaml:"max_interval" validate:"gt=0"`
	Multiplier          float64  `yaml:"multiplier" validate:"gte=1"`
	RandomizationFactor float64  `yaml:"randomization_factor" validate:"gte=0,lte=1"`
	// MaxAttempts bounds consecutive failed dials; 0 retries forever.
	MaxAttempts uint `yaml:"max_attempts"`
}

// BreakerConfig tunes the dial circuit breaker
type BreakerConfig struct {
	FailureThreshold uint32   `yaml:"failure_threshold" validate:"gte=1"`
	OpenTimeout      Duration `yaml:"open_timeout" validate:"gt=0"`
}

// AggregatorConfig holds the batching and notification timings
type AggregatorConfig struct {
	FlushQuietPeriod Duration `yaml:"flush_quiet_period" validate:"gt=0"`
	NotificationTTL  Duration `yaml:"notification_ttl" validate:"gt=0"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string   `yaml:"addr" validate:"required"`
	AllowedOrigins  []string `yaml:"allowed_origins,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
