package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so file and env values survive unset flags.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath   string
	StreamURL    string
	Addr         string
	LogLevel     string
	LogFormat    string
	QuietPeriod  time.Duration
	MaxAttempts  uint
	EnvFiles     []string
	PrintVersion bool
}

// BindFlags registers the crawlscope flags on fs
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "path to config file (overrides $"+EnvConfigPath+")")
	fs.StringVar(&f.StreamURL, "stream-url", "", "crawler WebSocket URL")
	fs.StringVarP(&f.Addr, "addr", "a", "", "HTTP listen address")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFormat, "log-format", "", "log format (json, console)")
	fs.DurationVar(&f.QuietPeriod, "flush-quiet-period", 0, "idle time before buffered relationships are applied")
	fs.UintVar(&f.MaxAttempts, "max-reconnect-attempts", 0, "consecutive failed dials before giving up (0 = forever)")
	fs.StringSliceVar(&f.EnvFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	fs.BoolVar(&f.PrintVersion, "version", false, "print version and exit")
	return f
}

// Apply copies every explicitly set flag onto cfg
func (f *Flags) Apply(cfg *Config) {
	if f.fs.Changed("stream-url") {
		cfg.Stream.URL = f.StreamURL
	}
	if f.fs.Changed("addr") {
		cfg.Server.Addr = f.Addr
	}
	if f.fs.Changed("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if f.fs.Changed("log-format") {
		cfg.Log.Format = f.LogFormat
	}
	if f.fs.Changed("flush-quiet-period") {
		cfg.Aggregator.FlushQuietPeriod = Duration(f.QuietPeriod)
	}
	if f.fs.Changed("max-reconnect-attempts") {
		cfg.Stream.Reconnect.MaxAttempts = f.MaxAttempts
	}
}
