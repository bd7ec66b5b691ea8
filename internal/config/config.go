package config

import (
	"sort"
	"time"
)

// Config is the effective application configuration.
type Config struct {
	Server    ServerConfig             `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig            `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig            `mapstructure:"metrics" yaml:"metrics"`
	RateLimit RateLimitConfig          `mapstructure:"rate_limit" yaml:"rate_limit"`
	Channels  map[string]ChannelConfig `mapstructure:"channels" yaml:"channels"`
	Admin     AdminConfig              `mapstructure:"admin" yaml:"admin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the dedicated exporter port; /metrics on the main port proxies it.
	Port int `mapstructure:"port" yaml:"port"`
}

// RateLimitConfig is the sliding window applied to channels without their own max.
type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window" yaml:"window"`
	Max    int           `mapstructure:"max" yaml:"max"`
}

// ChannelConfig describes one webhook destination.
type ChannelConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Max overrides rate_limit.max for this channel when positive.
	Max int `mapstructure:"max" yaml:"max,omitempty"`
}

// AdminConfig guards the admin signal endpoint. An empty token disables it.
type AdminConfig struct {
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

// ChannelNames returns the configured channel names in sorted order.
func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Redacted returns a copy safe to print: webhook keys and the admin token are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Channels = make(map[string]ChannelConfig, len(c.Channels))
	for name, ch := range c.Channels {
		ch.URL = RedactWebhookURL(ch.URL)
		out.Channels[name] = ch
	}
	if out.Admin.Token != "" {
		out.Admin.Token = redactedValue
	}
	return &out
}
