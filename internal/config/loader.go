// Package config loads trendrelay configuration from defaults, an optional
// YAML file, and TRENDRELAY_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the config directory and the binary.
	AppName = "trendrelay"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TRENDRELAY_"

	// DefaultChannel is the channel the inbound route relays to.
	DefaultChannel = "default"

	redactedValue = "****"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec maps an environment variable to a config path.
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.max", 50)

	v.SetDefault("channels."+DefaultChannel+".timeout", "10s")
}

// DefaultConfigPath returns the XDG config file path, e.g. ~/.config/trendrelay/config.yaml.
func DefaultConfigPath() string {
	dir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Prepare points v at the config file, registers defaults and reads the file.
// A missing file is not an error unless configFile names it explicitly.
func Prepare(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	return Reread(v)
}

// Reread reads the config file again and re-applies environment overrides.
// It backs SIGHUP reloads.
func Reread(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return applyEnvOverrides(v)
}

func applyEnvOverrides(v *viper.Viper) error {
	overrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return fmt.Errorf("load environment overrides: %w", err)
	}

	// PORT is the platform convention; TRENDRELAY_PORT wins when both are set.
	if os.Getenv(EnvPrefix+"PORT") == "" {
		if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid PORT %q: %w", raw, err)
			}
			setPath(overrides, []string{"server", "port"}, port)
		}
	}

	if len(overrides) == 0 {
		return nil
	}
	return v.MergeConfigMap(overrides)
}

func setPath(m map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

func getEnvSpecs() []EnvVarSpec {
	p := EnvPrefix
	return []EnvVarSpec{
		{Name: p + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: p + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Durations stay strings; the decode hook parses them.
		{Name: p + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: p + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: p + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: p + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: p + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},

		{Name: p + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: p + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: p + "RATE_LIMIT_WINDOW", Path: []string{"rate_limit", "window"}, Type: EnvString},
		{Name: p + "RATE_LIMIT_MAX", Path: []string{"rate_limit", "max"}, Type: EnvInt},

		{Name: p + "WEBHOOK_URL", Path: []string{"channels", DefaultChannel, "url"}, Type: EnvString},
		{Name: p + "WEBHOOK_TIMEOUT", Path: []string{"channels", DefaultChannel, "timeout"}, Type: EnvString},

		{Name: p + "ADMIN_TOKEN", Path: []string{"admin", "token"}, Type: EnvString},
	}
}

// Load decodes v into a validated Config and makes it the current config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Channels == nil {
		cfg.Channels = make(map[string]ChannelConfig)
	}
	channels := make(map[string]ChannelConfig, len(cfg.Channels))
	for name, ch := range cfg.Channels {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		ch.URL = strings.TrimSpace(ch.URL)
		channels[name] = ch
	}
	if _, ok := channels[DefaultChannel]; !ok {
		channels[DefaultChannel] = ChannelConfig{}
	}
	cfg.Channels = channels
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
}

// Validate reports the first invalid setting in cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", cfg.Metrics.Port)
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if cfg.RateLimit.Max <= 0 {
		return fmt.Errorf("rate_limit.max must be positive")
	}
	for _, name := range cfg.ChannelNames() {
		ch := cfg.Channels[name]
		if ch.Timeout < 0 {
			return fmt.Errorf("channels.%s.timeout must not be negative", name)
		}
		if ch.Max < 0 {
			return fmt.Errorf("channels.%s.max must not be negative", name)
		}
		if ch.URL == "" {
			continue
		}
		parsed, err := url.Parse(ch.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("channels.%s.url is not an http(s) url", name)
		}
	}
	return nil
}

// RedactWebhookURL masks the query string of a webhook URL, which carries the key.
func RedactWebhookURL(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return redactedValue
	}
	parsed.User = nil
	if parsed.RawQuery != "" {
		parsed.RawQuery = "key=" + redactedValue
	}
	return parsed.String()
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
