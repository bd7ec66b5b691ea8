package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the developer's own config and environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range []string{"PORT", EnvPrefix + "PORT", EnvPrefix + "WEBHOOK_URL", EnvPrefix + "ADMIN_TOKEN", EnvPrefix + "RATE_LIMIT_MAX"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func load(t *testing.T, configFile string) (*Config, error) {
	t.Helper()
	v := viper.New()
	if err := Prepare(v, configFile); err != nil {
		return nil, err
	}
	return Load(v)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)

	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 50, cfg.RateLimit.Max)

	require.Contains(t, cfg.Channels, DefaultChannel)
	assert.Empty(t, cfg.Channels[DefaultChannel].URL)
	assert.Equal(t, 10*time.Second, cfg.Channels[DefaultChannel].Timeout)

	assert.Same(t, cfg, GetConfig())
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
server:
  port: 8088
rate_limit:
  window: 30s
  max: 5
channels:
  default:
    url: https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=file-key
  ops:
    url: https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=ops-key
    timeout: 3s
    max: 2
`)

	cfg, err := load(t, path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, []string{"default", "ops"}, cfg.ChannelNames())
	assert.Equal(t, 3*time.Second, cfg.Channels["ops"].Timeout)
	assert.Equal(t, 2, cfg.Channels["ops"].Max)
	assert.Contains(t, cfg.Channels[DefaultChannel].URL, "file-key")
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
channels:
  default:
    url: https://example.com/send?key=file-key
`)
	t.Setenv(EnvPrefix+"WEBHOOK_URL", "https://example.com/send?key=env-key")
	t.Setenv(EnvPrefix+"RATE_LIMIT_MAX", "7")

	cfg, err := load(t, path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/send?key=env-key", cfg.Channels[DefaultChannel].URL)
	assert.Equal(t, 7, cfg.RateLimit.Max)
}

func TestPortEnvPrecedence(t *testing.T) {
	isolate(t)

	t.Setenv("PORT", "4000")
	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)

	t.Setenv(EnvPrefix+"PORT", "5000")
	cfg, err = load(t, "")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestInvalidPortEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "not-a-port")

	_, err := load(t, "")
	require.Error(t, err)
}

func TestExplicitMissingConfigFileFails(t *testing.T) {
	isolate(t)

	_, err := load(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 3000},
			Metrics:   MetricsConfig{Enabled: true, Port: 9090},
			RateLimit: RateLimitConfig{Window: time.Minute, Max: 50},
			Channels:  map[string]ChannelConfig{DefaultChannel: {URL: "https://example.com/send?key=k"}},
		}
	}

	require.NoError(t, Validate(base()))

	cases := map[string]func(*Config){
		"port":        func(c *Config) { c.Server.Port = 70000 },
		"window":      func(c *Config) { c.RateLimit.Window = 0 },
		"max":         func(c *Config) { c.RateLimit.Max = 0 },
		"scheme":      func(c *Config) { c.Channels[DefaultChannel] = ChannelConfig{URL: "ftp://example.com"} },
		"timeout":     func(c *Config) { c.Channels[DefaultChannel] = ChannelConfig{Timeout: -time.Second} },
		"metricsPort": func(c *Config) { c.Metrics.Port = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := &Config{
		Channels: map[string]ChannelConfig{
			DefaultChannel: {URL: "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=secret"},
		},
		Admin: AdminConfig{Token: "admin-secret"},
	}

	redacted := cfg.Redacted()

	assert.Equal(t, "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=****", redacted.Channels[DefaultChannel].URL)
	assert.Equal(t, "****", redacted.Admin.Token)
	assert.Contains(t, cfg.Channels[DefaultChannel].URL, "secret")
}
