package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendrelay/trendrelay/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{Window: time.Minute, Max: 50},
		Channels: map[string]config.ChannelConfig{
			config.DefaultChannel: {URL: "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=secret", Timeout: 5 * time.Second},
			"ops":                 {Max: 2},
		},
	}
}

func TestNewRelayAppliesLimits(t *testing.T) {
	svc, limiter := newRelay(testConfig(), nil)

	channels := svc.Channels()
	require.Len(t, channels, 2)
	assert.Equal(t, 5*time.Second, channels[0].Timeout)

	assert.Equal(t, 50, limiter.Limit(config.DefaultChannel).Max)
	assert.Equal(t, 2, limiter.Limit("ops").Max)
}

func TestApplyRelayConfigDropsStaleOverrides(t *testing.T) {
	svc, limiter := newRelay(testConfig(), nil)
	require.True(t, limiter.Admit(config.DefaultChannel))

	next := testConfig()
	delete(next.Channels, "ops")
	next.RateLimit.Max = 10
	applyRelayConfig(next, svc, limiter)

	assert.Len(t, svc.Channels(), 1)
	assert.Equal(t, 10, limiter.Limit("ops").Max)
	assert.Equal(t, 1, limiter.Count(config.DefaultChannel))
}

func TestChannelRowsRedactKeys(t *testing.T) {
	rows := channelRows(testConfig())
	require.Len(t, rows, 2)

	assert.Equal(t, "https://qyapi.weixin.qq.com/cgi-bin/webhook/send", rows[0].Endpoint)
	assert.True(t, rows[0].Configured())
	assert.False(t, rows[1].Configured())
	assert.Equal(t, 2, rows[1].Max)
}
