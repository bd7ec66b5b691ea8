package cmd

import (
	"github.com/trendrelay/trendrelay/internal/config"
	"github.com/trendrelay/trendrelay/internal/output"
	"github.com/trendrelay/trendrelay/internal/ratelimit"
	"github.com/trendrelay/trendrelay/internal/relay"
	"github.com/trendrelay/trendrelay/internal/wecom"
)

// newRelay builds the relay service and its limiter from cfg.
func newRelay(cfg *config.Config, sender relay.Sender) (*relay.Service, *ratelimit.SlidingWindow) {
	limiter := ratelimit.New()
	if sender == nil {
		sender = wecom.NewClient(wecom.DefaultTimeout)
	}
	svc := relay.NewService(nil, limiter, sender)
	applyRelayConfig(cfg, svc, limiter)
	return svc, limiter
}

// applyRelayConfig installs cfg's channels and limits. Admissions already in
// the window are kept so a reload does not reset throttling.
func applyRelayConfig(cfg *config.Config, svc *relay.Service, limiter *ratelimit.SlidingWindow) {
	limiter.SetDefault(ratelimit.Limit{Max: cfg.RateLimit.Max, Window: cfg.RateLimit.Window})
	for _, ch := range svc.Channels() {
		limiter.SetLimit(ch.Name, ratelimit.Limit{})
	}

	channels := make([]relay.Channel, 0, len(cfg.Channels))
	for _, name := range cfg.ChannelNames() {
		ch := cfg.Channels[name]
		channels = append(channels, relay.Channel{Name: name, URL: ch.URL, Timeout: ch.Timeout})
		if ch.Max > 0 {
			limiter.SetLimit(name, ratelimit.Limit{Max: ch.Max, Window: cfg.RateLimit.Window})
		}
	}
	svc.SetChannels(channels)
}

// channelRows describes the configured channels with their effective limits.
func channelRows(cfg *config.Config) []output.ChannelRow {
	svc, limiter := newRelay(cfg, nil)

	rows := make([]output.ChannelRow, 0, len(cfg.Channels))
	for _, ch := range svc.Channels() {
		limit := limiter.Limit(ch.Name)
		timeout := ch.Timeout
		if timeout <= 0 {
			timeout = wecom.DefaultTimeout
		}
		endpoint := ""
		if ch.URL != "" {
			endpoint = wecom.RedactURL(ch.URL)
		}
		rows = append(rows, output.ChannelRow{
			Name:     ch.Name,
			Endpoint: endpoint,
			Timeout:  timeout,
			Max:      limit.Max,
			Window:   limit.Window,
		})
	}
	return rows
}
