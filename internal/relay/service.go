// Package relay turns inbound TrendMiner webhook payloads into WeCom alerts.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trendrelay/trendrelay/internal/message"
	"github.com/trendrelay/trendrelay/internal/metrics"
	"github.com/trendrelay/trendrelay/internal/wecom"
)

// DefaultChannel is the channel used by the inbound route.
const DefaultChannel = "default"

var (
	// ErrUnknownChannel is returned when a relay targets a channel that is not configured.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrNoWebhookURL is returned when a channel has no destination configured.
	ErrNoWebhookURL = errors.New("channel has no webhook url configured")
)

// Channel is a named destination.
type Channel struct {
	Name    string
	URL     string
	Timeout time.Duration
}

// Admitter decides whether a call on a channel may proceed.
type Admitter interface {
	Admit(channel string) bool
}

// windowCounter is implemented by limiters that can report their window occupancy.
type windowCounter interface {
	Count(channel string) int
}

// Sender delivers a message to a webhook URL.
type Sender interface {
	Send(ctx context.Context, webhookURL string, msg wecom.Message) (*wecom.Response, error)
}

// Result describes one relay attempt that did not fail.
type Result struct {
	Channel    string
	Throttled  bool
	ReceivedAt time.Time
	Content    string
	Response   *wecom.Response
}

// Service runs the relay pipeline: admit, format, send.
type Service struct {
	mu       sync.RWMutex
	channels map[string]Channel

	limiter Admitter
	sender  Sender
	clock   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for receipt timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService builds a relay service. A nil limiter admits everything.
func NewService(channels []Channel, limiter Admitter, sender Sender, opts ...Option) *Service {
	s := &Service{
		limiter: limiter,
		sender:  sender,
		clock:   time.Now,
	}
	s.SetChannels(channels)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetChannels replaces the configured channels.
func (s *Service) SetChannels(channels []Channel) {
	next := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		name := strings.TrimSpace(ch.Name)
		if name == "" {
			continue
		}
		ch.Name = name
		ch.URL = strings.TrimSpace(ch.URL)
		next[name] = ch
	}

	s.mu.Lock()
	s.channels = next
	s.mu.Unlock()
}

// Channels returns the configured channels sorted by name.
func (s *Service) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Channel looks up a channel by name.
func (s *Service) Channel(name string) (Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[strings.TrimSpace(name)]
	return ch, ok
}

// Relay formats tmData and delivers it to channel.
//
// A throttled call returns a Result with Throttled set and no error. Formatting
// never fails; errors come from channel lookup or delivery.
func (s *Service) Relay(ctx context.Context, channel string, tmData json.RawMessage) (*Result, error) {
	ch, ok := s.Channel(channel)
	if !ok {
		metrics.RecordRelay(channel, metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	if s.limiter != nil {
		admitted := s.limiter.Admit(ch.Name)
		if counter, ok := s.limiter.(windowCounter); ok {
			metrics.SetRateLimitWindowCalls(ch.Name, counter.Count(ch.Name))
		}
		if !admitted {
			metrics.RecordRelay(ch.Name, metrics.OutcomeThrottled)
			return &Result{Channel: ch.Name, Throttled: true}, nil
		}
	}

	receivedAt := s.clock()
	content := message.Format(message.DecodePayload(tmData), receivedAt)

	resp, err := s.Deliver(ctx, ch, message.WithWarning(content))
	if err != nil {
		return nil, err
	}

	return &Result{
		Channel:    ch.Name,
		ReceivedAt: receivedAt,
		Content:    content,
		Response:   resp,
	}, nil
}

// Deliver sends text to ch without rate limiting.
func (s *Service) Deliver(ctx context.Context, ch Channel, text string) (*wecom.Response, error) {
	if ch.URL == "" {
		metrics.RecordRelay(ch.Name, metrics.OutcomeFailed)
		return nil, fmt.Errorf("%w: %s", ErrNoWebhookURL, ch.Name)
	}
	if s.sender == nil {
		metrics.RecordRelay(ch.Name, metrics.OutcomeFailed)
		return nil, fmt.Errorf("relay sender not configured")
	}

	if ch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ch.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.sender.Send(ctx, ch.URL, wecom.NewText(text))
	metrics.RecordUpstreamDuration(ch.Name, time.Since(start))
	if err != nil {
		metrics.RecordRelay(ch.Name, metrics.OutcomeFailed)
		return nil, err
	}

	metrics.RecordRelay(ch.Name, metrics.OutcomeDelivered)
	return resp, nil
}
