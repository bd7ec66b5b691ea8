package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Default sliding window settings applied to channels without an override.
const (
	DefaultWindow = time.Minute
	DefaultMax    = 50
)

// Limit describes how many admissions a channel gets within a trailing window.
type Limit struct {
	Max    int
	Window time.Duration
}

// SlidingWindow admits calls per channel using a sliding log of timestamps.
//
// Unlike a fixed bucket, the window always ends at the current instant: a call
// is admitted when fewer than Max admissions were recorded in the trailing
// Window. Rejected calls are not recorded.
type SlidingWindow struct {
	mu       sync.Mutex
	calls    map[string][]time.Time
	limits   map[string]Limit
	fallback Limit
	clock    func() time.Time
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *SlidingWindow) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLimit sets the limit used for channels without their own override.
func WithLimit(limit Limit) Option {
	return func(s *SlidingWindow) {
		s.fallback = normalize(limit)
	}
}

// New returns a limiter using DefaultMax per DefaultWindow unless overridden.
func New(opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		calls:    make(map[string][]time.Time),
		limits:   make(map[string]Limit),
		fallback: Limit{Max: DefaultMax, Window: DefaultWindow},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit records a call for channel and reports whether it is allowed.
func (s *SlidingWindow) Admit(channel string) bool {
	if s == nil {
		return true
	}
	channel = strings.TrimSpace(channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	limit := s.limitLocked(channel)
	kept := prune(s.calls[channel], now, limit.Window)

	if len(kept) >= limit.Max {
		s.calls[channel] = kept
		return false
	}

	s.calls[channel] = append(kept, now)
	return true
}

// Count returns the number of admissions inside the current window for channel.
func (s *SlidingWindow) Count(channel string) int {
	if s == nil {
		return 0
	}
	channel = strings.TrimSpace(channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.limitLocked(channel)
	kept := prune(s.calls[channel], s.clock(), limit.Window)
	s.calls[channel] = kept
	return len(kept)
}

// SetLimit overrides the limit for a single channel. A zero Max removes the override.
func (s *SlidingWindow) SetLimit(channel string, limit Limit) {
	if s == nil {
		return
	}
	channel = strings.TrimSpace(channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit.Max <= 0 {
		delete(s.limits, channel)
		return
	}
	s.limits[channel] = normalize(limit)
}

// SetDefault replaces the limit used for channels without an override.
func (s *SlidingWindow) SetDefault(limit Limit) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = normalize(limit)
}

// Limit returns the effective limit for channel.
func (s *SlidingWindow) Limit(channel string) Limit {
	if s == nil {
		return Limit{Max: DefaultMax, Window: DefaultWindow}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limitLocked(strings.TrimSpace(channel))
}

// Reset forgets every recorded admission.
func (s *SlidingWindow) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string][]time.Time)
}

func (s *SlidingWindow) limitLocked(channel string) Limit {
	if limit, ok := s.limits[channel]; ok {
		return limit
	}
	return s.fallback
}

// prune drops timestamps that fell out of the window ending at now.
// Timestamps are appended in order, so the first one still inside the window
// marks the start of the slice to keep.
func prune(calls []time.Time, now time.Time, window time.Duration) []time.Time {
	idx := 0
	for idx < len(calls) && now.Sub(calls[idx]) >= window {
		idx++
	}
	if idx == 0 {
		return calls
	}
	kept := make([]time.Time, len(calls)-idx)
	copy(kept, calls[idx:])
	return kept
}

func normalize(limit Limit) Limit {
	if limit.Max <= 0 {
		limit.Max = DefaultMax
	}
	if limit.Window <= 0 {
		limit.Window = DefaultWindow
	}
	return limit
}
