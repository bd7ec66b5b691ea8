package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAdmitRejectsAfterMax(t *testing.T) {
	clock := newClock()
	limiter := New(WithClock(clock.Now), WithLimit(Limit{Max: 3, Window: time.Minute}))

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Admit("default"), "call %d should be admitted", i+1)
		clock.Advance(time.Second)
	}

	require.False(t, limiter.Admit("default"))
	assert.Equal(t, 3, limiter.Count("default"), "rejected calls must not be recorded")
}

func TestAdmitSlidesWithFirstTimestamp(t *testing.T) {
	clock := newClock()
	limiter := New(WithClock(clock.Now), WithLimit(Limit{Max: 2, Window: time.Minute}))

	require.True(t, limiter.Admit("default"))
	clock.Advance(30 * time.Second)
	require.True(t, limiter.Admit("default"))
	require.False(t, limiter.Admit("default"))

	// One full window after the first call, only that call has expired.
	clock.Advance(30 * time.Second)
	require.True(t, limiter.Admit("default"))
	require.False(t, limiter.Admit("default"))

	// The second call expires next.
	clock.Advance(30 * time.Second)
	require.True(t, limiter.Admit("default"))
}

func TestAdmitJustBeforeWindowStillRejected(t *testing.T) {
	clock := newClock()
	limiter := New(WithClock(clock.Now), WithLimit(Limit{Max: 1, Window: time.Minute}))

	require.True(t, limiter.Admit("default"))
	clock.Advance(time.Minute - time.Millisecond)
	require.False(t, limiter.Admit("default"))
	clock.Advance(time.Millisecond)
	require.True(t, limiter.Admit("default"))
}

func TestChannelsAreIndependent(t *testing.T) {
	clock := newClock()
	limiter := New(WithClock(clock.Now), WithLimit(Limit{Max: 1, Window: time.Minute}))

	require.True(t, limiter.Admit("default"))
	require.False(t, limiter.Admit("default"))
	require.True(t, limiter.Admit("ops"))
}

func TestDefaults(t *testing.T) {
	limiter := New()
	limit := limiter.Limit("default")
	assert.Equal(t, DefaultMax, limit.Max)
	assert.Equal(t, DefaultWindow, limit.Window)

	clock := newClock()
	limiter = New(WithClock(clock.Now))
	for i := 0; i < DefaultMax; i++ {
		require.True(t, limiter.Admit("default"))
	}
	require.False(t, limiter.Admit("default"))
}

func TestSetLimitOverridesChannel(t *testing.T) {
	clock := newClock()
	limiter := New(WithClock(clock.Now), WithLimit(Limit{Max: 5, Window: time.Minute}))
	limiter.SetLimit("ops", Limit{Max: 1, Window: time.Second})

	require.True(t, limiter.Admit("ops"))
	require.False(t, limiter.Admit("ops"))
	clock.Advance(time.Second)
	require.True(t, limiter.Admit("ops"))

	limiter.SetLimit("ops", Limit{})
	assert.Equal(t, 5, limiter.Limit("ops").Max)
}

func TestResetClearsState(t *testing.T) {
	limiter := New(WithLimit(Limit{Max: 1, Window: time.Hour}))
	require.True(t, limiter.Admit("default"))
	require.False(t, limiter.Admit("default"))

	limiter.Reset()
	require.True(t, limiter.Admit("default"))
}

func TestNilLimiterAdmits(t *testing.T) {
	var limiter *SlidingWindow
	assert.True(t, limiter.Admit("default"))
	assert.Equal(t, 0, limiter.Count("default"))
}

func TestConcurrentAdmitNeverExceedsMax(t *testing.T) {
	clock := newClock()
	limiter := New(WithClock(clock.Now), WithLimit(Limit{Max: 25, Window: time.Minute}))

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Admit("default") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(25), admitted.Load())
	assert.Equal(t, 25, limiter.Count("default"))
}

func BenchmarkAdmit(b *testing.B) {
	limiter := New(WithLimit(Limit{Max: 1 << 20, Window: time.Minute}))
	for i := 0; i < b.N; i++ {
		limiter.Admit(fmt.Sprintf("ch-%d", i%8))
	}
}
