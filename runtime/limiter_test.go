package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
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

func TestRateLimiter_BurstWithinWindow(t *testing.T) {
	req := require.New(t)
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(20, time.Minute, clock.Now)

	// Given 20 admissions spread over less than a minute
	for i := 0; i < 20; i++ {
		req.True(limiter.Allow("U1"), "admission %d", i+1)
		clock.Advance(2 * time.Second)
	}

	// Then the 21st inside the same window is refused
	req.False(limiter.Allow("U1"))

	// And another participant is not affected
	req.True(limiter.Allow("D1"))
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	req := require.New(t)
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(20, time.Minute, clock.Now)

	for i := 0; i < 20; i++ {
		req.True(limiter.Allow("U1"))
	}
	req.False(limiter.Allow("U1"))

	// When 60 seconds elapse
	clock.Advance(time.Minute)

	// Then admissions succeed again
	req.True(limiter.Allow("U1"))
}

func TestRateLimiter_RefusalIsNotRecorded(t *testing.T) {
	req := require.New(t)
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(2, time.Minute, clock.Now)

	req.True(limiter.Allow("U1"))
	clock.Advance(30 * time.Second)
	req.True(limiter.Allow("U1"))

	// Refusals at t=40s must not extend the window
	clock.Advance(10 * time.Second)
	req.False(limiter.Allow("U1"))
	req.False(limiter.Allow("U1"))

	// At t=60s the first admission has expired
	clock.Advance(20 * time.Second)
	req.True(limiter.Allow("U1"))
	req.Len(limiter.windows["U1"], 2)
}

func TestRateLimiter_Sweep(t *testing.T) {
	req := require.New(t)
	clock := newFakeClock()
	limiter := NewRateLimiterWithClock(20, time.Minute, clock.Now)

	limiter.Allow("U1")
	clock.Advance(30 * time.Second)
	limiter.Allow("D1")
	req.Equal(2, limiter.Len())

	// When U1's only admission expires
	clock.Advance(45 * time.Second)

	// Then only U1's window is dropped
	req.Equal(1, limiter.Sweep())
	req.Equal(1, limiter.Len())
	req.Contains(limiter.windows, "D1")
}

func TestRateLimiter_Concurrent(t *testing.T) {
	req := require.New(t)
	limiter := NewRateLimiter(20, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("U1") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	req.Equal(20, admitted)
}
