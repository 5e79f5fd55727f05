package runtime

import (
	"sync"
	"time"
)

const (
	DefaultBurst  = 20
	DefaultWindow = 60 * time.Second
)

// RateLimiter is a sliding-window admission control keyed by participant.
// Each window holds at most burst admission timestamps younger than window.
type RateLimiter struct {
	mu      sync.Mutex
	burst   int
	window  time.Duration
	now     func() time.Time
	windows map[string][]time.Time
}

func NewRateLimiter(burst int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(burst, window, time.Now)
}

func NewRateLimiterWithClock(burst int, window time.Duration, now func() time.Time) *RateLimiter {
	if burst <= 0 {
		burst = DefaultBurst
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		burst:   burst,
		window:  window,
		now:     now,
		windows: make(map[string][]time.Time),
	}
}

// Allow prunes the participant's window, then records and admits the call
// unless the window is already full. A refused call is not recorded.
func (l *RateLimiter) Allow(participantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(l.windows[participantID], now)
	if len(recent) >= l.burst {
		l.windows[participantID] = recent
		return false
	}
	l.windows[participantID] = append(recent, now)
	return true
}

// Sweep drops every window left empty after pruning and returns how many were dropped.
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	dropped := 0
	for id, stamps := range l.windows {
		recent := l.prune(stamps, now)
		if len(recent) == 0 {
			delete(l.windows, id)
			dropped++
			continue
		}
		l.windows[id] = recent
	}
	return dropped
}

// Len reports how many participants currently own a window.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// prune keeps timestamps strictly younger than the window, reusing the backing array.
func (l *RateLimiter) prune(stamps []time.Time, now time.Time) []time.Time {
	cut := 0
	for cut < len(stamps) && now.Sub(stamps[cut]) >= l.window {
		cut++
	}
	if cut == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[cut:]...)
}
