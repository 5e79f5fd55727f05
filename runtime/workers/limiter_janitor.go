package workers

import (
	"context"
	"log/slog"
	"time"
)

const DefaultJanitorInterval = 5 * time.Minute

// Sweeper forgets participants whose rate window emptied.
type Sweeper interface {
	Sweep() int
}

// LimiterJanitor keeps rate-limit tables bounded by the active population
// instead of everyone who ever connected.
type LimiterJanitor struct {
	log      *slog.Logger
	interval time.Duration
	limiters []Sweeper
}

func NewLimiterJanitor(log *slog.Logger, interval time.Duration, limiters ...Sweeper) *LimiterJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &LimiterJanitor{log: log, interval: interval, limiters: limiters}
}

func (w *LimiterJanitor) Run(ctx context.Context) error {
	w.log.Info("Starting limiter janitor", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept := 0
			for _, limiter := range w.limiters {
				swept += limiter.Sweep()
			}
			if swept > 0 {
				w.log.Debug("Rate windows swept", "participants", swept)
			}
		}
	}
}
