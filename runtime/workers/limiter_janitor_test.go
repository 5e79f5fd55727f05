package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	sweeps atomic.Int32
}

func (s *countingSweeper) Sweep() int {
	s.sweeps.Add(1)
	return 1
}

func TestLimiterJanitor_SweepsEveryLimiter(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	first, second := &countingSweeper{}, &countingSweeper{}
	janitor := NewLimiterJanitor(log, 5*time.Millisecond, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- janitor.Run(ctx) }()

	req.Eventually(func() bool {
		return first.sweeps.Load() >= 2 && second.sweeps.Load() >= 2
	}, time.Second, time.Millisecond)

	cancel()
	req.ErrorIs(<-done, context.Canceled)
}
