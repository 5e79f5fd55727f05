package workers

import (
	"care-chat/observability"
	"context"
	"log/slog"
	"time"
)

const DefaultHealthInterval = 30 * time.Second

type HealthProbe interface {
	Check(ctx context.Context) (observability.HealthReport, bool)
}

// HealthMonitoringWorker samples the health report on a ticker, exports the
// process figures and logs every healthy/degraded transition once.
type HealthMonitoringWorker struct {
	log      *slog.Logger
	probe    HealthProbe
	metrics  *observability.Metrics
	interval time.Duration
	healthy  bool
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	probe HealthProbe,
	metrics *observability.Metrics,
	interval time.Duration,
) *HealthMonitoringWorker {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthMonitoringWorker{
		log:      log,
		probe:    probe,
		metrics:  metrics,
		interval: interval,
		healthy:  true,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return ctx.Err()
		case <-ticker.C:
			w.sample(ctx)
		}
	}
}

func (w *HealthMonitoringWorker) sample(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	report, healthy := w.probe.Check(checkCtx)
	w.metrics.ObserveHealth(report, healthy)

	switch {
	case healthy && !w.healthy:
		w.log.Info("Service healthy again", "sessions", report.Sessions)
	case !healthy && w.healthy:
		w.log.Warn("Service degraded", "datastore", report.Datastore, "sessions", report.Sessions)
	}
	w.healthy = healthy
}
