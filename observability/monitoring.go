package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Pinger reports whether the datastore answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthReport struct {
	Status     string    `json:"status"`
	Datastore  string    `json:"datastore"`
	Sessions   int       `json:"sessions"`
	Pid        int32     `json:"pid"`
	PidStatus  string    `json:"pid_status,omitempty"`
	RSSBytes   uint64    `json:"rss_bytes,omitempty"`
	CPUPercent float64   `json:"cpu_percent,omitempty"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	Goroutines int       `json:"goroutines"`
	CheckedAt  time.Time `json:"checked_at"`
}

// HealthChecker aggregates datastore reachability with process statistics.
type HealthChecker struct {
	log      *slog.Logger
	store    Pinger
	sessions func() int
	proc     *process.Process
}

func NewHealthChecker(log *slog.Logger, store Pinger, sessions func() int) *HealthChecker {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	}
	return &HealthChecker{log: log, store: store, sessions: sessions, proc: proc}
}

// Check returns the report and whether the service should be considered healthy.
func (h *HealthChecker) Check(ctx context.Context) (HealthReport, bool) {
	report := HealthReport{
		Status:     "ok",
		Datastore:  "ok",
		Pid:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
		CheckedAt:  time.Now().UTC(),
	}
	healthy := true

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Datastore health check failed", "error", err)
		report.Status = "degraded"
		report.Datastore = err.Error()
		healthy = false
	}

	if h.sessions != nil {
		report.Sessions = h.sessions()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	report.AllocMemMb = m.Alloc / 1024 / 1024
	report.NumGC = m.NumGC

	if h.proc != nil {
		rss, cpu, status, err := selfStats(h.proc)
		if err != nil {
			h.log.Debug("Failed to collect self stats", "error", err)
		} else {
			report.RSSBytes, report.CPUPercent, report.PidStatus = rss, cpu, status
		}
	}
	return report, healthy
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
