package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the chat core absorbs instead of surfacing to clients.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections         prometheus.Counter
	activeSessions      prometheus.Gauge
	messages            *prometheus.CounterVec
	messageLatency      prometheus.Histogram
	persistenceFailures prometheus.Counter
	codecFallbacks      *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec
	healthy             prometheus.Gauge
	residentBytes       prometheus.Gauge
	cpuPercent          prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carechat_websocket_connections_total",
			Help: "Total websocket connections that completed the handshake.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carechat_sessions_active",
			Help: "Participants currently registered with a live channel.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carechat_messages_total",
			Help: "Chat messages grouped by outcome.",
		}, []string{"type"}),
		messageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carechat_message_latency_seconds",
			Help:    "Time spent routing one inbound message.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carechat_persistence_failures_total",
			Help: "Messages relayed without a durable write after retries were exhausted.",
		}),
		codecFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carechat_codec_fallbacks_total",
			Help: "Codec failures degraded to pass-through.",
		}, []string{"op"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carechat_rate_limited_total",
			Help: "Admissions refused by a rate limiter.",
		}, []string{"gate"}),
		healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carechat_healthy",
			Help: "1 when the last health sample reached the datastore.",
		}),
		residentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carechat_process_resident_bytes",
			Help: "Resident set size of the server process.",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carechat_process_cpu_percent",
			Help: "CPU usage of the server process.",
		}),
	}

	reg.MustRegister(
		m.connections,
		m.activeSessions,
		m.messages,
		m.messageLatency,
		m.persistenceFailures,
		m.codecFallbacks,
		m.rateLimited,
		m.healthy,
		m.residentBytes,
		m.cpuPercent,
	)
	return m
}

func (m *Metrics) TrackConnection() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) TrackMessage(messageType string) {
	if m == nil {
		return
	}
	if messageType == "" {
		messageType = "unknown"
	}
	m.messages.WithLabelValues(messageType).Inc()
}

func (m *Metrics) ObserveLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.messageLatency.Observe(d.Seconds())
}

func (m *Metrics) RecordPersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

func (m *Metrics) RecordCodecFallback(op string) {
	if m == nil {
		return
	}
	m.codecFallbacks.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordRateLimited(gate string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(gate).Inc()
}

// ObserveHealth exports one sample taken by the health monitor.
func (m *Metrics) ObserveHealth(report HealthReport, healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.healthy.Set(1)
	} else {
		m.healthy.Set(0)
	}
	m.residentBytes.Set(float64(report.RSSBytes))
	m.cpuPercent.Set(report.CPUPercent)
}
