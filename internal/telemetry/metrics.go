package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики control plane.
//
// Регистрируются в default registry, отдаются через promhttp на /metrics.
var (
	// JobsProcessed — завершённые задачи по очереди и результату.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "queue",
		Name:      "jobs_processed_total",
		Help:      "Completed queue jobs by queue name and outcome.",
	}, []string{"queue", "outcome"})

	// JobsActive — задачи в обработке прямо сейчас.
	JobsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fleet",
		Subsystem: "queue",
		Name:      "jobs_active",
		Help:      "Jobs currently being processed per queue.",
	}, []string{"queue"})

	// JobDuration — длительность обработки задачи.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleet",
		Subsystem: "queue",
		Name:      "job_duration_seconds",
		Help:      "Job processing duration per queue.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"queue"})

	// HeartbeatsBuffered — heartbeat'ы, принятые в буфер.
	HeartbeatsBuffered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "heartbeat",
		Name:      "buffered_total",
		Help:      "Heartbeats accepted into the in-memory buffer.",
	})

	// HeartbeatFlushes — сбросы буфера heartbeat по результату.
	HeartbeatFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "heartbeat",
		Name:      "flushes_total",
		Help:      "Heartbeat buffer flushes by outcome.",
	}, []string{"outcome"})

	// WatchdogActions — действия watchdog по виду.
	WatchdogActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "watchdog",
		Name:      "actions_total",
		Help:      "Corrective actions emitted by the watchdog.",
	}, []string{"action"})

	// RolloutWaveTransitions — переходы rollout между волнами.
	RolloutWaveTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "rollout",
		Name:      "wave_transitions_total",
		Help:      "Rollout state machine transitions by resulting status.",
	}, []string{"status"})

	// RolloutsActive — активные rollout'ы.
	RolloutsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleet",
		Subsystem: "rollout",
		Name:      "active",
		Help:      "Rollouts currently in a non-terminal, non-paused state.",
	})

	// HTTPRequests — запросы к API control plane по маршруту и статусу.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route pattern and status code.",
	}, []string{"route", "status"})

	// ProviderRequests — запросы к API инфраструктурного провайдера.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Infrastructure provider API calls by operation and outcome.",
	}, []string{"operation", "outcome"})
)
