// Package health агрегирует состояние control plane: воркеры очередей,
// периодические сервисы и составной статус для внешних health-проверок.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

// Status — составной статус control plane.
type Status string

const (
	// StatusHealthy — все воркеры и сервисы здоровы.
	StatusHealthy Status = "healthy"

	// StatusDegraded — часть воркеров или сервисов нездорова.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy — идёт остановка процесса. Перекрывает всё.
	StatusUnhealthy Status = "unhealthy"
)

// WorkerSource — воркер пула, отчитывающийся счётчиками.
type WorkerSource interface {
	Stats() queue.Stats
}

// Aggregator собирает статусы воркеров и сервисов в один отчёт.
type Aggregator struct {
	version   string
	startedAt time.Time

	mu       sync.Mutex
	workers  []WorkerSource
	services []Service

	shuttingDown atomic.Bool
}

// NewAggregator создаёт агрегатор.
func NewAggregator(version string) *Aggregator {
	return &Aggregator{
		version:   version,
		startedAt: time.Now(),
	}
}

// RegisterWorker добавляет воркер в отчёт.
func (a *Aggregator) RegisterWorker(w WorkerSource) {
	a.mu.Lock()
	a.workers = append(a.workers, w)
	a.mu.Unlock()
}

// RegisterService добавляет периодический сервис в отчёт.
func (a *Aggregator) RegisterService(s Service) {
	a.mu.Lock()
	a.services = append(a.services, s)
	a.mu.Unlock()
}

// SetShuttingDown переводит составной статус в unhealthy на время
// остановки. Обратного перехода нет.
func (a *Aggregator) SetShuttingDown() {
	a.shuttingDown.Store(true)
}

// Report — содержимое health-ответа.
type Report struct {
	Status        Status                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	StartedAt     time.Time               `json:"started_at"`
	Workers       map[string]queue.Stats  `json:"workers"`
	Services      map[string]ServiceStats `json:"services"`
	Version       string                  `json:"version"`
}

// Snapshot собирает отчёт на момент now.
func (a *Aggregator) Snapshot(now time.Time) Report {
	a.mu.Lock()
	workers := make([]WorkerSource, len(a.workers))
	copy(workers, a.workers)
	services := make([]Service, len(a.services))
	copy(services, a.services)
	a.mu.Unlock()

	report := Report{
		UptimeSeconds: int64(now.Sub(a.startedAt).Seconds()),
		StartedAt:     a.startedAt,
		Workers:       make(map[string]queue.Stats, len(workers)),
		Services:      make(map[string]ServiceStats, len(services)),
		Version:       a.version,
	}

	allHealthy := true
	for _, w := range workers {
		stats := w.Stats()
		report.Workers[string(stats.Queue)] = stats
		if !stats.Running {
			allHealthy = false
		}
	}
	for _, s := range services {
		stats := s.HealthStats()
		report.Services[s.Name()] = stats
		if !IsHealthy(stats, now) {
			allHealthy = false
		}
	}

	switch {
	case a.shuttingDown.Load():
		report.Status = StatusUnhealthy
	case allHealthy:
		report.Status = StatusHealthy
	default:
		report.Status = StatusDegraded
	}
	return report
}

// Handler возвращает HTTP-обработчик health-эндпоинта.
//
// 200 только для healthy; degraded и unhealthy оба отдают 503 —
// промежуточного внешнего кода нет.
func (a *Aggregator) Handler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := a.Snapshot(time.Now())

		code := http.StatusOK
		if report.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Error("failed to write health response", "error", err)
		}
	}
}
