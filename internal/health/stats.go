package health

import (
	"sync"
	"time"
)

// ServiceStats — снимок состояния периодического сервиса
// (watchdog, heartbeat processor, maintenance).
type ServiceStats struct {
	// Running — сервис запущен и не остановлен.
	Running bool `json:"running"`

	// LastRunAt — время завершения последнего цикла.
	// Nil для только что стартовавшего сервиса.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// PollInterval — сконфигурированный интервал циклов.
	PollInterval time.Duration `json:"-"`

	// ErrorCount — сколько циклов завершилось ошибкой.
	ErrorCount int64 `json:"error_count"`

	// LastError — текст последней ошибки.
	LastError string `json:"last_error,omitempty"`
}

// Service — периодический сервис, отчитывающийся агрегатору.
type Service interface {
	// Name — имя сервиса в составном статусе.
	Name() string

	// HealthStats — текущий снимок состояния.
	HealthStats() ServiceStats
}

// IsHealthy определяет здоровье сервиса.
//
// Сервис здоров, если он запущен и либо ещё не завершил ни одного
// цикла (свежий старт), либо последний цикл завершился не позже чем
// 3× интервала назад. Иначе сервис считается зависшим.
func IsHealthy(stats ServiceStats, now time.Time) bool {
	if !stats.Running {
		return false
	}
	if stats.LastRunAt == nil {
		return true
	}
	return now.Sub(*stats.LastRunAt) <= 3*stats.PollInterval
}

// Tracker — учёт жизненных показателей периодического сервиса.
//
// Каждый сервис владеет своим Tracker'ом: ошибки цикла ловятся на
// границе задачи, инкрементируют счётчик и не роняют процесс.
type Tracker struct {
	mu           sync.Mutex
	running      bool
	lastRunAt    *time.Time
	pollInterval time.Duration
	errorCount   int64
	lastError    string
}

// NewTracker создаёт Tracker с интервалом сервиса.
func NewTracker(pollInterval time.Duration) *Tracker {
	return &Tracker{pollInterval: pollInterval}
}

// SetRunning отмечает запуск/остановку сервиса.
func (t *Tracker) SetRunning(running bool) {
	t.mu.Lock()
	t.running = running
	t.mu.Unlock()
}

// RecordRun фиксирует успешное завершение цикла.
func (t *Tracker) RecordRun() {
	now := time.Now()
	t.mu.Lock()
	t.lastRunAt = &now
	t.mu.Unlock()
}

// RecordError фиксирует ошибку цикла. Цикл при этом считается
// состоявшимся: зависший сервис и сервис с ошибками — разные сигналы.
func (t *Tracker) RecordError(err error) {
	now := time.Now()
	t.mu.Lock()
	t.lastRunAt = &now
	t.errorCount++
	t.lastError = err.Error()
	t.mu.Unlock()
}

// Stats возвращает снимок.
func (t *Tracker) Stats() ServiceStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ServiceStats{
		Running:      t.running,
		LastRunAt:    t.lastRunAt,
		PollInterval: t.pollInterval,
		ErrorCount:   t.errorCount,
		LastError:    t.lastError,
	}
}
