package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxJobAttempts — жёсткий потолок попыток для всех очередей.
const MaxJobAttempts = 3

// FleetUpdateJob — durable-зеркало задачи в очереди обновлений.
//
// Одна строка на единицу работы. После терминального статуса запись
// неизменяема (кроме audit-полей). RolloutID = nil для ad-hoc задач,
// запущенных вне rollout.
type FleetUpdateJob struct {
	// ID — уникальный идентификатор задачи.
	ID uuid.UUID `json:"id"`

	// Queue — имя очереди, в которую отправлена задача.
	Queue QueueName `json:"queue"`

	// WorkspaceID — tenant, к которому относится задача.
	WorkspaceID uuid.UUID `json:"workspace_id"`

	// Payload — сериализованный payload задачи (JSON).
	Payload []byte `json:"payload,omitempty"`

	// Attempts — сколько попыток уже сделано (потолок MaxJobAttempts).
	Attempts int `json:"attempts"`

	// Status — текущий статус задачи.
	Status JobStatus `json:"status"`

	// RolloutID — rollout, в рамках которого задача создана.
	// Nil для ad-hoc задач.
	RolloutID *uuid.UUID `json:"rollout_id,omitempty"`

	// WaveNumber — номер волны rollout (0 = canary).
	WaveNumber int `json:"wave_number"`

	// Error — текст последней ошибки.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала последней попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального статуса.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания задачи.
	CreatedAt time.Time `json:"created_at"`
}

// IsFinished возвращает true, если задача в терминальном статусе.
func (j *FleetUpdateJob) IsFinished() bool {
	return j.Status.IsTerminal()
}

// CanRetry проверяет, остались ли попытки.
func (j *FleetUpdateJob) CanRetry() bool {
	return j.Attempts < MaxJobAttempts
}

// MarkProcessing переводит задачу в processing и увеличивает счётчик попыток.
func (j *FleetUpdateJob) MarkProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.Attempts++
}

// MarkCompleted завершает задачу успешно.
func (j *FleetUpdateJob) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.FinishedAt = &now
	j.Error = ""
}

// MarkFailed завершает задачу с ошибкой.
func (j *FleetUpdateJob) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.FinishedAt = &now
	j.Error = err
}

// MarkRolledBack отмечает, что протокол обновления откатил tenant.
func (j *FleetUpdateJob) MarkRolledBack(reason string) {
	now := time.Now()
	j.Status = JobStatusRolledBack
	j.FinishedAt = &now
	j.Error = reason
}

// Requeue возвращает задачу в очередь для повторной попытки.
func (j *FleetUpdateJob) Requeue() {
	j.Status = JobStatusQueued
	j.StartedAt = nil
}
