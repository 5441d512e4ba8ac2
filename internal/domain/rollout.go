package domain

import (
	"time"

	"github.com/google/uuid"
)

// Component — управляемый компонент, версию которого раскатываем.
type Component string

const (
	// ComponentDashboard — версия схемы/контрактов dashboard.
	ComponentDashboard Component = "dashboard"

	// ComponentSidecar — per-tenant sidecar процесс.
	ComponentSidecar Component = "sidecar"

	// ComponentWorkflow — управляемые workflow-определения.
	ComponentWorkflow Component = "workflow"
)

// FleetRollout — одна раскатка версии компонента по флоту.
//
// Создаётся при инициации rollout, мутируется только циклом оценки волн
// в rollout.Engine. После completed/aborted/rolled_back запись терминальна.
type FleetRollout struct {
	// ID — уникальный идентификатор rollout.
	ID uuid.UUID `json:"id"`

	// Component — какой компонент раскатываем.
	Component Component `json:"component"`

	// FromVersion — версия, с которой обновляемся.
	FromVersion string `json:"from_version"`

	// ToVersion — целевая версия.
	ToVersion string `json:"to_version"`

	// Strategy — стратегия раскатки.
	Strategy RolloutStrategy `json:"strategy"`

	// Waves — лестница волн, с которой rollout был инициирован.
	// Resume обязан наблюдать те же пороги и окна, что и инициация,
	// поэтому лестница хранится на записи, а не выводится из стратегии.
	Waves []Wave `json:"waves,omitempty"`

	// Status — текущее состояние state machine.
	Status RolloutStatus `json:"status"`

	// WaveOrdinal — порядковый номер текущей волны (0 = canary).
	// Никогда не уменьшается.
	WaveOrdinal int `json:"wave_ordinal"`

	// TotalTenants — размер флота на момент инициации.
	TotalTenants int `json:"total_tenants"`

	// UpdatedTenants — сколько tenants успешно обновлено.
	UpdatedTenants int `json:"updated_tenants"`

	// FailedTenants — сколько обновлений упало.
	// Инвариант: UpdatedTenants + FailedTenants <= TotalTenants.
	FailedTenants int `json:"failed_tenants"`

	// ErrorThreshold — порог ошибок текущей волны в процентах.
	ErrorThreshold float64 `json:"error_threshold"`

	// CanaryPercentage — размер canary-волны в процентах флота.
	CanaryPercentage float64 `json:"canary_percentage"`

	// StartedAt — время начала первой волны.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// PausedAt — время последней паузы.
	PausedAt *time.Time `json:"paused_at,omitempty"`

	// CompletedAt — время достижения терминального статуса.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// AbortReason — причина прерывания (для aborted/rolled_back).
	AbortReason string `json:"abort_reason,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// Wave — одна ступень раскатки.
type Wave struct {
	// Ordinal — порядковый номер волны (0 = canary).
	Ordinal int `json:"ordinal"`

	// Percentage — целевой процент флота, накопительно.
	Percentage float64 `json:"percentage"`

	// ErrorThresholdPercent — допустимый процент ошибок во время окна
	// наблюдения. Превышение → авто-пауза rollout.
	ErrorThresholdPercent float64 `json:"error_threshold_percent"`

	// MonitorDuration — длительность окна наблюдения после диспатча волны.
	// Ноль допустим только у терминальной 100%-волны.
	MonitorDuration time.Duration `json:"monitor_duration"`
}

// IsTerminalWave возвращает true для 100%-волны.
func (w Wave) IsTerminalWave() bool {
	return w.Percentage >= 100
}

// IsFinished возвращает true, если rollout в терминальном статусе.
func (r *FleetRollout) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkStarted переводит rollout из pending в canary.
func (r *FleetRollout) MarkStarted() {
	now := time.Now()
	r.Status = RolloutStatusCanary
	r.StartedAt = &now
}

// AdvanceWave переводит rollout на следующую волну.
// Wave ordinal только растёт — регресс невозможен.
func (r *FleetRollout) AdvanceWave(next Wave) {
	if next.Ordinal <= r.WaveOrdinal {
		return
	}
	r.WaveOrdinal = next.Ordinal
	r.Status = waveStatus(next.Ordinal)
	r.ErrorThreshold = next.ErrorThresholdPercent
}

// waveStatus отображает номер волны в статус state machine.
func waveStatus(ordinal int) RolloutStatus {
	switch ordinal {
	case 0:
		return RolloutStatusCanary
	case 1:
		return RolloutStatusWave1
	case 2:
		return RolloutStatusWave2
	case 3:
		return RolloutStatusWave3
	default:
		return RolloutStatusWave4
	}
}

// MarkPaused приостанавливает rollout.
func (r *FleetRollout) MarkPaused(reason string) {
	now := time.Now()
	r.Status = RolloutStatusPaused
	r.PausedAt = &now
	r.AbortReason = reason
}

// Resume возвращает приостановленный rollout к волне, на которой он стоял.
func (r *FleetRollout) Resume() {
	r.Status = waveStatus(r.WaveOrdinal)
	r.PausedAt = nil
}

// MarkCompleted завершает rollout.
func (r *FleetRollout) MarkCompleted() {
	now := time.Now()
	r.Status = RolloutStatusCompleted
	r.CompletedAt = &now
}

// MarkAborted прерывает rollout с причиной.
func (r *FleetRollout) MarkAborted(reason string) {
	now := time.Now()
	r.Status = RolloutStatusAborted
	r.CompletedAt = &now
	r.AbortReason = reason
}

// MarkRolledBack отмечает rollout откатанным (emergency rollback).
func (r *FleetRollout) MarkRolledBack(reason string) {
	now := time.Now()
	r.Status = RolloutStatusRolledBack
	r.CompletedAt = &now
	r.AbortReason = reason
}

// RecordTenantResult учитывает результат обновления одного tenant.
// Сумма updated+failed не превышает total.
func (r *FleetRollout) RecordTenantResult(succeeded bool) {
	if r.UpdatedTenants+r.FailedTenants >= r.TotalTenants {
		return
	}
	if succeeded {
		r.UpdatedTenants++
	} else {
		r.FailedTenants++
	}
}
