package domain

// RolloutStatus — статус поэтапного rollout.
//
// Жизненный цикл:
//
//	pending → canary → wave_1 → wave_2 → wave_3 → wave_4 → completed
//
// Из любого нетерминального статуса достижимы paused, aborted, rolled_back.
type RolloutStatus string

const (
	// RolloutStatusPending — rollout создан, волны ещё не запускались.
	RolloutStatusPending RolloutStatus = "pending"

	// RolloutStatusCanary — выполняется canary-волна (минимальный процент флота).
	RolloutStatusCanary RolloutStatus = "canary"

	// RolloutStatusWave1 — волна 1.
	RolloutStatusWave1 RolloutStatus = "wave_1"

	// RolloutStatusWave2 — волна 2.
	RolloutStatusWave2 RolloutStatus = "wave_2"

	// RolloutStatusWave3 — волна 3.
	RolloutStatusWave3 RolloutStatus = "wave_3"

	// RolloutStatusWave4 — финальная волна (100% флота).
	RolloutStatusWave4 RolloutStatus = "wave_4"

	// RolloutStatusPaused — rollout приостановлен (автоматически при превышении
	// порога ошибок или вручную оператором). Требует resume или abort.
	RolloutStatusPaused RolloutStatus = "paused"

	// RolloutStatusCompleted — все волны прошли, rollout завершён.
	RolloutStatusCompleted RolloutStatus = "completed"

	// RolloutStatusAborted — rollout прерван оператором; уже обновлённые
	// tenants откатываются.
	RolloutStatusAborted RolloutStatus = "aborted"

	// RolloutStatusRolledBack — rollout откатан (emergency rollback).
	RolloutStatusRolledBack RolloutStatus = "rolled_back"
)

// IsTerminal возвращает true, если статус финальный.
func (s RolloutStatus) IsTerminal() bool {
	switch s {
	case RolloutStatusCompleted, RolloutStatusAborted, RolloutStatusRolledBack:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если rollout активен (не приостановлен и не
// завершён). У одного компонента может быть не более одного активного rollout.
func (s RolloutStatus) IsActive() bool {
	return !s.IsTerminal() && s != RolloutStatusPaused
}

// JobStatus — статус задачи в очереди обновлений.
//
// Жизненный цикл:
//
//	queued → processing → completed
//	                    ↘ failed (после исчерпания попыток)
//	                    ↘ rolled_back (health check упал после swap)
type JobStatus string

const (
	// JobStatusQueued — задача в очереди, ожидает воркера.
	JobStatusQueued JobStatus = "queued"

	// JobStatusProcessing — задача выполняется воркером.
	JobStatusProcessing JobStatus = "processing"

	// JobStatusCompleted — задача успешно завершена.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed — задача упала после всех попыток.
	JobStatusFailed JobStatus = "failed"

	// JobStatusRolledBack — протокол обновления откатил tenant на прежнюю
	// версию (post-swap health check не прошёл).
	JobStatusRolledBack JobStatus = "rolled_back"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusRolledBack:
		return true
	default:
		return false
	}
}

// UpdateStatus — статус версии компонента у tenant.
type UpdateStatus string

const (
	// UpdateStatusCurrent — tenant на актуальной для него версии.
	UpdateStatusCurrent UpdateStatus = "current"

	// UpdateStatusUpdating — обновление в процессе. Подразумевает ровно одну
	// активную задачу в очереди для этой пары tenant/компонент.
	UpdateStatusUpdating UpdateStatus = "updating"

	// UpdateStatusFailed — последнее обновление упало.
	UpdateStatusFailed UpdateStatus = "failed"

	// UpdateStatusRolledBack — tenant откачен на предыдущую версию.
	UpdateStatusRolledBack UpdateStatus = "rolled_back"
)

// DropletState — состояние droplet (удалённого runtime-инстанса tenant).
type DropletState string

const (
	// DropletStateProvisioning — droplet создаётся или просыпается,
	// heartbeat ещё не ожидается.
	DropletStateProvisioning DropletState = "PROVISIONING"

	// DropletStateActiveHealthy — droplet работает, heartbeat свежий.
	DropletStateActiveHealthy DropletState = "ACTIVE_HEALTHY"

	// DropletStateActiveDegraded — droplet работает, но ресурсы на пределе.
	DropletStateActiveDegraded DropletState = "ACTIVE_DEGRADED"

	// DropletStateHibernated — droplet спит. Ресурсные метрики NULL,
	// watchdog пропускает такие записи целиком.
	DropletStateHibernated DropletState = "HIBERNATED"

	// DropletStateZombie — droplet перестал присылать heartbeat дольше
	// таймаута. Назначается только watchdog'ом.
	DropletStateZombie DropletState = "ZOMBIE"
)

// RolloutStrategy — стратегия раскатки.
type RolloutStrategy string

const (
	// StrategyCanary — с canary-волной и последующими ступенями.
	StrategyCanary RolloutStrategy = "canary"

	// StrategyStaged — ступенчатая раскатка без отдельного canary.
	StrategyStaged RolloutStrategy = "staged"

	// StrategyImmediate — сразу 100% флота (одна волна).
	StrategyImmediate RolloutStrategy = "immediate"
)
