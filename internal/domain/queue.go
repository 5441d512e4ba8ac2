package domain

import (
	"fmt"
	"time"
)

// QueueName — имя одной из пяти очередей обновлений.
//
// Типизированное имя вместо строк: конфигурация очереди берётся из
// compile-time таблицы QueueConfigs, несконфигурированная очередь —
// это ошибка конфигурации, а не тихая деградация.
type QueueName string

const (
	// QueueWorkflowUpdate — пуш workflow-определения одному tenant.
	QueueWorkflowUpdate QueueName = "workflow-update"

	// QueueSidecarUpdate — blue-green обновление sidecar одного tenant.
	QueueSidecarUpdate QueueName = "sidecar-update"

	// QueueWakeDroplet — пробуждение hibernated-инстанса.
	QueueWakeDroplet QueueName = "wake-droplet"

	// QueueCredentialInject — пуш зашифрованных credentials в tenant.
	QueueCredentialInject QueueName = "credential-inject"

	// QueueHardReboot — принудительный power-cycle через API провайдера.
	QueueHardReboot QueueName = "hard-reboot-droplet"
)

// QueueConfig — конфигурация одной очереди.
type QueueConfig struct {
	// Concurrency — размер пула воркеров очереди.
	Concurrency int

	// MaxAttempts — потолок попыток на задачу.
	MaxAttempts int

	// BackoffBase — базовая задержка экспоненциального backoff.
	BackoffBase time.Duration

	// KeepCompleted — сколько завершённых задач хранить для аудита.
	KeepCompleted int

	// KeepFailed — сколько упавших задач хранить для аудита.
	KeepFailed int

	// Exclusive — не больше одной активной (queued/processing) задачи
	// на workspace. Два одновременных blue-green обновления sidecar
	// одного tenant состязались бы за одни и те же слоты контейнера.
	Exclusive bool
}

// QueueConfigs — таблица конфигураций всех пяти очередей.
//
// hard-reboot-droplet намеренно с минимальной конкурентностью:
// power-cycle через провайдера жёстко rate-limited.
var QueueConfigs = map[QueueName]QueueConfig{
	QueueWorkflowUpdate:   {Concurrency: 100, MaxAttempts: MaxJobAttempts, BackoffBase: 2 * time.Second, KeepCompleted: 1000, KeepFailed: 5000},
	QueueSidecarUpdate:    {Concurrency: 50, MaxAttempts: MaxJobAttempts, BackoffBase: 2 * time.Second, KeepCompleted: 1000, KeepFailed: 5000, Exclusive: true},
	QueueWakeDroplet:      {Concurrency: 50, MaxAttempts: MaxJobAttempts, BackoffBase: 2 * time.Second, KeepCompleted: 1000, KeepFailed: 5000},
	QueueCredentialInject: {Concurrency: 50, MaxAttempts: MaxJobAttempts, BackoffBase: 2 * time.Second, KeepCompleted: 1000, KeepFailed: 5000},
	QueueHardReboot:       {Concurrency: 10, MaxAttempts: MaxJobAttempts, BackoffBase: 5 * time.Second, KeepCompleted: 1000, KeepFailed: 5000},
}

// AllQueues — все очереди в стабильном порядке.
var AllQueues = []QueueName{
	QueueWorkflowUpdate,
	QueueSidecarUpdate,
	QueueWakeDroplet,
	QueueCredentialInject,
	QueueHardReboot,
}

// ConfigFor возвращает конфигурацию очереди.
// Несконфигурированная очередь — ошибка, без fallback-значений.
func ConfigFor(name QueueName) (QueueConfig, error) {
	cfg, ok := QueueConfigs[name]
	if !ok {
		return QueueConfig{}, fmt.Errorf("queue not configured: %s", name)
	}
	return cfg, nil
}
