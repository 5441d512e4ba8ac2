package domain

import (
	"time"

	"github.com/google/uuid"
)

// Watchdog-пороги. Сравнение везде строгое: значение ровно на пороге
// тревогу не вызывает.
const (
	// HeartbeatTimeout — максимальный возраст heartbeat до признания
	// droplet зомби.
	HeartbeatTimeout = 5 * time.Minute

	// CPUAlertThreshold — порог CPU в процентах.
	CPUAlertThreshold = 90.0

	// MemoryAlertThreshold — порог памяти в процентах.
	MemoryAlertThreshold = 85.0

	// DiskAlertThreshold — порог диска в процентах.
	DiskAlertThreshold = 90.0
)

// DropletHealth — состояние здоровья droplet одного tenant.
//
// Мутируется только Heartbeat Processor'ом (записи heartbeat) и
// Watchdog'ом (переход в ZOMBIE).
type DropletHealth struct {
	// WorkspaceID — идентификатор tenant.
	WorkspaceID uuid.UUID `json:"workspace_id"`

	// DropletID — идентификатор инстанса у провайдера.
	DropletID string `json:"droplet_id"`

	// State — текущее состояние droplet.
	State DropletState `json:"state"`

	// LastHeartbeatAt — время последнего heartbeat.
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`

	// CPUPercent/MemoryPercent/DiskPercent — последние ресурсные метрики.
	// NULL для hibernated droplet: проверка пропускается, ноль не
	// подставляется.
	CPUPercent    *float64 `json:"cpu_percent,omitempty"`
	MemoryPercent *float64 `json:"memory_percent,omitempty"`
	DiskPercent   *float64 `json:"disk_percent,omitempty"`

	// SidecarHealthy — отчитался ли sidecar здоровым в последнем heartbeat.
	SidecarHealthy bool `json:"sidecar_healthy"`
}

// HeartbeatAge возвращает возраст последнего heartbeat.
// Для droplet без единого heartbeat возвращает 0 — watchdog не трогает
// инстансы, которые ещё не выходили на связь.
func (d *DropletHealth) HeartbeatAge(now time.Time) time.Duration {
	if d.LastHeartbeatAt == nil {
		return 0
	}
	return now.Sub(*d.LastHeartbeatAt)
}

// Heartbeat — payload, который droplet публикует в свой канал.
type Heartbeat struct {
	// WorkspaceID — идентификатор tenant.
	WorkspaceID uuid.UUID `json:"workspace_id"`

	// DropletID — идентификатор инстанса.
	DropletID string `json:"droplet_id"`

	// CPUPercent/MemoryPercent/DiskPercent — текущие метрики.
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`

	// SidecarHealthy — жив ли sidecar-процесс (n8n).
	SidecarHealthy bool `json:"n8n_healthy"`

	// Timestamp — время снятия метрик на droplet.
	Timestamp time.Time `json:"timestamp"`
}

// WatchdogActionKind — вид корректирующего действия.
type WatchdogActionKind string

const (
	// ActionReboot — принудительный power-cycle через провайдера.
	ActionReboot WatchdogActionKind = "reboot"

	// ActionAlert — уведомление оператора (по одному на метрику).
	ActionAlert WatchdogActionKind = "alert"

	// ActionMarkZombie — пометить droplet как ZOMBIE в durable-состоянии.
	ActionMarkZombie WatchdogActionKind = "mark_zombie"
)

// WatchdogAction — решение watchdog по одному droplet.
//
// Не персистится: это инструкция диспатчеру, а не durable-состояние.
// За один цикл по одному tenant может быть от нуля до пяти действий.
type WatchdogAction struct {
	// WorkspaceID — tenant.
	WorkspaceID uuid.UUID `json:"workspace_id"`

	// DropletID — инстанс.
	DropletID string `json:"droplet_id"`

	// Action — вид действия.
	Action WatchdogActionKind `json:"action"`

	// Reason — человекочитаемая причина.
	Reason string `json:"reason"`

	// Timestamp — время принятия решения (общее для всех действий цикла).
	Timestamp time.Time `json:"timestamp"`
}
