package watchdog

import (
	"fmt"
	"time"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// Evaluate принимает решение по одному droplet.
//
// Чистая функция: вход — durable-запись и текущее время, выход —
// список действий в порядке применения. Все сравнения с порогами
// строгие, значение ровно на пороге действий не порождает.
func Evaluate(h *domain.DropletHealth, now time.Time) []domain.WatchdogAction {
	var actions []domain.WatchdogAction

	add := func(kind domain.WatchdogActionKind, reason string) {
		actions = append(actions, domain.WatchdogAction{
			WorkspaceID: h.WorkspaceID,
			DropletID:   h.DropletID,
			Action:      kind,
			Reason:      reason,
			Timestamp:   now,
		})
	}

	// Droplet, ни разу не выходивший на связь, не трогаем: возраст
	// heartbeat определён только после первого отчёта.
	if h.LastHeartbeatAt != nil {
		if age := h.HeartbeatAge(now); age > domain.HeartbeatTimeout {
			reason := fmt.Sprintf("no heartbeat for %s", age.Truncate(time.Second))
			add(domain.ActionMarkZombie, reason)
			add(domain.ActionReboot, reason)
		}
	}

	// Ресурсные тревоги независимы друг от друга и от зомби-проверки.
	// NULL-метрика (hibernated droplet) пропускается, ноль не подставляется.
	if h.CPUPercent != nil && *h.CPUPercent > domain.CPUAlertThreshold {
		add(domain.ActionAlert, fmt.Sprintf("cpu %.1f%% above %.0f%%", *h.CPUPercent, domain.CPUAlertThreshold))
	}
	if h.MemoryPercent != nil && *h.MemoryPercent > domain.MemoryAlertThreshold {
		add(domain.ActionAlert, fmt.Sprintf("memory %.1f%% above %.0f%%", *h.MemoryPercent, domain.MemoryAlertThreshold))
	}
	if h.DiskPercent != nil && *h.DiskPercent > domain.DiskAlertThreshold {
		add(domain.ActionAlert, fmt.Sprintf("disk %.1f%% above %.0f%%", *h.DiskPercent, domain.DiskAlertThreshold))
	}

	return actions
}
