package watchdog

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func healthyDroplet(now time.Time) *domain.DropletHealth {
	hb := now.Add(-time.Minute)
	return &domain.DropletHealth{
		WorkspaceID:     uuid.New(),
		DropletID:       "droplet-1",
		State:           domain.DropletStateActiveHealthy,
		LastHeartbeatAt: &hb,
		CPUPercent:      ptr(40),
		MemoryPercent:   ptr(50),
		DiskPercent:     ptr(30),
		SidecarHealthy:  true,
	}
}

func TestEvaluate_HealthyDroplet(t *testing.T) {
	now := time.Now()
	actions := Evaluate(healthyDroplet(now), now)
	if len(actions) != 0 {
		t.Errorf("expected no actions for healthy droplet, got %d", len(actions))
	}
}

func TestEvaluate_ZombieActionOrder(t *testing.T) {
	now := time.Now()
	h := healthyDroplet(now)
	stale := now.Add(-6 * time.Minute)
	h.LastHeartbeatAt = &stale

	actions := Evaluate(h, now)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	// mark_zombie всегда до reboot
	if actions[0].Action != domain.ActionMarkZombie {
		t.Errorf("first action should be mark_zombie, got %s", actions[0].Action)
	}
	if actions[1].Action != domain.ActionReboot {
		t.Errorf("second action should be reboot, got %s", actions[1].Action)
	}
	if actions[0].WorkspaceID != h.WorkspaceID {
		t.Error("action should carry the droplet's workspace_id")
	}
}

func TestEvaluate_ExactThresholdIsNotBreach(t *testing.T) {
	now := time.Now()
	h := healthyDroplet(now)
	// Все значения ровно на пороге: сравнения строгие, действий нет.
	exact := now.Add(-domain.HeartbeatTimeout)
	h.LastHeartbeatAt = &exact
	h.CPUPercent = ptr(domain.CPUAlertThreshold)
	h.MemoryPercent = ptr(domain.MemoryAlertThreshold)
	h.DiskPercent = ptr(domain.DiskAlertThreshold)

	actions := Evaluate(h, now)
	if len(actions) != 0 {
		t.Errorf("values exactly at threshold must not trigger actions, got %d", len(actions))
	}
}

func TestEvaluate_ResourceAlerts(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(h *domain.DropletHealth)
		actions int
	}{
		{
			name:    "cpu above threshold",
			mutate:  func(h *domain.DropletHealth) { h.CPUPercent = ptr(95.5) },
			actions: 1,
		},
		{
			name:    "memory above threshold",
			mutate:  func(h *domain.DropletHealth) { h.MemoryPercent = ptr(85.1) },
			actions: 1,
		},
		{
			name:    "disk above threshold",
			mutate:  func(h *domain.DropletHealth) { h.DiskPercent = ptr(99) },
			actions: 1,
		},
		{
			name: "all three above threshold",
			mutate: func(h *domain.DropletHealth) {
				h.CPUPercent = ptr(95)
				h.MemoryPercent = ptr(90)
				h.DiskPercent = ptr(95)
			},
			actions: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := healthyDroplet(now)
			tt.mutate(h)

			actions := Evaluate(h, now)
			if len(actions) != tt.actions {
				t.Fatalf("expected %d actions, got %d", tt.actions, len(actions))
			}
			for _, a := range actions {
				if a.Action != domain.ActionAlert {
					t.Errorf("expected alert action, got %s", a.Action)
				}
			}
		})
	}
}

func TestEvaluate_NullMetricsSkipped(t *testing.T) {
	now := time.Now()
	h := healthyDroplet(now)
	// Hibernated droplet отчитывается без метрик: NULL не трактуется
	// ни как ноль, ни как превышение.
	h.CPUPercent = nil
	h.MemoryPercent = nil
	h.DiskPercent = nil

	actions := Evaluate(h, now)
	if len(actions) != 0 {
		t.Errorf("null metrics must be skipped, got %d actions", len(actions))
	}
}

func TestEvaluate_NeverHeartbeated(t *testing.T) {
	now := time.Now()
	h := healthyDroplet(now)
	h.LastHeartbeatAt = nil

	actions := Evaluate(h, now)
	if len(actions) != 0 {
		t.Errorf("droplet that never reported must not be touched, got %d actions", len(actions))
	}
}

func TestEvaluate_ZombieWithResourceBreach(t *testing.T) {
	now := time.Now()
	h := healthyDroplet(now)
	stale := now.Add(-10 * time.Minute)
	h.LastHeartbeatAt = &stale
	h.CPUPercent = ptr(95)

	// Зомби-пара и ресурсная тревога независимы: максимум за цикл
	// mark_zombie + reboot + три тревоги.
	actions := Evaluate(h, now)
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[0].Action != domain.ActionMarkZombie || actions[1].Action != domain.ActionReboot {
		t.Error("zombie pair must precede resource alerts")
	}
	if actions[2].Action != domain.ActionAlert {
		t.Errorf("third action should be alert, got %s", actions[2].Action)
	}
}
