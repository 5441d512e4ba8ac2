package rollout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

func TestPause_Idempotent(t *testing.T) {
	fix := testEngine(t, 10, 0)
	engine, store := fix.engine, fix.store
	defer engine.Stop()

	r := domain.FleetRollout{
		ID:        uuid.New(),
		Component: domain.ComponentSidecar,
		Status:    domain.RolloutStatusWave1,
		Strategy:  domain.StrategyCanary,
	}
	store.mu.Lock()
	store.rollouts[r.ID] = r
	store.mu.Unlock()

	paused, err := engine.Pause(context.Background(), r.ID, "operator hold")
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if paused.Status != domain.RolloutStatusPaused {
		t.Errorf("expected paused, got %s", paused.Status)
	}

	// Повторная пауза — no-op, не ошибка
	again, err := engine.Pause(context.Background(), r.ID, "again")
	if err != nil {
		t.Fatalf("second Pause failed: %v", err)
	}
	if again.Status != domain.RolloutStatusPaused {
		t.Errorf("expected paused, got %s", again.Status)
	}
}

func TestPause_TerminalRejected(t *testing.T) {
	fix := testEngine(t, 10, 0)
	engine, store := fix.engine, fix.store
	defer engine.Stop()

	r := domain.FleetRollout{ID: uuid.New(), Component: domain.ComponentSidecar, Status: domain.RolloutStatusCompleted}
	store.mu.Lock()
	store.rollouts[r.ID] = r
	store.mu.Unlock()

	if _, err := engine.Pause(context.Background(), r.ID, "late"); err == nil {
		t.Fatal("pausing a finished rollout must fail")
	}
}

func TestResume_RequiresPaused(t *testing.T) {
	fix := testEngine(t, 10, 0)
	engine, store := fix.engine, fix.store
	defer engine.Stop()

	r := domain.FleetRollout{ID: uuid.New(), Component: domain.ComponentSidecar, Status: domain.RolloutStatusWave2, Strategy: domain.StrategyCanary}
	store.mu.Lock()
	store.rollouts[r.ID] = r
	store.mu.Unlock()

	if _, err := engine.Resume(context.Background(), r.ID); err == nil {
		t.Fatal("resuming a running rollout must fail")
	}
}

func TestResume_NoRedispatchOfCurrentWave(t *testing.T) {
	const total = 20
	fix := testEngine(t, total, 0)
	engine, store, enqueuer := fix.engine, fix.store, fix.enqueuer
	defer engine.Stop()

	// Rollout стоит на паузе после полного диспатча единственной
	// 100%-волны: durable-зеркала покрывают весь флот, дельты для
	// возобновления нет.
	r := domain.FleetRollout{
		ID:           uuid.New(),
		Component:    domain.ComponentSidecar,
		FromVersion:  "1.0.0",
		ToVersion:    "1.3.0",
		Strategy:     domain.StrategyImmediate,
		Status:       domain.RolloutStatusPaused,
		WaveOrdinal:  4,
		TotalTenants: total,
	}
	store.mu.Lock()
	store.rollouts[r.ID] = r
	store.mu.Unlock()
	for _, id := range fix.ids {
		fix.jobs.add(domain.FleetUpdateJob{
			ID:          uuid.New(),
			Queue:       domain.QueueSidecarUpdate,
			WorkspaceID: id,
			Status:      domain.JobStatusCompleted,
			RolloutID:   &r.ID,
		})
	}

	resumed, err := engine.Resume(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Status == domain.RolloutStatusPaused {
		t.Error("rollout should leave paused state")
	}

	waitForStatus(t, store, r.ID, domain.RolloutStatusCompleted)

	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	if enqueuer.enqueued != 0 {
		t.Errorf("resume must not re-dispatch the current wave, got %d jobs", enqueuer.enqueued)
	}
}

// Авто-пауза посреди диспатча волны оставляет её хвост без задач.
// Resume обязан достать этот хвост, а не пересчитать покрытие с
// процента волны и объявить раскатку завершённой.
func TestResume_RedispatchesInterruptedWaveTail(t *testing.T) {
	const total = 20
	fix := testEngine(t, total, 0)
	defer fix.engine.Stop()

	fix.enqueuer.mu.Lock()
	fix.enqueuer.failAt = 2
	fix.enqueuer.mu.Unlock()

	rollout, err := fix.engine.Initiate(context.Background(), InitiateRequest{
		Component: domain.ComponentSidecar,
		ToVersion: "1.3.0",
		Strategy:  domain.StrategyImmediate,
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	paused := waitForStatus(t, fix.store, rollout.ID, domain.RolloutStatusPaused)
	if paused.AbortReason == "" {
		t.Error("dispatch failure should record a pause reason")
	}

	fix.enqueuer.mu.Lock()
	fix.enqueuer.failAt = 0
	alreadyDispatched := fix.enqueuer.enqueued
	fix.enqueuer.mu.Unlock()
	if alreadyDispatched >= total {
		t.Fatalf("pause should interrupt the wave mid-dispatch, %d jobs already out", alreadyDispatched)
	}

	if _, err := fix.engine.Resume(context.Background(), rollout.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitForStatus(t, fix.store, rollout.ID, domain.RolloutStatusCompleted)

	fix.enqueuer.mu.Lock()
	defer fix.enqueuer.mu.Unlock()
	if fix.enqueuer.enqueued != total {
		t.Fatalf("every tenant must get a job after resume, got %d of %d", fix.enqueuer.enqueued, total)
	}
	for ws, n := range fix.enqueuer.tenants {
		if n != 1 {
			t.Errorf("tenant %s dispatched %d times", ws, n)
		}
	}
}

// Возобновление наблюдает лестницу, с которой rollout был инициирован,
// а не лестницу стратегии по умолчанию.
func TestResume_KeepsInitiatedWaves(t *testing.T) {
	fix := testEngine(t, 10, 0)
	defer fix.engine.Stop()

	custom := []domain.Wave{
		{Ordinal: 0, Percentage: 10, ErrorThresholdPercent: 2, MonitorDuration: 150 * time.Millisecond},
		{Ordinal: 1, Percentage: 100, ErrorThresholdPercent: 5, MonitorDuration: 0},
	}
	rollout, err := fix.engine.Initiate(context.Background(), InitiateRequest{
		Component: domain.ComponentSidecar,
		ToVersion: "1.3.0",
		Waves:     custom,
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	waitForStatus(t, fix.store, rollout.ID, domain.RolloutStatusCanary)
	if _, err := fix.engine.Pause(context.Background(), rollout.ID, "operator hold"); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	resumed, err := fix.engine.Resume(context.Background(), rollout.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if len(resumed.Waves) != len(custom) {
		t.Fatalf("resumed rollout lost its wave ladder: %d waves", len(resumed.Waves))
	}

	// Со стандартной canary-лестницей canary-окно длится 30 минут и до
	// завершения дело не дошло бы.
	waitForStatus(t, fix.store, rollout.ID, domain.RolloutStatusCompleted)
}

func TestAbort_DispatchesReversedJobs(t *testing.T) {
	const total = 6
	fix := testEngine(t, total, 0)
	engine, store, enqueuer := fix.engine, fix.store, fix.enqueuer
	defer engine.Stop()

	r := domain.FleetRollout{
		ID:           uuid.New(),
		Component:    domain.ComponentSidecar,
		FromVersion:  "1.0.0",
		ToVersion:    "1.3.0",
		Strategy:     domain.StrategyCanary,
		Status:       domain.RolloutStatusWave1,
		WaveOrdinal:  1,
		TotalTenants: total,
	}
	store.mu.Lock()
	store.rollouts[r.ID] = r
	store.mu.Unlock()

	aborted, err := engine.Abort(context.Background(), r.ID, "canary regression")
	if err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if aborted.Status != domain.RolloutStatusAborted {
		t.Errorf("expected aborted, got %s", aborted.Status)
	}
	if aborted.AbortReason != "canary regression" {
		t.Errorf("abort reason lost: %q", aborted.AbortReason)
	}

	// Тестовый TenantSource возвращает весь флот для любой версии:
	// каждый "обновлённый" tenant получает задачу в обратную сторону.
	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	if enqueuer.enqueued != total {
		t.Fatalf("expected %d rollback jobs, got %d", total, enqueuer.enqueued)
	}
}

func TestPreempt(t *testing.T) {
	fix := testEngine(t, 10, 0)
	engine, store := fix.engine, fix.store
	defer engine.Stop()

	t.Run("no rollout is not an error", func(t *testing.T) {
		if err := engine.Preempt(context.Background(), domain.ComponentSidecar, "incident"); err != nil {
			t.Fatalf("Preempt without a rollout failed: %v", err)
		}
	})

	t.Run("paused rollout is preempted too", func(t *testing.T) {
		r := domain.FleetRollout{
			ID:        uuid.New(),
			Component: domain.ComponentSidecar,
			Status:    domain.RolloutStatusPaused,
		}
		store.mu.Lock()
		store.rollouts[r.ID] = r
		store.mu.Unlock()

		if err := engine.Preempt(context.Background(), domain.ComponentSidecar, "incident"); err != nil {
			t.Fatalf("Preempt failed: %v", err)
		}

		got, _ := store.GetByID(context.Background(), r.ID)
		if got.Status != domain.RolloutStatusRolledBack {
			t.Errorf("preempted rollout should be rolled_back, got %s", got.Status)
		}
		if got.CompletedAt == nil {
			t.Error("preempted rollout should carry a completion time")
		}
	})
}

func TestWaveIndex(t *testing.T) {
	waves := DefaultWaves()
	if i := waveIndex(waves, 0); i != 0 {
		t.Errorf("ordinal 0 should map to index 0, got %d", i)
	}
	if i := waveIndex(waves, 3); i != 3 {
		t.Errorf("ordinal 3 should map to index 3, got %d", i)
	}
	// Staged-лестница начинается с ordinal 1
	staged := StagedWaves()
	if i := waveIndex(staged, 2); i != 1 {
		t.Errorf("ordinal 2 in staged ladder should map to index 1, got %d", i)
	}
}
