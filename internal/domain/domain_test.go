package domain

import (
	"testing"
	"time"
)

func TestRolloutStateMachine(t *testing.T) {
	r := &FleetRollout{Status: RolloutStatusPending, TotalTenants: 100}

	r.MarkStarted()
	if r.Status != RolloutStatusCanary {
		t.Errorf("after start expected canary, got %s", r.Status)
	}
	if r.StartedAt == nil {
		t.Error("started_at should be set")
	}

	r.AdvanceWave(Wave{Ordinal: 1, Percentage: 10, ErrorThresholdPercent: 2})
	if r.Status != RolloutStatusWave1 || r.WaveOrdinal != 1 {
		t.Errorf("expected wave_1/ordinal 1, got %s/%d", r.Status, r.WaveOrdinal)
	}
	if r.ErrorThreshold != 2 {
		t.Errorf("threshold should follow the wave, got %.0f", r.ErrorThreshold)
	}

	// Регресс волны невозможен
	r.AdvanceWave(Wave{Ordinal: 0, Percentage: 1})
	if r.WaveOrdinal != 1 {
		t.Errorf("wave ordinal must never regress, got %d", r.WaveOrdinal)
	}

	r.MarkCompleted()
	if !r.IsFinished() {
		t.Error("completed rollout must be terminal")
	}
}

func TestRolloutPauseResume(t *testing.T) {
	r := &FleetRollout{Status: RolloutStatusPending}
	r.MarkStarted()
	r.AdvanceWave(Wave{Ordinal: 2, Percentage: 25})

	r.MarkPaused("error threshold breached")
	if r.Status != RolloutStatusPaused {
		t.Errorf("expected paused, got %s", r.Status)
	}
	if r.PausedAt == nil {
		t.Error("paused_at should be set")
	}
	if r.IsFinished() {
		t.Error("paused rollout is not terminal")
	}

	// Resume возвращает к волне, на которой rollout стоял
	r.Resume()
	if r.Status != RolloutStatusWave2 {
		t.Errorf("resume should restore wave_2, got %s", r.Status)
	}
	if r.PausedAt != nil {
		t.Error("paused_at should be cleared on resume")
	}
}

func TestRolloutTenantCounters(t *testing.T) {
	r := &FleetRollout{TotalTenants: 2}

	r.RecordTenantResult(true)
	r.RecordTenantResult(false)
	// Сверх total учёт не идёт
	r.RecordTenantResult(true)

	if r.UpdatedTenants != 1 || r.FailedTenants != 1 {
		t.Errorf("expected 1/1, got %d/%d", r.UpdatedTenants, r.FailedTenants)
	}
}

func TestJobLifecycle(t *testing.T) {
	j := &FleetUpdateJob{Status: JobStatusQueued}

	for attempt := 1; attempt <= MaxJobAttempts; attempt++ {
		if !j.CanRetry() {
			t.Fatalf("attempt %d should be allowed", attempt)
		}
		j.MarkProcessing()
		if j.Attempts != attempt {
			t.Errorf("expected %d attempts, got %d", attempt, j.Attempts)
		}
	}
	if j.CanRetry() {
		t.Errorf("no retries left after %d attempts", MaxJobAttempts)
	}

	j.MarkFailed("agent unreachable")
	if !j.IsFinished() {
		t.Error("failed job must be terminal")
	}
	if j.FinishedAt == nil {
		t.Error("finished_at should be set")
	}
}

func TestJobRequeue(t *testing.T) {
	j := &FleetUpdateJob{Status: JobStatusQueued}
	j.MarkProcessing()
	j.Requeue()

	if j.Status != JobStatusQueued {
		t.Errorf("expected queued after requeue, got %s", j.Status)
	}
	if j.StartedAt != nil {
		t.Error("started_at should be cleared on requeue")
	}
	// Счётчик попыток переживает requeue
	if j.Attempts != 1 {
		t.Errorf("attempts must survive requeue, got %d", j.Attempts)
	}
}

func TestJobRolledBackIsTerminalSuccess(t *testing.T) {
	j := &FleetUpdateJob{Status: JobStatusProcessing}
	j.MarkRolledBack("health check failed after swap")

	if j.Status != JobStatusRolledBack {
		t.Errorf("expected rolled_back, got %s", j.Status)
	}
	if !j.IsFinished() {
		t.Error("rolled_back is a terminal status")
	}
}

func TestConfigFor(t *testing.T) {
	for _, q := range AllQueues {
		cfg, err := ConfigFor(q)
		if err != nil {
			t.Errorf("queue %s must be configured: %v", q, err)
		}
		if cfg.Concurrency <= 0 {
			t.Errorf("queue %s has no concurrency", q)
		}
	}

	if _, err := ConfigFor("no-such-queue"); err == nil {
		t.Error("unknown queue must be an error, not a fallback")
	}
}

func TestQueueConcurrencyTable(t *testing.T) {
	expect := map[QueueName]int{
		QueueWorkflowUpdate:   100,
		QueueSidecarUpdate:    50,
		QueueWakeDroplet:      50,
		QueueCredentialInject: 50,
		QueueHardReboot:       10,
	}
	for q, want := range expect {
		cfg, err := ConfigFor(q)
		if err != nil {
			t.Fatalf("ConfigFor(%s): %v", q, err)
		}
		if cfg.Concurrency != want {
			t.Errorf("queue %s concurrency = %d, expected %d", q, cfg.Concurrency, want)
		}
	}
}

func TestHeartbeatAge(t *testing.T) {
	now := time.Now()

	h := &DropletHealth{}
	if age := h.HeartbeatAge(now); age != 0 {
		t.Errorf("droplet without heartbeats has zero age, got %s", age)
	}

	past := now.Add(-3 * time.Minute)
	h.LastHeartbeatAt = &past
	if age := h.HeartbeatAge(now); age != 3*time.Minute {
		t.Errorf("expected 3m age, got %s", age)
	}
}
