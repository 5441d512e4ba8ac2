package watchdog

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

type fakeStore struct {
	fleet     []domain.DropletHealth
	setStates []domain.DropletState
}

func (s *fakeStore) ListNonHibernated(ctx context.Context) ([]domain.DropletHealth, error) {
	return s.fleet, nil
}

func (s *fakeStore) SetState(ctx context.Context, workspaceID uuid.UUID, state domain.DropletState) error {
	s.setStates = append(s.setStates, state)
	return nil
}

type fakeEnqueuer struct {
	queues   []domain.QueueName
	payloads []any
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, queueName domain.QueueName, workspaceID uuid.UUID, payload any, opts queue.EnqueueOptions) (*domain.FleetUpdateJob, error) {
	e.queues = append(e.queues, queueName)
	e.payloads = append(e.payloads, payload)
	return &domain.FleetUpdateJob{ID: uuid.New()}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRunCycle_StaleDropletMarkedAndRebooted(t *testing.T) {
	now := time.Now()
	stale := now.Add(-10 * time.Minute)

	store := &fakeStore{fleet: []domain.DropletHealth{
		{
			WorkspaceID:     uuid.New(),
			DropletID:       "droplet-1",
			State:           domain.DropletStateActiveHealthy,
			LastHeartbeatAt: &stale,
		},
	}}
	enqueuer := &fakeEnqueuer{}

	w := New(store, enqueuer, Config{}, testLogger())
	if err := w.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle failed: %v", err)
	}

	if len(store.setStates) != 1 || store.setStates[0] != domain.DropletStateZombie {
		t.Errorf("expected one ZOMBIE state write, got %v", store.setStates)
	}
	if len(enqueuer.queues) != 1 || enqueuer.queues[0] != domain.QueueHardReboot {
		t.Fatalf("expected one hard-reboot job, got %v", enqueuer.queues)
	}
	job, ok := enqueuer.payloads[0].(domain.HardRebootJob)
	if !ok {
		t.Fatalf("payload should be HardRebootJob, got %T", enqueuer.payloads[0])
	}
	if job.Reason != domain.RebootReasonHeartbeatTimeout {
		t.Errorf("reboot reason should be heartbeat timeout, got %s", job.Reason)
	}
}

func TestRunCycle_ZombieNotReprocessed(t *testing.T) {
	now := time.Now()
	stale := now.Add(-30 * time.Minute)

	// Droplet уже ZOMBIE с прошлого цикла: ни повторной пометки,
	// ни второй reboot-задачи.
	store := &fakeStore{fleet: []domain.DropletHealth{
		{
			WorkspaceID:     uuid.New(),
			DropletID:       "droplet-1",
			State:           domain.DropletStateZombie,
			LastHeartbeatAt: &stale,
		},
	}}
	enqueuer := &fakeEnqueuer{}

	w := New(store, enqueuer, Config{}, testLogger())
	if err := w.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle failed: %v", err)
	}

	if len(store.setStates) != 0 {
		t.Errorf("zombie droplet must not be re-marked, got %v", store.setStates)
	}
	if len(enqueuer.queues) != 0 {
		t.Errorf("zombie droplet must not get a second reboot job, got %v", enqueuer.queues)
	}
}

func TestRunCycle_HealthyFleetNoActions(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Minute)

	store := &fakeStore{fleet: []domain.DropletHealth{
		{WorkspaceID: uuid.New(), DropletID: "d-1", State: domain.DropletStateActiveHealthy, LastHeartbeatAt: &fresh},
		{WorkspaceID: uuid.New(), DropletID: "d-2", State: domain.DropletStateProvisioning},
	}}
	enqueuer := &fakeEnqueuer{}

	w := New(store, enqueuer, Config{}, testLogger())
	if err := w.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle failed: %v", err)
	}

	if len(store.setStates) != 0 || len(enqueuer.queues) != 0 {
		t.Error("healthy fleet must produce no state writes or jobs")
	}
}
