package rollout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/compat"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
	"github.com/nishchith-m10/fleet-control-plane/internal/repo"
)

type memStore struct {
	mu        sync.Mutex
	rollouts  map[uuid.UUID]domain.FleetRollout
	createErr error
}

func newMemStore() *memStore {
	return &memStore{rollouts: make(map[uuid.UUID]domain.FleetRollout)}
}

func (s *memStore) Create(ctx context.Context, r *domain.FleetRollout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.rollouts[r.ID] = *r
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.FleetRollout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rollouts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &r, nil
}

func (s *memStore) GetActiveForComponent(ctx context.Context, component domain.Component) (*domain.FleetRollout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rollouts {
		if r.Component == component && !r.Status.IsTerminal() && r.Status != domain.RolloutStatusPaused {
			copied := r
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) GetCurrentForComponent(ctx context.Context, component domain.Component) (*domain.FleetRollout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rollouts {
		if r.Component == component && !r.Status.IsTerminal() {
			copied := r
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) Update(ctx context.Context, r *domain.FleetRollout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollouts[r.ID] = *r
	return nil
}

type memTenants struct {
	ids []uuid.UUID
}

func (t *memTenants) ListWorkspacesOnVersion(ctx context.Context, component domain.Component, version string) ([]uuid.UUID, error) {
	return t.ids, nil
}

func (t *memTenants) ListAllWorkspaces(ctx context.Context) ([]uuid.UUID, error) {
	return t.ids, nil
}

type memDroplets struct{}

func (d *memDroplets) GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.DropletHealth, error) {
	return &domain.DropletHealth{WorkspaceID: workspaceID, DropletID: "droplet-" + workspaceID.String()[:8]}, nil
}

type memErrRate struct {
	mu   sync.Mutex
	rate float64
}

func (e *memErrRate) FleetErrorRate(ctx context.Context, workspaceIDs []uuid.UUID) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate, nil
}

// memJobs — durable-зеркала задач. Enqueuer пишет сюда, Resume читает
// отсюда покрытие флота задачами.
type memJobs struct {
	mu   sync.Mutex
	jobs []domain.FleetUpdateJob
}

func (j *memJobs) add(job domain.FleetUpdateJob) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs = append(j.jobs, job)
}

func (j *memJobs) ListByRollout(ctx context.Context, rolloutID uuid.UUID) ([]domain.FleetUpdateJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.FleetUpdateJob
	for _, job := range j.jobs {
		if job.RolloutID != nil && *job.RolloutID == rolloutID {
			out = append(out, job)
		}
	}
	return out, nil
}

type memEnqueuer struct {
	mu       sync.Mutex
	byWave   map[int][]uuid.UUID
	tenants  map[uuid.UUID]int
	enqueued int
	calls    int
	failAt   int // номер вызова, который упадёт (0 — никогда)
	jobs     *memJobs
}

func newMemEnqueuer(jobs *memJobs) *memEnqueuer {
	return &memEnqueuer{
		byWave:  make(map[int][]uuid.UUID),
		tenants: make(map[uuid.UUID]int),
		jobs:    jobs,
	}
}

func (e *memEnqueuer) Enqueue(ctx context.Context, queueName domain.QueueName, workspaceID uuid.UUID, payload any, opts queue.EnqueueOptions) (*domain.FleetUpdateJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failAt != 0 && e.calls == e.failAt {
		return nil, errors.New("broker unavailable")
	}
	e.enqueued++
	e.byWave[opts.WaveNumber] = append(e.byWave[opts.WaveNumber], workspaceID)
	e.tenants[workspaceID]++

	job := domain.FleetUpdateJob{
		ID:          uuid.New(),
		Queue:       queueName,
		WorkspaceID: workspaceID,
		Status:      domain.JobStatusQueued,
		RolloutID:   opts.RolloutID,
		WaveNumber:  opts.WaveNumber,
	}
	e.jobs.add(job)
	return &job, nil
}

type engineFixture struct {
	engine   *Engine
	store    *memStore
	enqueuer *memEnqueuer
	jobs     *memJobs
	ids      []uuid.UUID
}

func testEngine(t *testing.T, total int, rate float64) *engineFixture {
	t.Helper()

	ids := make([]uuid.UUID, total)
	for i := range ids {
		ids[i] = uuid.New()
	}

	registry, err := compat.NewRegistry(compat.DefaultRules())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	store := newMemStore()
	jobs := &memJobs{}
	enqueuer := newMemEnqueuer(jobs)
	engine := New(
		store,
		&memTenants{ids: ids},
		&memDroplets{},
		&memErrRate{rate: rate},
		registry,
		enqueuer,
		jobs,
		Config{MonitorPollInterval: 5 * time.Millisecond},
		slog.New(slog.DiscardHandler),
	)
	return &engineFixture{engine: engine, store: store, enqueuer: enqueuer, jobs: jobs, ids: ids}
}

// waitForStatus ждёт, пока rollout не дойдёт до нужного статуса.
func waitForStatus(t *testing.T, store *memStore, id uuid.UUID, status domain.RolloutStatus) *domain.FleetRollout {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := store.GetByID(context.Background(), id)
		if err == nil && r.Status == status {
			return r
		}
		time.Sleep(2 * time.Millisecond)
	}
	if r, err := store.GetByID(context.Background(), id); err == nil {
		t.Fatalf("rollout never reached %s, stuck at %s", status, r.Status)
	}
	t.Fatalf("rollout never reached %s", status)
	return nil
}

func shortWaves() []domain.Wave {
	return []domain.Wave{
		{Ordinal: 0, Percentage: 10, ErrorThresholdPercent: 2, MonitorDuration: 15 * time.Millisecond},
		{Ordinal: 1, Percentage: 50, ErrorThresholdPercent: 3, MonitorDuration: 15 * time.Millisecond},
		{Ordinal: 2, Percentage: 100, ErrorThresholdPercent: 5, MonitorDuration: 0},
	}
}

func TestEngine_InitiateRejections(t *testing.T) {
	fix := testEngine(t, 10, 0)
	engine, store := fix.engine, fix.store
	defer engine.Stop()

	t.Run("dashboard component unsupported", func(t *testing.T) {
		_, err := engine.Initiate(context.Background(), InitiateRequest{
			Component: domain.ComponentDashboard,
			ToVersion: "1.3.0",
		})
		if err == nil {
			t.Fatal("dashboard rollouts must be rejected")
		}
	})

	t.Run("version outside all rules", func(t *testing.T) {
		_, err := engine.Initiate(context.Background(), InitiateRequest{
			Component: domain.ComponentSidecar,
			ToVersion: "9.9.9",
		})
		if err == nil {
			t.Fatal("uncovered version must be rejected")
		}
	})

	t.Run("broken wave ladder", func(t *testing.T) {
		_, err := engine.Initiate(context.Background(), InitiateRequest{
			Component: domain.ComponentSidecar,
			ToVersion: "1.3.0",
			Waves: []domain.Wave{
				{Ordinal: 0, Percentage: 50, ErrorThresholdPercent: 1, MonitorDuration: time.Minute},
			},
		})
		if err == nil {
			t.Fatal("non-terminal ladder must be rejected")
		}
	})

	t.Run("second active rollout for component", func(t *testing.T) {
		store.mu.Lock()
		active := domain.FleetRollout{ID: uuid.New(), Component: domain.ComponentWorkflow, Status: domain.RolloutStatusCanary}
		store.rollouts[active.ID] = active
		store.mu.Unlock()

		_, err := engine.Initiate(context.Background(), InitiateRequest{
			Component: domain.ComponentWorkflow,
			ToVersion: "1.3.0",
		})
		if err == nil {
			t.Fatal("concurrent rollout for the same component must be rejected")
		}
	})
}

// Две инициации могут пройти предварительную проверку одновременно;
// гонку разрешает хранилище, и его отказ читается как "уже активна".
func TestEngine_InitiateStoreConflict(t *testing.T) {
	fix := testEngine(t, 10, 0)
	defer fix.engine.Stop()

	fix.store.mu.Lock()
	fix.store.createErr = repo.ErrAlreadyExists
	fix.store.mu.Unlock()

	_, err := fix.engine.Initiate(context.Background(), InitiateRequest{
		Component: domain.ComponentSidecar,
		ToVersion: "1.3.0",
	})
	if !errors.Is(err, ErrRolloutActive) {
		t.Fatalf("store conflict should surface as ErrRolloutActive, got %v", err)
	}
}

func TestEngine_DeltaDispatch(t *testing.T) {
	const total = 20
	fix := testEngine(t, total, 0)
	engine, store, enqueuer := fix.engine, fix.store, fix.enqueuer
	defer engine.Stop()

	rollout, err := engine.Initiate(context.Background(), InitiateRequest{
		Component: domain.ComponentSidecar,
		ToVersion: "1.3.0",
		Waves:     shortWaves(),
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	final := waitForStatus(t, store, rollout.ID, domain.RolloutStatusCompleted)
	if final.TotalTenants != total {
		t.Errorf("total tenants = %d, expected %d", final.TotalTenants, total)
	}

	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()

	// Каждый tenant получает ровно одну задачу: волны диспатчат дельту,
	// а не весь накопительный процент заново.
	if enqueuer.enqueued != total {
		t.Errorf("expected %d jobs total, got %d", total, enqueuer.enqueued)
	}
	for ws, n := range enqueuer.tenants {
		if n != 1 {
			t.Errorf("tenant %s dispatched %d times", ws, n)
		}
	}

	// Размеры дельт следуют лестнице: 10% от 20 = 2, затем до 10, затем до 20.
	if n := len(enqueuer.byWave[0]); n != 2 {
		t.Errorf("canary delta = %d, expected 2", n)
	}
	if n := len(enqueuer.byWave[1]); n != 8 {
		t.Errorf("wave 1 delta = %d, expected 8", n)
	}
	if n := len(enqueuer.byWave[2]); n != 10 {
		t.Errorf("wave 2 delta = %d, expected 10", n)
	}
}

func TestEngine_AutoPauseOnThresholdBreach(t *testing.T) {
	fix := testEngine(t, 20, 50) // error rate 50% — выше любого порога
	engine, store, enqueuer := fix.engine, fix.store, fix.enqueuer
	defer engine.Stop()

	rollout, err := engine.Initiate(context.Background(), InitiateRequest{
		Component: domain.ComponentSidecar,
		ToVersion: "1.3.0",
		Waves:     shortWaves(),
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	paused := waitForStatus(t, store, rollout.ID, domain.RolloutStatusPaused)
	if paused.AbortReason == "" {
		t.Error("auto-pause should record the breach reason")
	}

	// Дальше canary дело не пошло
	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	if enqueuer.enqueued != 2 {
		t.Errorf("only the canary delta should be dispatched, got %d jobs", enqueuer.enqueued)
	}
}

func TestEngine_WorkflowRolloutFansOut(t *testing.T) {
	const total = 4
	fix := testEngine(t, total, 0)
	engine, store, enqueuer := fix.engine, fix.store, fix.enqueuer
	defer engine.Stop()

	rollout, err := engine.Initiate(context.Background(), InitiateRequest{
		Component: domain.ComponentWorkflow,
		ToVersion: "1.3.0",
		Strategy:  domain.StrategyImmediate,
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	waitForStatus(t, store, rollout.ID, domain.RolloutStatusCompleted)

	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	// Одна workflow-задача на каждое управляемое определение
	expected := total * len(domain.ManagedWorkflows)
	if enqueuer.enqueued != expected {
		t.Errorf("expected %d workflow jobs, got %d", expected, enqueuer.enqueued)
	}
}

func TestEngine_EmptyFleet(t *testing.T) {
	fix := testEngine(t, 0, 0)
	defer fix.engine.Stop()

	_, err := fix.engine.Initiate(context.Background(), InitiateRequest{
		Component: domain.ComponentSidecar,
		ToVersion: "1.3.0",
	})
	if err == nil {
		t.Fatal("empty fleet must be rejected")
	}
}
