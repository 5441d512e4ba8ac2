package queue

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

type fakeJobStore struct {
	jobs      []*domain.FleetUpdateJob
	updates   []*domain.FleetUpdateJob
	createErr error
}

func (s *fakeJobStore) Create(_ context.Context, job *domain.FleetUpdateJob) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *fakeJobStore) Update(_ context.Context, job *domain.FleetUpdateJob) error {
	s.updates = append(s.updates, job)
	return nil
}

func (s *fakeJobStore) CountActiveForWorkspace(_ context.Context, workspaceID uuid.UUID, queue domain.QueueName) (int, error) {
	n := 0
	for _, job := range s.jobs {
		if job.WorkspaceID == workspaceID && job.Queue == queue && !job.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

type fakePublisher struct {
	published int
	err       error
}

func (p *fakePublisher) PublishJob(_ context.Context, _ domain.QueueName, _ uuid.UUID, _ any, _ uint8) error {
	if p.err != nil {
		return p.err
	}
	p.published++
	return nil
}

func testEnqueuer(store *fakeJobStore, pub *fakePublisher) *Enqueuer {
	return NewEnqueuer(store, pub, slog.New(slog.DiscardHandler))
}

func TestEnqueue_UnknownQueueRejected(t *testing.T) {
	e := testEnqueuer(&fakeJobStore{}, &fakePublisher{})

	_, err := e.Enqueue(context.Background(), "no-such-queue", uuid.New(), struct{}{}, EnqueueOptions{})
	if !errors.Is(err, ErrQueueNotConfigured) {
		t.Fatalf("expected ErrQueueNotConfigured, got %v", err)
	}
}

func TestEnqueue_ExclusiveQueueRejectsSecondActive(t *testing.T) {
	store := &fakeJobStore{}
	e := testEnqueuer(store, &fakePublisher{})
	ws := uuid.New()

	payload := domain.SidecarUpdateJob{WorkspaceID: ws, ToVersion: "1.3.0"}
	if _, err := e.Enqueue(context.Background(), domain.QueueSidecarUpdate, ws, payload, EnqueueOptions{}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	_, err := e.Enqueue(context.Background(), domain.QueueSidecarUpdate, ws, payload, EnqueueOptions{})
	if !errors.Is(err, ErrJobActive) {
		t.Fatalf("second active sidecar update must be rejected, got %v", err)
	}
	if len(store.jobs) != 1 {
		t.Errorf("rejected enqueue must not create a mirror, have %d", len(store.jobs))
	}
}

func TestEnqueue_ExclusiveQueueAllowsAfterCompletion(t *testing.T) {
	store := &fakeJobStore{}
	e := testEnqueuer(store, &fakePublisher{})
	ws := uuid.New()

	job, err := e.Enqueue(context.Background(), domain.QueueSidecarUpdate, ws, struct{}{}, EnqueueOptions{})
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	job.MarkCompleted()

	if _, err := e.Enqueue(context.Background(), domain.QueueSidecarUpdate, ws, struct{}{}, EnqueueOptions{}); err != nil {
		t.Fatalf("enqueue after completion: %v", err)
	}
}

func TestEnqueue_NonExclusiveQueueFansOut(t *testing.T) {
	store := &fakeJobStore{}
	e := testEnqueuer(store, &fakePublisher{})
	ws := uuid.New()

	// Workflow-раскатка ставит по задаче на каждый managed workflow
	// одного workspace, все активны одновременно.
	for i := 0; i < len(domain.ManagedWorkflows); i++ {
		if _, err := e.Enqueue(context.Background(), domain.QueueWorkflowUpdate, ws, struct{}{}, EnqueueOptions{}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if len(store.jobs) != len(domain.ManagedWorkflows) {
		t.Errorf("expected %d mirrors, have %d", len(domain.ManagedWorkflows), len(store.jobs))
	}
}

func TestEnqueue_PublishFailureMarksMirror(t *testing.T) {
	store := &fakeJobStore{}
	e := testEnqueuer(store, &fakePublisher{err: errors.New("broker gone")})

	_, err := e.Enqueue(context.Background(), domain.QueueWakeDroplet, uuid.New(), struct{}{}, EnqueueOptions{})
	if err == nil {
		t.Fatal("publish failure must surface")
	}
	if len(store.updates) != 1 || store.updates[0].Status != domain.JobStatusFailed {
		t.Fatalf("unpublished mirror must be marked failed, updates: %+v", store.updates)
	}
}
