package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// JobStore — durable-зеркала задач, нужные постановщику.
// *repo.JobRepo реализует интерфейс.
type JobStore interface {
	Create(ctx context.Context, job *domain.FleetUpdateJob) error
	Update(ctx context.Context, job *domain.FleetUpdateJob) error
	CountActiveForWorkspace(ctx context.Context, workspaceID uuid.UUID, queue domain.QueueName) (int, error)
}

// JobPublisher публикует сообщение задачи в брокер.
// *mq.Publisher реализует интерфейс.
type JobPublisher interface {
	PublishJob(ctx context.Context, queue domain.QueueName, jobID uuid.UUID, payload any, priority uint8) error
}

// Enqueuer создаёт durable-зеркало задачи и публикует её в очередь.
//
// Единственная точка постановки задач: её используют API-слой,
// rollout engine, watchdog и emergency rollback.
type Enqueuer struct {
	jobs      JobStore
	publisher JobPublisher
	logger    *slog.Logger
}

// NewEnqueuer создаёт новый Enqueuer.
func NewEnqueuer(jobs JobStore, publisher JobPublisher, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		jobs:      jobs,
		publisher: publisher,
		logger:    logger,
	}
}

// EnqueueOptions — параметры постановки задачи.
type EnqueueOptions struct {
	// RolloutID — rollout, породивший задачу (nil для ad-hoc).
	RolloutID *uuid.UUID

	// WaveNumber — номер волны rollout.
	WaveNumber int

	// Priority — приоритет сообщения (PriorityRoutine по умолчанию).
	Priority uint8
}

// Enqueue ставит задачу в очередь.
//
// Несконфигурированная очередь отклоняется синхронно, до создания
// каких-либо записей. Для exclusive-очереди вторая активная задача
// того же workspace отклоняется с ErrJobActive.
func (e *Enqueuer) Enqueue(ctx context.Context, queueName domain.QueueName, workspaceID uuid.UUID, payload any, opts EnqueueOptions) (*domain.FleetUpdateJob, error) {
	cfg, err := domain.ConfigFor(queueName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotConfigured, queueName)
	}

	if cfg.Exclusive {
		active, err := e.jobs.CountActiveForWorkspace(ctx, workspaceID, queueName)
		if err != nil {
			return nil, fmt.Errorf("count active jobs: %w", err)
		}
		if active > 0 {
			return nil, fmt.Errorf("%w: %s has %d active on %s", ErrJobActive, workspaceID, active, queueName)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	job := &domain.FleetUpdateJob{
		ID:          uuid.New(),
		Queue:       queueName,
		WorkspaceID: workspaceID,
		Payload:     body,
		Status:      domain.JobStatusQueued,
		RolloutID:   opts.RolloutID,
		WaveNumber:  opts.WaveNumber,
		CreatedAt:   time.Now(),
	}

	// Сначала durable-зеркало, потом сообщение: воркер, получивший
	// сообщение, всегда найдёт запись.
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job mirror: %w", err)
	}

	if err := e.publisher.PublishJob(ctx, queueName, job.ID, payload, opts.Priority); err != nil {
		// Сообщение не ушло — помечаем зеркало failed, чтобы запись
		// не висела queued навсегда.
		job.MarkFailed(fmt.Sprintf("publish: %v", err))
		if updateErr := e.jobs.Update(ctx, job); updateErr != nil {
			e.logger.Error("failed to mark unpublished job", "job_id", job.ID, "error", updateErr)
		}
		return nil, fmt.Errorf("publish job: %w", err)
	}

	e.logger.Debug("job enqueued",
		"queue", queueName,
		"job_id", job.ID,
		"workspace_id", workspaceID,
		"priority", opts.Priority,
	)

	return job, nil
}
