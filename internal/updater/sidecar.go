package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

// Дефолтные таймауты шагов blue-green протокола. Health-check держится
// коротким: бюджет простоя на swap — единицы секунд, и долгий опрос
// его только маскирует.
const (
	DefaultDrainTimeout       = 300 * time.Second
	DefaultHealthCheckTimeout = 60 * time.Second
)

// VersionStore — персистентность версий tenants.
type VersionStore interface {
	GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.TenantVersionRecord, error)
	Upsert(ctx context.Context, rec *domain.TenantVersionRecord) error
}

// SidecarConfig — настройки sidecar-протокола.
type SidecarConfig struct {
	// DrainTimeout — максимальное ожидание завершения in-flight операций.
	DrainTimeout time.Duration

	// HealthCheckTimeout — максимальное ожидание здоровья после swap.
	HealthCheckTimeout time.Duration
}

// SidecarHandler выполняет blue-green обновление sidecar одного tenant.
//
// Семь шагов: prepare → drain → pull → checkpoint → swap → health-check
// → commit. Провал post-swap health check запускает автоматический
// откат на from_version: tenant никогда не остаётся на полуприменённой
// версии.
type SidecarHandler struct {
	agent    AgentAPI
	versions VersionStore
	cfg      SidecarConfig
	logger   *slog.Logger
}

// NewSidecarHandler создаёт обработчик очереди sidecar-update.
func NewSidecarHandler(agent AgentAPI, versions VersionStore, cfg SidecarConfig, logger *slog.Logger) *SidecarHandler {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	return &SidecarHandler{
		agent:    agent,
		versions: versions,
		cfg:      cfg,
		logger:   logger.With("handler", "sidecar_update"),
	}
}

// Queue реализует queue.Handler.
func (h *SidecarHandler) Queue() domain.QueueName { return domain.QueueSidecarUpdate }

// Handle реализует queue.Handler.
func (h *SidecarHandler) Handle(ctx context.Context, msg *mq.JobMessage) (*queue.Result, error) {
	job, err := mq.ParsePayload[domain.SidecarUpdateJob](msg)
	if err != nil {
		return nil, fmt.Errorf("parse sidecar payload: %w", err)
	}

	log := h.logger.With(
		"workspace_id", job.WorkspaceID,
		"droplet_id", job.DropletID,
		"from_version", job.FromVersion,
		"to_version", job.ToVersion,
	)

	rec, err := h.markUpdating(ctx, job)
	if err != nil {
		return nil, err
	}

	// Шаги 1-5: до health check любая ошибка — transient, задача уходит
	// в retry, контейнер tenant'а ещё не затронут либо переживёт
	// повторный prepare.
	if err := h.runUpdateSteps(ctx, job, log); err != nil {
		rec.MarkFailed()
		if upErr := h.versions.Upsert(ctx, rec); upErr != nil {
			log.Error("failed to persist version record", "error", upErr)
		}
		return nil, err
	}

	// Шаг 6: health check. Провал — протокольный сбой, не retry:
	// компенсация откатом.
	if err := h.agent.HealthCheck(ctx, job.DropletID, h.cfg.HealthCheckTimeout); err != nil {
		log.Warn("post-swap health check failed, rolling back", "error", err)
		return h.rollBack(ctx, job, rec, err, log)
	}

	// Шаг 7: commit версии.
	rec.CommitVersion(domain.ComponentSidecar, job.ToVersion)
	if err := h.versions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("commit version record: %w", err)
	}

	log.Info("sidecar updated")
	return &queue.Result{Status: domain.JobStatusCompleted}, nil
}

func (h *SidecarHandler) markUpdating(ctx context.Context, job domain.SidecarUpdateJob) (*domain.TenantVersionRecord, error) {
	rec, err := h.versions.GetByWorkspace(ctx, job.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("load version record: %w", err)
	}
	rec.MarkUpdating()
	if err := h.versions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("mark updating: %w", err)
	}
	return rec, nil
}

func (h *SidecarHandler) runUpdateSteps(ctx context.Context, job domain.SidecarUpdateJob, log *slog.Logger) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"prepare", func(ctx context.Context) error { return h.agent.PrepareUpdate(ctx, job.DropletID) }},
		{"drain", func(ctx context.Context) error { return h.agent.Drain(ctx, job.DropletID, h.cfg.DrainTimeout) }},
		{"pull", func(ctx context.Context) error { return h.agent.PullImage(ctx, job.DropletID, job.ToVersion) }},
		{"checkpoint", func(ctx context.Context) error { return h.agent.Checkpoint(ctx, job.DropletID) }},
		{"swap", func(ctx context.Context) error { return h.agent.Swap(ctx, job.DropletID, job.ToVersion) }},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("step %s: %w", step.name, err)
		}
		log.Debug("protocol step done", "step", step.name)
	}
	return nil
}

// rollBack возвращает tenant на from_version после провала health check.
func (h *SidecarHandler) rollBack(ctx context.Context, job domain.SidecarUpdateJob, rec *domain.TenantVersionRecord, cause error, log *slog.Logger) (*queue.Result, error) {
	if err := h.agent.Rollback(ctx, job.DropletID, job.FromVersion); err != nil {
		// Откат не прошёл — transient, пусть retry доведёт компенсацию.
		return nil, fmt.Errorf("rollback to %s: %w", job.FromVersion, err)
	}

	rec.MarkRolledBack(domain.ComponentSidecar, job.FromVersion)
	if err := h.versions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist rollback: %w", err)
	}

	log.Warn("sidecar rolled back", "version", job.FromVersion)
	return &queue.Result{
		Status: domain.JobStatusRolledBack,
		Error:  fmt.Sprintf("health check failed: %v", cause),
	}, nil
}
