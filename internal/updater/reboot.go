package updater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

// RebootHandler выполняет принудительный power-cycle droplet'а.
//
// Если задача несёт downgrade_to (emergency rollback), после ребута
// sidecar приводится к указанной версии через агент.
type RebootHandler struct {
	provider InfraProvider
	agent    AgentAPI
	versions VersionStore
	states   StateStore
	cfg      SidecarConfig
	logger   *slog.Logger
}

// NewRebootHandler создаёт обработчик очереди hard-reboot-droplet.
func NewRebootHandler(provider InfraProvider, agent AgentAPI, versions VersionStore, states StateStore, cfg SidecarConfig, logger *slog.Logger) *RebootHandler {
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	return &RebootHandler{
		provider: provider,
		agent:    agent,
		versions: versions,
		states:   states,
		cfg:      cfg,
		logger:   logger.With("handler", "hard_reboot"),
	}
}

// Queue реализует queue.Handler.
func (h *RebootHandler) Queue() domain.QueueName { return domain.QueueHardReboot }

// Handle реализует queue.Handler.
func (h *RebootHandler) Handle(ctx context.Context, msg *mq.JobMessage) (*queue.Result, error) {
	job, err := mq.ParsePayload[domain.HardRebootJob](msg)
	if err != nil {
		return nil, fmt.Errorf("parse reboot payload: %w", err)
	}

	log := h.logger.With(
		"workspace_id", job.WorkspaceID,
		"droplet_id", job.DropletID,
		"reason", job.Reason,
	)

	if err := h.provider.PowerCycle(ctx, job.DropletID); err != nil {
		return nil, err
	}

	// После power-cycle droplet заново проходит PROVISIONING: зомби-метка
	// снимается, здоровье подтвердит первый heartbeat.
	if err := h.states.SetState(ctx, job.WorkspaceID, domain.DropletStateProvisioning); err != nil {
		return nil, fmt.Errorf("set provisioning state: %w", err)
	}

	if job.DowngradeTo == "" {
		log.Info("droplet rebooted")
		return &queue.Result{Status: domain.JobStatusCompleted}, nil
	}

	return h.downgrade(ctx, job, log)
}

// downgrade приводит sidecar к целевой версии после ребута.
func (h *RebootHandler) downgrade(ctx context.Context, job domain.HardRebootJob, log *slog.Logger) (*queue.Result, error) {
	// Дожидаемся, пока агент поднимется после ребута.
	if err := h.agent.HealthCheck(ctx, job.DropletID, h.cfg.HealthCheckTimeout); err != nil {
		return nil, fmt.Errorf("agent not reachable after reboot: %w", err)
	}

	if err := h.agent.Rollback(ctx, job.DropletID, job.DowngradeTo); err != nil {
		return nil, fmt.Errorf("downgrade to %s: %w", job.DowngradeTo, err)
	}

	rec, err := h.versions.GetByWorkspace(ctx, job.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("load version record: %w", err)
	}
	rec.MarkRolledBack(domain.ComponentSidecar, job.DowngradeTo)
	if err := h.versions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist downgrade: %w", err)
	}

	log.Warn("droplet rebooted and downgraded", "version", job.DowngradeTo)
	return &queue.Result{Status: domain.JobStatusRolledBack, Error: "emergency downgrade to " + job.DowngradeTo}, nil
}
