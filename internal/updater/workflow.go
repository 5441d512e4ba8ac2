package updater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

// DropletResolver — поиск droplet tenant'а для прямых пушей.
type DropletResolver interface {
	GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.DropletHealth, error)
}

// WorkflowHandler пушит одно workflow-определение одному tenant.
type WorkflowHandler struct {
	agent    AgentAPI
	versions VersionStore
	droplets DropletResolver
	logger   *slog.Logger
}

// NewWorkflowHandler создаёт обработчик очереди workflow-update.
func NewWorkflowHandler(agent AgentAPI, versions VersionStore, droplets DropletResolver, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		agent:    agent,
		versions: versions,
		droplets: droplets,
		logger:   logger.With("handler", "workflow_update"),
	}
}

// Queue реализует queue.Handler.
func (h *WorkflowHandler) Queue() domain.QueueName { return domain.QueueWorkflowUpdate }

// Handle реализует queue.Handler.
func (h *WorkflowHandler) Handle(ctx context.Context, msg *mq.JobMessage) (*queue.Result, error) {
	job, err := mq.ParsePayload[domain.WorkflowUpdateJob](msg)
	if err != nil {
		return nil, fmt.Errorf("parse workflow payload: %w", err)
	}

	droplet, err := h.droplets.GetByWorkspace(ctx, job.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("resolve droplet: %w", err)
	}

	rec, err := h.versions.GetByWorkspace(ctx, job.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("load version record: %w", err)
	}
	rec.MarkUpdating()
	if err := h.versions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("mark updating: %w", err)
	}

	if err := h.agent.PushWorkflow(ctx, droplet.DropletID, job); err != nil {
		rec.MarkFailed()
		if upErr := h.versions.Upsert(ctx, rec); upErr != nil {
			h.logger.Error("failed to persist version record",
				"workspace_id", job.WorkspaceID, "error", upErr)
		}
		return nil, fmt.Errorf("push workflow %s: %w", job.WorkflowName, err)
	}

	rec.CommitWorkflowVersion(job.WorkflowName, job.Version)
	if err := h.versions.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("commit workflow version: %w", err)
	}

	h.logger.Info("workflow updated",
		"workspace_id", job.WorkspaceID,
		"workflow", job.WorkflowName,
		"version", job.Version,
	)
	return &queue.Result{Status: domain.JobStatusCompleted}, nil
}
