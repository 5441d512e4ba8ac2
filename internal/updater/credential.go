package updater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

// CredentialHandler пушит зашифрованные credentials в tenant.
type CredentialHandler struct {
	agent  AgentAPI
	logger *slog.Logger
}

// NewCredentialHandler создаёт обработчик очереди credential-inject.
func NewCredentialHandler(agent AgentAPI, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{
		agent:  agent,
		logger: logger.With("handler", "credential_inject"),
	}
}

// Queue реализует queue.Handler.
func (h *CredentialHandler) Queue() domain.QueueName { return domain.QueueCredentialInject }

// Handle реализует queue.Handler.
func (h *CredentialHandler) Handle(ctx context.Context, msg *mq.JobMessage) (*queue.Result, error) {
	job, err := mq.ParsePayload[domain.CredentialInjectJob](msg)
	if err != nil {
		return nil, fmt.Errorf("parse credential payload: %w", err)
	}
	if len(job.Credentials) == 0 {
		return &queue.Result{Status: domain.JobStatusCompleted}, nil
	}

	if err := h.agent.InjectCredentials(ctx, job.DropletID, job.Credentials); err != nil {
		return nil, err
	}

	// В лог не попадает ничего, кроме количества: материал секретов
	// непрозрачен для control plane.
	h.logger.Info("credentials injected",
		"workspace_id", job.WorkspaceID,
		"droplet_id", job.DropletID,
		"count", len(job.Credentials),
	)
	return &queue.Result{Status: domain.JobStatusCompleted}, nil
}
