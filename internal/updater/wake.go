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

// StateStore — переводы droplet между состояниями.
type StateStore interface {
	SetState(ctx context.Context, workspaceID uuid.UUID, state domain.DropletState) error
}

// WakeHandler пробуждает hibernated droplet.
//
// После power-on droplet переводится в PROVISIONING: здоровым его
// признает только первый heartbeat.
type WakeHandler struct {
	provider InfraProvider
	states   StateStore
	logger   *slog.Logger
}

// NewWakeHandler создаёт обработчик очереди wake-droplet.
func NewWakeHandler(provider InfraProvider, states StateStore, logger *slog.Logger) *WakeHandler {
	return &WakeHandler{
		provider: provider,
		states:   states,
		logger:   logger.With("handler", "wake_droplet"),
	}
}

// Queue реализует queue.Handler.
func (h *WakeHandler) Queue() domain.QueueName { return domain.QueueWakeDroplet }

// Handle реализует queue.Handler.
func (h *WakeHandler) Handle(ctx context.Context, msg *mq.JobMessage) (*queue.Result, error) {
	job, err := mq.ParsePayload[domain.WakeDropletJob](msg)
	if err != nil {
		return nil, fmt.Errorf("parse wake payload: %w", err)
	}

	if err := h.provider.PowerOn(ctx, job.DropletID); err != nil {
		return nil, err
	}

	if err := h.states.SetState(ctx, job.WorkspaceID, domain.DropletStateProvisioning); err != nil {
		return nil, fmt.Errorf("set provisioning state: %w", err)
	}

	h.logger.Info("droplet woken",
		"workspace_id", job.WorkspaceID,
		"droplet_id", job.DropletID,
		"reason", job.Reason,
	)
	return &queue.Result{Status: domain.JobStatusCompleted}, nil
}
