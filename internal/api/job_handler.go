package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

// EnqueueWorkflowUpdate обрабатывает POST /api/v1/jobs/workflow-update.
func (h *Handler) EnqueueWorkflowUpdate(w http.ResponseWriter, r *http.Request) {
	var payload domain.WorkflowUpdateJob
	if !DecodeBody(w, r, &payload) {
		return
	}
	if payload.WorkspaceID == uuid.Nil || payload.WorkflowName == "" || payload.Version == "" {
		BadRequest(w, "workspace_id, workflow_name and version are required")
		return
	}
	h.enqueue(w, r, domain.QueueWorkflowUpdate, payload.WorkspaceID, payload, opts(payload.RolloutID, payload.WaveNumber, mq.PriorityRoutine))
}

// EnqueueSidecarUpdate обрабатывает POST /api/v1/jobs/sidecar-update.
func (h *Handler) EnqueueSidecarUpdate(w http.ResponseWriter, r *http.Request) {
	var payload domain.SidecarUpdateJob
	if !DecodeBody(w, r, &payload) {
		return
	}
	if payload.WorkspaceID == uuid.Nil || payload.DropletID == "" || payload.ToVersion == "" {
		BadRequest(w, "workspace_id, droplet_id and to_version are required")
		return
	}
	h.enqueue(w, r, domain.QueueSidecarUpdate, payload.WorkspaceID, payload, opts(payload.RolloutID, payload.WaveNumber, mq.PriorityRoutine))
}

// EnqueueWakeDroplet обрабатывает POST /api/v1/jobs/wake-droplet.
func (h *Handler) EnqueueWakeDroplet(w http.ResponseWriter, r *http.Request) {
	var payload domain.WakeDropletJob
	if !DecodeBody(w, r, &payload) {
		return
	}
	if payload.WorkspaceID == uuid.Nil || payload.DropletID == "" || payload.Reason == "" {
		BadRequest(w, "workspace_id, droplet_id and reason are required")
		return
	}
	h.enqueue(w, r, domain.QueueWakeDroplet, payload.WorkspaceID, payload, opts(nil, 0, mq.PriorityRoutine))
}

// EnqueueCredentialInject обрабатывает POST /api/v1/jobs/credential-inject.
func (h *Handler) EnqueueCredentialInject(w http.ResponseWriter, r *http.Request) {
	var payload domain.CredentialInjectJob
	if !DecodeBody(w, r, &payload) {
		return
	}
	if payload.WorkspaceID == uuid.Nil || payload.DropletID == "" || len(payload.Credentials) == 0 {
		BadRequest(w, "workspace_id, droplet_id and credentials are required")
		return
	}
	h.enqueue(w, r, domain.QueueCredentialInject, payload.WorkspaceID, payload, opts(nil, 0, mq.PriorityRoutine))
}

// EnqueueHardReboot обрабатывает POST /api/v1/jobs/hard-reboot.
func (h *Handler) EnqueueHardReboot(w http.ResponseWriter, r *http.Request) {
	var payload domain.HardRebootJob
	if !DecodeBody(w, r, &payload) {
		return
	}
	if payload.WorkspaceID == uuid.Nil || payload.DropletID == "" {
		BadRequest(w, "workspace_id and droplet_id are required")
		return
	}
	if payload.Reason == "" {
		payload.Reason = domain.RebootReasonAdminRequest
	}
	// Ручной reboot идёт с приоритетом watchdog: оператор жмёт кнопку
	// не от хорошей жизни.
	h.enqueue(w, r, domain.QueueHardReboot, payload.WorkspaceID, payload, opts(nil, 0, mq.PriorityWatchdog))
}

// GetJob обрабатывает GET /api/v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "job not found") {
		return
	}
	Success(w, job)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, queueName domain.QueueName, workspaceID uuid.UUID, payload any, o queue.EnqueueOptions) {
	job, err := h.enqueuer.Enqueue(r.Context(), queueName, workspaceID, payload, o)
	if err != nil {
		if errors.Is(err, queue.ErrQueueNotConfigured) {
			BadRequest(w, err.Error())
			return
		}
		if errors.Is(err, queue.ErrJobActive) {
			Conflict(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusAccepted, DataResponse{Data: job})
}

func opts(rolloutID *uuid.UUID, waveNumber int, priority uint8) queue.EnqueueOptions {
	return queue.EnqueueOptions{
		RolloutID:  rolloutID,
		WaveNumber: waveNumber,
		Priority:   priority,
	}
}
