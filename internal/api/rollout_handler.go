package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/rollout"
)

// InitiateRollout обрабатывает POST /api/v1/rollouts.
func (h *Handler) InitiateRollout(w http.ResponseWriter, r *http.Request) {
	var req rollout.InitiateRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	if req.Component == "" || req.ToVersion == "" {
		BadRequest(w, "component and to_version are required")
		return
	}

	created, err := h.engine.Initiate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, rollout.ErrRolloutActive):
			Conflict(w, err.Error())
		case errors.Is(err, rollout.ErrVersionNotCovered),
			errors.Is(err, rollout.ErrUnsupportedComponent),
			errors.Is(err, rollout.ErrEmptyFleet):
			BadRequest(w, err.Error())
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	Created(w, created)
}

// ListRollouts обрабатывает GET /api/v1/rollouts.
func (h *Handler) ListRollouts(w http.ResponseWriter, r *http.Request) {
	rollouts, err := h.rolloutRepo.ListRecent(r.Context(), 50)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	List(w, rollouts, len(rollouts))
}

// GetRollout обрабатывает GET /api/v1/rollouts/{id}.
func (h *Handler) GetRollout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	record, err := h.engine.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "rollout not found") {
		return
	}
	Success(w, record)
}

// pauseAbortRequest — тело pause/abort запросов.
type pauseAbortRequest struct {
	Reason string `json:"reason"`
}

// PauseRollout обрабатывает POST /api/v1/rollouts/{id}/pause.
func (h *Handler) PauseRollout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req pauseAbortRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "operator pause"
	}

	record, err := h.engine.Pause(r.Context(), id, req.Reason)
	if err != nil {
		h.rolloutOpError(w, err)
		return
	}
	Success(w, record)
}

// ResumeRollout обрабатывает POST /api/v1/rollouts/{id}/resume.
func (h *Handler) ResumeRollout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	record, err := h.engine.Resume(r.Context(), id)
	if err != nil {
		h.rolloutOpError(w, err)
		return
	}
	Success(w, record)
}

// AbortRollout обрабатывает POST /api/v1/rollouts/{id}/abort.
func (h *Handler) AbortRollout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req pauseAbortRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	if req.Reason == "" {
		BadRequest(w, "abort reason is required")
		return
	}

	record, err := h.engine.Abort(r.Context(), id, req.Reason)
	if err != nil {
		h.rolloutOpError(w, err)
		return
	}
	Success(w, record)
}

func (h *Handler) rolloutOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rollout.ErrRolloutFinished), errors.Is(err, rollout.ErrNotPaused):
		InvalidState(w, err.Error())
	default:
		if HandleRepoError(w, h.logger, err, "rollout not found") {
			return
		}
	}
}

// pathUUID извлекает UUID из path-параметра.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		BadRequest(w, "invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
