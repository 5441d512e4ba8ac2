package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Rollouts
	mux.Handle("GET /api/v1/rollouts", chain(http.HandlerFunc(h.ListRollouts)))
	mux.Handle("POST /api/v1/rollouts", chain(http.HandlerFunc(h.InitiateRollout)))
	mux.Handle("GET /api/v1/rollouts/{id}", chain(http.HandlerFunc(h.GetRollout)))
	mux.Handle("POST /api/v1/rollouts/{id}/pause", chain(http.HandlerFunc(h.PauseRollout)))
	mux.Handle("POST /api/v1/rollouts/{id}/resume", chain(http.HandlerFunc(h.ResumeRollout)))
	mux.Handle("POST /api/v1/rollouts/{id}/abort", chain(http.HandlerFunc(h.AbortRollout)))

	// Emergency rollback
	mux.Handle("POST /api/v1/rollback", chain(http.HandlerFunc(h.EmergencyRollback)))

	// Ad-hoc jobs
	mux.Handle("POST /api/v1/jobs/workflow-update", chain(http.HandlerFunc(h.EnqueueWorkflowUpdate)))
	mux.Handle("POST /api/v1/jobs/sidecar-update", chain(http.HandlerFunc(h.EnqueueSidecarUpdate)))
	mux.Handle("POST /api/v1/jobs/wake-droplet", chain(http.HandlerFunc(h.EnqueueWakeDroplet)))
	mux.Handle("POST /api/v1/jobs/credential-inject", chain(http.HandlerFunc(h.EnqueueCredentialInject)))
	mux.Handle("POST /api/v1/jobs/hard-reboot", chain(http.HandlerFunc(h.EnqueueHardReboot)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))

	// Fleet
	mux.Handle("GET /api/v1/fleet", chain(http.HandlerFunc(h.ListFleet)))
	mux.Handle("GET /api/v1/fleet/{workspace_id}", chain(http.HandlerFunc(h.GetTenant)))

	// Version compatibility
	mux.Handle("POST /api/v1/compat/check", chain(http.HandlerFunc(h.CheckCompatibility)))
}
