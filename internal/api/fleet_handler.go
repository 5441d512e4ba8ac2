package api

import (
	"net/http"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// tenantView — состояние одного tenant: droplet плюс версии.
type tenantView struct {
	Health   *domain.DropletHealth       `json:"health"`
	Versions *domain.TenantVersionRecord `json:"versions,omitempty"`
}

// ListFleet обрабатывает GET /api/v1/fleet.
func (h *Handler) ListFleet(w http.ResponseWriter, r *http.Request) {
	fleet, err := h.healthRepo.ListNonHibernated(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	List(w, fleet, len(fleet))
}

// GetTenant обрабатывает GET /api/v1/fleet/{workspace_id}.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := pathUUID(w, r, "workspace_id")
	if !ok {
		return
	}

	healthRec, err := h.healthRepo.GetByWorkspace(r.Context(), workspaceID)
	if HandleRepoError(w, h.logger, err, "tenant not found") {
		return
	}

	view := tenantView{Health: healthRec}
	if versions, err := h.versionRepo.GetByWorkspace(r.Context(), workspaceID); err == nil {
		view.Versions = versions
	}
	Success(w, view)
}

// CheckCompatibility обрабатывает POST /api/v1/compat/check.
func (h *Handler) CheckCompatibility(w http.ResponseWriter, r *http.Request) {
	var triple domain.VersionTriple
	if !DecodeBody(w, r, &triple) {
		return
	}
	if triple.Dashboard == "" || triple.Sidecar == "" || triple.Workflow == "" {
		BadRequest(w, "dashboard, sidecar and workflow versions are required")
		return
	}

	result, err := h.registry.Check(triple)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	Success(w, result)
}
