package domain

import (
	"time"

	"github.com/google/uuid"
)

// ManagedWorkflows — имена пяти управляемых workflow-определений,
// которые мы раскатываем на каждый tenant.
var ManagedWorkflows = []string{
	"lead-scraper",
	"email-sequencer",
	"reply-classifier",
	"deliverability-monitor",
	"campaign-reporter",
}

// TenantVersionRecord — версии компонентов одного tenant.
//
// Мутируется только воркерами sidecar/workflow очередей по завершении
// задачи. Rollout Engine эти записи никогда не пишет напрямую.
type TenantVersionRecord struct {
	// WorkspaceID — идентификатор tenant.
	WorkspaceID uuid.UUID `json:"workspace_id"`

	// DashboardVersion — версия dashboard-контрактов.
	DashboardVersion string `json:"dashboard_version"`

	// SidecarVersion — версия sidecar-процесса.
	SidecarVersion string `json:"sidecar_version"`

	// WorkflowVersions — версия каждого управляемого workflow
	// (имя → версия).
	WorkflowVersions map[string]string `json:"workflow_versions"`

	// UpdateStatus — статус последнего обновления.
	UpdateStatus UpdateStatus `json:"update_status"`

	// LastUpdateAt — время последнего успешного обновления.
	LastUpdateAt *time.Time `json:"last_update_at,omitempty"`
}

// VersionOf возвращает текущую версию компонента у tenant.
// Для ComponentWorkflow возвращает версию первого управляемого workflow
// (все workflow раскатываются одной версией).
func (t *TenantVersionRecord) VersionOf(component Component) string {
	switch component {
	case ComponentDashboard:
		return t.DashboardVersion
	case ComponentSidecar:
		return t.SidecarVersion
	case ComponentWorkflow:
		for _, name := range ManagedWorkflows {
			if v, ok := t.WorkflowVersions[name]; ok {
				return v
			}
		}
	}
	return ""
}

// MarkUpdating переводит запись в updating перед началом обновления.
func (t *TenantVersionRecord) MarkUpdating() {
	t.UpdateStatus = UpdateStatusUpdating
}

// CommitVersion фиксирует успешное обновление компонента.
func (t *TenantVersionRecord) CommitVersion(component Component, version string) {
	now := time.Now()
	switch component {
	case ComponentDashboard:
		t.DashboardVersion = version
	case ComponentSidecar:
		t.SidecarVersion = version
	case ComponentWorkflow:
		if t.WorkflowVersions == nil {
			t.WorkflowVersions = make(map[string]string, len(ManagedWorkflows))
		}
		for _, name := range ManagedWorkflows {
			t.WorkflowVersions[name] = version
		}
	}
	t.UpdateStatus = UpdateStatusCurrent
	t.LastUpdateAt = &now
}

// CommitWorkflowVersion фиксирует обновление одного workflow.
func (t *TenantVersionRecord) CommitWorkflowVersion(name, version string) {
	now := time.Now()
	if t.WorkflowVersions == nil {
		t.WorkflowVersions = make(map[string]string, len(ManagedWorkflows))
	}
	t.WorkflowVersions[name] = version
	t.UpdateStatus = UpdateStatusCurrent
	t.LastUpdateAt = &now
}

// MarkFailed отмечает упавшее обновление.
func (t *TenantVersionRecord) MarkFailed() {
	t.UpdateStatus = UpdateStatusFailed
}

// MarkRolledBack фиксирует откат компонента на прежнюю версию.
func (t *TenantVersionRecord) MarkRolledBack(component Component, version string) {
	now := time.Now()
	switch component {
	case ComponentDashboard:
		t.DashboardVersion = version
	case ComponentSidecar:
		t.SidecarVersion = version
	case ComponentWorkflow:
		if t.WorkflowVersions == nil {
			t.WorkflowVersions = make(map[string]string, len(ManagedWorkflows))
		}
		for _, name := range ManagedWorkflows {
			t.WorkflowVersions[name] = version
		}
	}
	t.UpdateStatus = UpdateStatusRolledBack
	t.LastUpdateAt = &now
}
