package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// TenantVersionRepo — репозиторий версий компонентов tenants.
type TenantVersionRepo struct {
	pool *pgxpool.Pool
}

// NewTenantVersionRepo создаёт новый TenantVersionRepo.
func NewTenantVersionRepo(pool *pgxpool.Pool) *TenantVersionRepo {
	return &TenantVersionRepo{pool: pool}
}

// GetByWorkspace возвращает запись версий tenant.
func (r *TenantVersionRepo) GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.TenantVersionRecord, error) {
	query := `
		SELECT workspace_id, dashboard_version, sidecar_version,
		       workflow_versions, update_status, last_update_at
		FROM tenant_versions
		WHERE workspace_id = $1
	`
	return r.scanRecord(r.pool.QueryRow(ctx, query, workspaceID))
}

// Upsert создаёт или обновляет запись версий tenant.
func (r *TenantVersionRepo) Upsert(ctx context.Context, rec *domain.TenantVersionRecord) error {
	workflowsJSON, err := json.Marshal(rec.WorkflowVersions)
	if err != nil {
		return fmt.Errorf("marshal workflow versions: %w", err)
	}

	query := `
		INSERT INTO tenant_versions (workspace_id, dashboard_version, sidecar_version,
		                             workflow_versions, update_status, last_update_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id) DO UPDATE
		SET dashboard_version = EXCLUDED.dashboard_version,
		    sidecar_version = EXCLUDED.sidecar_version,
		    workflow_versions = EXCLUDED.workflow_versions,
		    update_status = EXCLUDED.update_status,
		    last_update_at = EXCLUDED.last_update_at
	`
	_, err = r.pool.Exec(ctx, query,
		rec.WorkspaceID,
		rec.DashboardVersion,
		rec.SidecarVersion,
		workflowsJSON,
		rec.UpdateStatus,
		rec.LastUpdateAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tenant versions: %w", err)
	}
	return nil
}

// ListWorkspacesOnVersion возвращает tenants, у которых компонент стоит
// на указанной версии. Источник списка целей для rollout и rollback.
func (r *TenantVersionRepo) ListWorkspacesOnVersion(ctx context.Context, component domain.Component, version string) ([]uuid.UUID, error) {
	column, err := componentColumn(component)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT workspace_id FROM tenant_versions WHERE %s = $1 ORDER BY workspace_id`, column)

	rows, err := r.pool.Query(ctx, query, version)
	if err != nil {
		return nil, fmt.Errorf("list workspaces on version: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAllWorkspaces возвращает все tenants флота в стабильном порядке.
func (r *TenantVersionRepo) ListAllWorkspaces(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT workspace_id FROM tenant_versions ORDER BY workspace_id`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// componentColumn возвращает имя колонки для компонента.
// ComponentWorkflow хранится в JSONB и отдельной колонки не имеет.
func componentColumn(component domain.Component) (string, error) {
	switch component {
	case domain.ComponentDashboard:
		return "dashboard_version", nil
	case domain.ComponentSidecar:
		return "sidecar_version", nil
	case domain.ComponentWorkflow:
		return "workflow_versions->>'" + domain.ManagedWorkflows[0] + "'", nil
	default:
		return "", fmt.Errorf("unknown component: %s", component)
	}
}

// scanRecord сканирует одну строку в TenantVersionRecord.
func (r *TenantVersionRepo) scanRecord(row pgx.Row) (*domain.TenantVersionRecord, error) {
	var rec domain.TenantVersionRecord
	var workflowsJSON []byte

	err := row.Scan(
		&rec.WorkspaceID,
		&rec.DashboardVersion,
		&rec.SidecarVersion,
		&workflowsJSON,
		&rec.UpdateStatus,
		&rec.LastUpdateAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant versions: %w", err)
	}

	if workflowsJSON != nil {
		if err := json.Unmarshal(workflowsJSON, &rec.WorkflowVersions); err != nil {
			return nil, fmt.Errorf("unmarshal workflow versions: %w", err)
		}
	}
	return &rec, nil
}
