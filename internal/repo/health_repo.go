package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// HealthRepo — репозиторий durable-состояния здоровья droplets.
type HealthRepo struct {
	pool *pgxpool.Pool
}

// NewHealthRepo создаёт новый HealthRepo.
func NewHealthRepo(pool *pgxpool.Pool) *HealthRepo {
	return &HealthRepo{pool: pool}
}

// UpsertHeartbeats применяет батч heartbeat'ов одной транзакцией.
// Droplet, получивший heartbeat, считается активным; degraded/healthy
// вычисляется по метрикам.
func (r *HealthRepo) UpsertHeartbeats(ctx context.Context, batch []domain.Heartbeat) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO droplet_health (workspace_id, droplet_id, state, last_heartbeat_at,
		                            cpu_percent, memory_percent, disk_percent, sidecar_healthy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workspace_id) DO UPDATE
		SET droplet_id = EXCLUDED.droplet_id,
		    state = EXCLUDED.state,
		    last_heartbeat_at = EXCLUDED.last_heartbeat_at,
		    cpu_percent = EXCLUDED.cpu_percent,
		    memory_percent = EXCLUDED.memory_percent,
		    disk_percent = EXCLUDED.disk_percent,
		    sidecar_healthy = EXCLUDED.sidecar_healthy
	`
	for _, hb := range batch {
		state := domain.DropletStateActiveHealthy
		if !hb.SidecarHealthy ||
			hb.CPUPercent > domain.CPUAlertThreshold ||
			hb.MemoryPercent > domain.MemoryAlertThreshold ||
			hb.DiskPercent > domain.DiskAlertThreshold {
			state = domain.DropletStateActiveDegraded
		}

		_, err := tx.Exec(ctx, query,
			hb.WorkspaceID,
			hb.DropletID,
			state,
			hb.Timestamp,
			hb.CPUPercent,
			hb.MemoryPercent,
			hb.DiskPercent,
			hb.SidecarHealthy,
		)
		if err != nil {
			return fmt.Errorf("upsert heartbeat for %s: %w", hb.WorkspaceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit heartbeat batch: %w", err)
	}
	return nil
}

// GetByWorkspace возвращает состояние droplet одного tenant.
func (r *HealthRepo) GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.DropletHealth, error) {
	query := `
		SELECT workspace_id, droplet_id, state, last_heartbeat_at,
		       cpu_percent, memory_percent, disk_percent, sidecar_healthy
		FROM droplet_health
		WHERE workspace_id = $1
	`
	rec, err := scanHealth(r.pool.QueryRow(ctx, query, workspaceID).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListNonHibernated возвращает все droplets, кроме спящих.
// Ровно то множество, которое watchdog оценивает за цикл.
func (r *HealthRepo) ListNonHibernated(ctx context.Context) ([]domain.DropletHealth, error) {
	query := `
		SELECT workspace_id, droplet_id, state, last_heartbeat_at,
		       cpu_percent, memory_percent, disk_percent, sidecar_healthy
		FROM droplet_health
		WHERE state != 'HIBERNATED'
		ORDER BY workspace_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list droplet health: %w", err)
	}
	defer rows.Close()

	var records []domain.DropletHealth
	for rows.Next() {
		rec, err := scanHealth(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// SetState переводит droplet в новое состояние.
// ZOMBIE сюда пишет только watchdog, PROVISIONING — wake-воркер.
func (r *HealthRepo) SetState(ctx context.Context, workspaceID uuid.UUID, state domain.DropletState) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE droplet_health SET state = $2 WHERE workspace_id = $1`,
		workspaceID, state,
	)
	if err != nil {
		return fmt.Errorf("set droplet state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FleetErrorRate возвращает процент нездоровых droplets среди заданных
// tenants: нездоров тот, кто деградировал, стал зомби или у кого sidecar
// отчитался больным. Источник метрики для health-gate волн rollout.
func (r *HealthRepo) FleetErrorRate(ctx context.Context, workspaceIDs []uuid.UUID) (float64, error) {
	if len(workspaceIDs) == 0 {
		return 0, nil
	}
	query := `
		SELECT COUNT(*) FILTER (WHERE state IN ('ACTIVE_DEGRADED', 'ZOMBIE') OR NOT sidecar_healthy),
		       COUNT(*)
		FROM droplet_health
		WHERE workspace_id = ANY($1)
	`
	var unhealthy, total int
	if err := r.pool.QueryRow(ctx, query, workspaceIDs).Scan(&unhealthy, &total); err != nil {
		return 0, fmt.Errorf("fleet error rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(unhealthy) / float64(total) * 100, nil
}

// scanHealth сканирует одну строку в DropletHealth.
func scanHealth(scan func(dest ...any) error) (*domain.DropletHealth, error) {
	var rec domain.DropletHealth

	err := scan(
		&rec.WorkspaceID,
		&rec.DropletID,
		&rec.State,
		&rec.LastHeartbeatAt,
		&rec.CPUPercent,
		&rec.MemoryPercent,
		&rec.DiskPercent,
		&rec.SidecarHealthy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan droplet health: %w", err)
	}
	return &rec, nil
}
