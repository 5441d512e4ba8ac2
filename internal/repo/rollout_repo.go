package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// RolloutRepo — репозиторий для fleet rollouts.
type RolloutRepo struct {
	pool *pgxpool.Pool
}

// NewRolloutRepo создаёт новый RolloutRepo.
func NewRolloutRepo(pool *pgxpool.Pool) *RolloutRepo {
	return &RolloutRepo{pool: pool}
}

const rolloutColumns = `
	id, component, from_version, to_version, strategy, waves, status,
	wave_ordinal, total_tenants, updated_tenants, failed_tenants,
	error_threshold, canary_percentage, started_at, paused_at,
	completed_at, abort_reason, created_at
`

// Create создаёт новый rollout.
//
// Правило "не более одной активной раскатки на компонент" закрыто
// на уровне БД: вставка проверяет активную запись тем же statement, а
// частичный уникальный индекс fleet_rollouts_one_active_idx по
// (component) WHERE status NOT IN (терминальные, paused) ловит гонку
// двух конкурентных транзакций. Проигравшая получает ErrAlreadyExists.
func (r *RolloutRepo) Create(ctx context.Context, rollout *domain.FleetRollout) error {
	wavesJSON, err := json.Marshal(rollout.Waves)
	if err != nil {
		return fmt.Errorf("marshal waves: %w", err)
	}

	query := `
		INSERT INTO fleet_rollouts (` + rolloutColumns + `)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		WHERE NOT EXISTS (
			SELECT 1 FROM fleet_rollouts
			WHERE component = $2
			  AND status NOT IN ('completed', 'aborted', 'rolled_back', 'paused')
		)
	`
	result, err := r.pool.Exec(ctx, query,
		rollout.ID,
		rollout.Component,
		rollout.FromVersion,
		rollout.ToVersion,
		rollout.Strategy,
		wavesJSON,
		rollout.Status,
		rollout.WaveOrdinal,
		rollout.TotalTenants,
		rollout.UpdatedTenants,
		rollout.FailedTenants,
		rollout.ErrorThreshold,
		rollout.CanaryPercentage,
		rollout.StartedAt,
		rollout.PausedAt,
		rollout.CompletedAt,
		nullString(rollout.AbortReason),
		rollout.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("active rollout for %s: %w", rollout.Component, ErrAlreadyExists)
		}
		return fmt.Errorf("insert rollout: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("active rollout for %s: %w", rollout.Component, ErrAlreadyExists)
	}
	return nil
}

// GetByID возвращает rollout по ID.
func (r *RolloutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FleetRollout, error) {
	query := `SELECT ` + rolloutColumns + ` FROM fleet_rollouts WHERE id = $1`
	return scanRollout(r.pool.QueryRow(ctx, query, id))
}

// GetActiveForComponent возвращает активный (нетерминальный, не paused)
// rollout компонента. Используется инициацией: у компонента может быть
// не более одного активного rollout.
func (r *RolloutRepo) GetActiveForComponent(ctx context.Context, component domain.Component) (*domain.FleetRollout, error) {
	query := `
		SELECT ` + rolloutColumns + `
		FROM fleet_rollouts
		WHERE component = $1
		  AND status NOT IN ('completed', 'aborted', 'rolled_back', 'paused')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRollout(r.pool.QueryRow(ctx, query, component))
}

// GetCurrentForComponent возвращает последний нетерминальный rollout
// компонента, включая приостановленный. Используется emergency
// rollback: вытеснение распространяется и на paused раскатки.
func (r *RolloutRepo) GetCurrentForComponent(ctx context.Context, component domain.Component) (*domain.FleetRollout, error) {
	query := `
		SELECT ` + rolloutColumns + `
		FROM fleet_rollouts
		WHERE component = $1
		  AND status NOT IN ('completed', 'aborted', 'rolled_back')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRollout(r.pool.QueryRow(ctx, query, component))
}

// Update обновляет rollout.
func (r *RolloutRepo) Update(ctx context.Context, rollout *domain.FleetRollout) error {
	query := `
		UPDATE fleet_rollouts
		SET status = $2, wave_ordinal = $3, updated_tenants = $4,
		    failed_tenants = $5, error_threshold = $6, started_at = $7,
		    paused_at = $8, completed_at = $9, abort_reason = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		rollout.ID,
		rollout.Status,
		rollout.WaveOrdinal,
		rollout.UpdatedTenants,
		rollout.FailedTenants,
		rollout.ErrorThreshold,
		rollout.StartedAt,
		rollout.PausedAt,
		rollout.CompletedAt,
		nullString(rollout.AbortReason),
	)
	if err != nil {
		return fmt.Errorf("update rollout: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecent возвращает последние rollouts для API/CLI.
func (r *RolloutRepo) ListRecent(ctx context.Context, limit int) ([]domain.FleetRollout, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + rolloutColumns + `
		FROM fleet_rollouts
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list rollouts: %w", err)
	}
	defer rows.Close()

	var rollouts []domain.FleetRollout
	for rows.Next() {
		rollout, err := scanRolloutFromRows(rows)
		if err != nil {
			return nil, err
		}
		rollouts = append(rollouts, *rollout)
	}
	return rollouts, rows.Err()
}

// --- Helpers ---

func scanRollout(row pgx.Row) (*domain.FleetRollout, error) {
	rollout, err := scanRolloutRow(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rollout, err
}

func scanRolloutFromRows(rows pgx.Rows) (*domain.FleetRollout, error) {
	return scanRolloutRow(rows.Scan)
}

func scanRolloutRow(scan func(dest ...any) error) (*domain.FleetRollout, error) {
	var rollout domain.FleetRollout
	var abortReason *string
	var wavesJSON []byte

	err := scan(
		&rollout.ID,
		&rollout.Component,
		&rollout.FromVersion,
		&rollout.ToVersion,
		&rollout.Strategy,
		&wavesJSON,
		&rollout.Status,
		&rollout.WaveOrdinal,
		&rollout.TotalTenants,
		&rollout.UpdatedTenants,
		&rollout.FailedTenants,
		&rollout.ErrorThreshold,
		&rollout.CanaryPercentage,
		&rollout.StartedAt,
		&rollout.PausedAt,
		&rollout.CompletedAt,
		&abortReason,
		&rollout.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan rollout: %w", err)
	}

	if abortReason != nil {
		rollout.AbortReason = *abortReason
	}
	if len(wavesJSON) > 0 {
		if err := json.Unmarshal(wavesJSON, &rollout.Waves); err != nil {
			return nil, fmt.Errorf("unmarshal waves: %w", err)
		}
	}
	return &rollout, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
