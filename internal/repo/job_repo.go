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

// JobRepo — репозиторий durable-зеркала задач очередей.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `
	id, queue, workspace_id, payload, attempts, status, rollout_id,
	wave_number, error, started_at, finished_at, created_at
`

// Create создаёт запись задачи.
func (r *JobRepo) Create(ctx context.Context, job *domain.FleetUpdateJob) error {
	query := `
		INSERT INTO fleet_update_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Queue,
		job.WorkspaceID,
		job.Payload,
		job.Attempts,
		job.Status,
		nullUUID(job.RolloutID),
		job.WaveNumber,
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает задачу по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FleetUpdateJob, error) {
	query := `SELECT ` + jobColumns + ` FROM fleet_update_jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// Update обновляет задачу.
func (r *JobRepo) Update(ctx context.Context, job *domain.FleetUpdateJob) error {
	query := `
		UPDATE fleet_update_jobs
		SET attempts = $2, status = $3, error = $4, started_at = $5, finished_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Attempts,
		job.Status,
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveForWorkspace возвращает число незавершённых задач очереди
// для tenant. Инвариант updating ⇒ ровно одна активная задача
// проверяется на этой выборке.
func (r *JobRepo) CountActiveForWorkspace(ctx context.Context, workspaceID uuid.UUID, queue domain.QueueName) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM fleet_update_jobs
		WHERE workspace_id = $1 AND queue = $2
		  AND status IN ('queued', 'processing')
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, workspaceID, queue).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// ListByRollout возвращает задачи одного rollout (для статистики волн).
func (r *JobRepo) ListByRollout(ctx context.Context, rolloutID uuid.UUID) ([]domain.FleetUpdateJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM fleet_update_jobs
		WHERE rollout_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, rolloutID)
	if err != nil {
		return nil, fmt.Errorf("list rollout jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.FleetUpdateJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// TrimTerminal удаляет старые терминальные задачи сверх лимитов хранения:
// завершённые сверх keepCompleted, упавшие/откатанные сверх keepFailed.
// Возвращает число удалённых строк.
func (r *JobRepo) TrimTerminal(ctx context.Context, queue domain.QueueName, keepCompleted, keepFailed int) (int64, error) {
	trim := func(statuses []string, keep int) (int64, error) {
		query := `
			DELETE FROM fleet_update_jobs
			WHERE id IN (
				SELECT id FROM fleet_update_jobs
				WHERE queue = $1 AND status = ANY($2)
				ORDER BY finished_at DESC
				OFFSET $3
			)
		`
		result, err := r.pool.Exec(ctx, query, queue, statuses, keep)
		if err != nil {
			return 0, fmt.Errorf("trim jobs: %w", err)
		}
		return result.RowsAffected(), nil
	}

	completed, err := trim([]string{string(domain.JobStatusCompleted)}, keepCompleted)
	if err != nil {
		return 0, err
	}
	failed, err := trim([]string{string(domain.JobStatusFailed), string(domain.JobStatusRolledBack)}, keepFailed)
	if err != nil {
		return completed, err
	}
	return completed + failed, nil
}

// scanJob сканирует одну строку в FleetUpdateJob.
func scanJob(scan func(dest ...any) error) (*domain.FleetUpdateJob, error) {
	var job domain.FleetUpdateJob
	var rolloutID *uuid.UUID
	var jobError *string

	err := scan(
		&job.ID,
		&job.Queue,
		&job.WorkspaceID,
		&job.Payload,
		&job.Attempts,
		&job.Status,
		&rolloutID,
		&job.WaveNumber,
		&jobError,
		&job.StartedAt,
		&job.FinishedAt,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.RolloutID = rolloutID
	if jobError != nil {
		job.Error = *jobError
	}
	return &job, nil
}
