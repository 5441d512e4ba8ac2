package rollout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
	"github.com/nishchith-m10/fleet-control-plane/internal/repo"
	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
)

// Pause приостанавливает раскатку по требованию оператора.
func (e *Engine) Pause(ctx context.Context, rolloutID uuid.UUID, reason string) (*domain.FleetRollout, error) {
	rollout, err := e.store.GetByID(ctx, rolloutID)
	if err != nil {
		return nil, err
	}
	if rollout.IsFinished() {
		return nil, ErrRolloutFinished
	}
	if rollout.Status == domain.RolloutStatusPaused {
		return rollout, nil
	}

	e.cancelRun(rolloutID)

	rollout.MarkPaused(reason)
	telemetry.RolloutWaveTransitions.WithLabelValues(string(rollout.Status)).Inc()
	if err := e.store.Update(ctx, rollout); err != nil {
		return nil, fmt.Errorf("persist pause: %w", err)
	}

	e.logger.Info("rollout paused", "rollout_id", rolloutID, "reason", reason)
	return rollout, nil
}

// Resume возобновляет приостановленную раскатку с её текущей волны.
//
// Лестница волн берётся с записи rollout: возобновление наблюдает те
// же пороги и окна, с которыми раскатка была инициирована. Tenants,
// получившие задачи до паузы, не передиспатчиваются; недиспатченный
// хвост волны (авто-пауза посреди диспатча) будет достален циклом.
func (e *Engine) Resume(ctx context.Context, rolloutID uuid.UUID) (*domain.FleetRollout, error) {
	rollout, err := e.store.GetByID(ctx, rolloutID)
	if err != nil {
		return nil, err
	}
	if rollout.IsFinished() {
		return nil, ErrRolloutFinished
	}
	if rollout.Status != domain.RolloutStatusPaused {
		return nil, ErrNotPaused
	}

	waves := rollout.Waves
	if len(waves) == 0 {
		waves = wavesForStrategy(rollout.Strategy)
	}
	startWave := waveIndex(waves, rollout.WaveOrdinal)

	fleet, err := e.eligibleFleetForResume(ctx, rollout)
	if err != nil {
		return nil, err
	}
	ordered := OrderTenants(rollout.ID, fleet)

	dispatched, err := e.dispatchedPrefix(ctx, rollout.ID, ordered)
	if err != nil {
		return nil, err
	}

	rollout.Resume()
	telemetry.RolloutWaveTransitions.WithLabelValues(string(rollout.Status)).Inc()
	if err := e.store.Update(ctx, rollout); err != nil {
		return nil, fmt.Errorf("persist resume: %w", err)
	}

	e.startRun(rollout, waves, ordered, startWave, dispatched)

	e.logger.Info("rollout resumed",
		"rollout_id", rolloutID,
		"wave", rollout.WaveOrdinal,
		"dispatched", dispatched,
	)
	return rollout, nil
}

// dispatchedPrefix считает, сколько tenants из начала ordered уже
// получили задачи раскатки.
//
// Диспатч идёт строго по ordered, поэтому покрытые tenants образуют
// префикс. Пересчёт с durable-зеркал, а не с процента волны: если
// авто-пауза случилась посреди диспатча, процент соврал бы и хвост
// волны остался бы без задач навсегда.
func (e *Engine) dispatchedPrefix(ctx context.Context, rolloutID uuid.UUID, ordered []uuid.UUID) (int, error) {
	jobs, err := e.jobs.ListByRollout(ctx, rolloutID)
	if err != nil {
		return 0, fmt.Errorf("list rollout jobs: %w", err)
	}

	covered := make(map[uuid.UUID]struct{}, len(jobs))
	for _, job := range jobs {
		covered[job.WorkspaceID] = struct{}{}
	}

	n := 0
	for _, id := range ordered {
		if _, ok := covered[id]; !ok {
			break
		}
		n++
	}
	return n, nil
}

// Abort прерывает раскатку и диспатчит откат для всех tenants, уже
// обновлённых в её рамках.
func (e *Engine) Abort(ctx context.Context, rolloutID uuid.UUID, reason string) (*domain.FleetRollout, error) {
	rollout, err := e.store.GetByID(ctx, rolloutID)
	if err != nil {
		return nil, err
	}
	if rollout.IsFinished() {
		return nil, ErrRolloutFinished
	}

	e.cancelRun(rolloutID)

	rollout.MarkAborted(reason)
	telemetry.RolloutWaveTransitions.WithLabelValues(string(rollout.Status)).Inc()
	if err := e.store.Update(ctx, rollout); err != nil {
		return nil, fmt.Errorf("persist abort: %w", err)
	}

	dispatched, err := e.dispatchAbortRollback(ctx, rollout)
	if err != nil {
		e.logger.Error("abort rollback dispatch incomplete",
			"rollout_id", rolloutID, "dispatched", dispatched, "error", err)
	}

	e.logger.Warn("rollout aborted",
		"rollout_id", rolloutID,
		"reason", reason,
		"rollback_jobs", dispatched,
	)
	return rollout, nil
}

// Preempt вытесняет текущий rollout компонента ради emergency rollback:
// бегущий или приостановленный rollout помечается rolled_back, его
// горутина останавливается. Отсутствие rollout'а — не ошибка.
func (e *Engine) Preempt(ctx context.Context, component domain.Component, reason string) error {
	rollout, err := e.store.GetCurrentForComponent(ctx, component)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find rollout to preempt: %w", err)
	}

	e.cancelRun(rollout.ID)

	rollout.MarkRolledBack(reason)
	telemetry.RolloutWaveTransitions.WithLabelValues(string(rollout.Status)).Inc()
	if err := e.store.Update(ctx, rollout); err != nil {
		return fmt.Errorf("persist preemption: %w", err)
	}

	e.logger.Warn("rollout preempted by emergency rollback",
		"rollout_id", rollout.ID,
		"component", component,
		"reason", reason,
	)
	return nil
}

// Get возвращает раскатку по идентификатору.
func (e *Engine) Get(ctx context.Context, rolloutID uuid.UUID) (*domain.FleetRollout, error) {
	return e.store.GetByID(ctx, rolloutID)
}

// dispatchAbortRollback ставит задачи возврата на from_version для
// tenants, обновлённых в рамках прерванной раскатки.
func (e *Engine) dispatchAbortRollback(ctx context.Context, rollout *domain.FleetRollout) (int, error) {
	if rollout.FromVersion == "" {
		return 0, fmt.Errorf("rollout has no from_version to roll back to")
	}

	targets, err := e.tenants.ListWorkspacesOnVersion(ctx, rollout.Component, rollout.ToVersion)
	if err != nil {
		return 0, fmt.Errorf("list updated tenants: %w", err)
	}

	dispatched := 0
	for _, workspaceID := range targets {
		if err := e.dispatchRollbackTenant(ctx, rollout, workspaceID); err != nil {
			return dispatched, fmt.Errorf("tenant %s: %w", workspaceID, err)
		}
		dispatched++
	}
	return dispatched, nil
}

func (e *Engine) dispatchRollbackTenant(ctx context.Context, rollout *domain.FleetRollout, workspaceID uuid.UUID) error {
	opts := queue.EnqueueOptions{
		RolloutID:  &rollout.ID,
		WaveNumber: rollout.WaveOrdinal,
		Priority:   mq.PriorityEmergency,
	}

	switch rollout.Component {
	case domain.ComponentSidecar:
		droplet, err := e.droplets.GetByWorkspace(ctx, workspaceID)
		if err != nil {
			return fmt.Errorf("resolve droplet: %w", err)
		}
		payload := domain.SidecarUpdateJob{
			WorkspaceID: workspaceID,
			DropletID:   droplet.DropletID,
			FromVersion: rollout.ToVersion,
			ToVersion:   rollout.FromVersion,
			RolloutID:   &rollout.ID,
			WaveNumber:  rollout.WaveOrdinal,
		}
		_, err = e.enqueuer.Enqueue(ctx, domain.QueueSidecarUpdate, workspaceID, payload, opts)
		return err

	case domain.ComponentWorkflow:
		for _, name := range domain.ManagedWorkflows {
			payload := domain.WorkflowUpdateJob{
				WorkspaceID:  workspaceID,
				WorkflowName: name,
				Version:      rollout.FromVersion,
				RolloutID:    &rollout.ID,
				WaveNumber:   rollout.WaveOrdinal,
			}
			if _, err := e.enqueuer.Enqueue(ctx, domain.QueueWorkflowUpdate, workspaceID, payload, opts); err != nil {
				return fmt.Errorf("workflow %s: %w", name, err)
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedComponent, rollout.Component)
	}
}

// eligibleFleetForResume восстанавливает флот раскатки при resume.
//
// Уже обновлённые tenants числятся на to_version, поэтому выборка идёт
// по обеим версиям. Детерминированный порядок OrderTenants сохраняет
// их в начале лестницы.
func (e *Engine) eligibleFleetForResume(ctx context.Context, rollout *domain.FleetRollout) ([]uuid.UUID, error) {
	if rollout.FromVersion == "" {
		ids, err := e.tenants.ListAllWorkspaces(ctx)
		if err != nil {
			return nil, fmt.Errorf("list workspaces: %w", err)
		}
		return ids, nil
	}

	remaining, err := e.tenants.ListWorkspacesOnVersion(ctx, rollout.Component, rollout.FromVersion)
	if err != nil {
		return nil, fmt.Errorf("list remaining tenants: %w", err)
	}
	updated, err := e.tenants.ListWorkspacesOnVersion(ctx, rollout.Component, rollout.ToVersion)
	if err != nil {
		return nil, fmt.Errorf("list updated tenants: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(remaining)+len(updated))
	fleet := make([]uuid.UUID, 0, len(remaining)+len(updated))
	for _, id := range append(updated, remaining...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fleet = append(fleet, id)
	}
	return fleet, nil
}

// waveIndex возвращает позицию волны с данным ordinal в лестнице.
func waveIndex(waves []domain.Wave, ordinal int) int {
	for i, w := range waves {
		if w.Ordinal >= ordinal {
			return i
		}
	}
	return len(waves) - 1
}
