// Package rollout реализует фазовую раскатку версий по флоту: лестница
// процентных волн, каждая закрыта порогом ошибок и окном наблюдения.
package rollout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/compat"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
	"github.com/nishchith-m10/fleet-control-plane/internal/repo"
	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
)

// DefaultMonitorPollInterval — частота опроса error rate внутри окна
// наблюдения волны.
const DefaultMonitorPollInterval = 15 * time.Second

// RolloutStore — персистентность rollout-записей.
type RolloutStore interface {
	Create(ctx context.Context, rollout *domain.FleetRollout) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FleetRollout, error)
	GetActiveForComponent(ctx context.Context, component domain.Component) (*domain.FleetRollout, error)
	GetCurrentForComponent(ctx context.Context, component domain.Component) (*domain.FleetRollout, error)
	Update(ctx context.Context, rollout *domain.FleetRollout) error
}

// TenantSource — список tenants, подлежащих раскатке.
type TenantSource interface {
	ListWorkspacesOnVersion(ctx context.Context, component domain.Component, version string) ([]uuid.UUID, error)
	ListAllWorkspaces(ctx context.Context) ([]uuid.UUID, error)
}

// DropletSource — поиск droplet по workspace для sidecar-задач.
type DropletSource interface {
	GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.DropletHealth, error)
}

// ErrorRateSource — наблюдаемый процент ошибок по подмножеству флота.
type ErrorRateSource interface {
	FleetErrorRate(ctx context.Context, workspaceIDs []uuid.UUID) (float64, error)
}

// JobEnqueuer ставит per-tenant задачи обновления.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, queueName domain.QueueName, workspaceID uuid.UUID, payload any, opts queue.EnqueueOptions) (*domain.FleetUpdateJob, error)
}

// JobSource — задачи, порождённые раскаткой. Счётчики updated/failed
// агрегируются из durable-зеркал задач, воркеры rollout-запись не
// трогают.
type JobSource interface {
	ListByRollout(ctx context.Context, rolloutID uuid.UUID) ([]domain.FleetUpdateJob, error)
}

// Config — настройки движка раскаток.
type Config struct {
	// MonitorPollInterval — частота опроса error rate в окне наблюдения.
	MonitorPollInterval time.Duration
}

// Engine — движок фазовых раскаток.
//
// На компонент допускается не более одной активной раскатки, но
// раскатки разных компонентов идут параллельно: каждая в своей
// горутине, окно наблюдения одной не блокирует другие.
type Engine struct {
	store    RolloutStore
	tenants  TenantSource
	droplets DropletSource
	errRate  ErrorRateSource
	registry *compat.Registry
	enqueuer JobEnqueuer
	jobs     JobSource
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// New создаёт движок. Нулевые поля конфигурации получают значения по
// умолчанию.
func New(store RolloutStore, tenants TenantSource, droplets DropletSource, errRate ErrorRateSource, registry *compat.Registry, enqueuer JobEnqueuer, jobs JobSource, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MonitorPollInterval <= 0 {
		cfg.MonitorPollInterval = DefaultMonitorPollInterval
	}
	return &Engine{
		store:    store,
		tenants:  tenants,
		droplets: droplets,
		errRate:  errRate,
		registry: registry,
		enqueuer: enqueuer,
		jobs:     jobs,
		cfg:      cfg,
		logger:   logger.With("component", "rollout_engine"),
	}
}

// InitiateRequest — параметры новой раскатки.
type InitiateRequest struct {
	// Component — что раскатываем (sidecar или workflow).
	Component domain.Component `json:"component"`

	// FromVersion — версия, с которой обновляемся. Пустая строка —
	// раскатка на весь флот вне зависимости от текущей версии.
	FromVersion string `json:"from_version"`

	// ToVersion — целевая версия.
	ToVersion string `json:"to_version"`

	// Strategy — стратегия (canary по умолчанию).
	Strategy domain.RolloutStrategy `json:"strategy"`

	// Waves — явная лестница волн. Nil — лестница по стратегии.
	Waves []domain.Wave `json:"waves,omitempty"`
}

// Initiate создаёт rollout и запускает его цикл волн.
//
// Ошибки конфигурации (непокрытая версия, неподдерживаемый компонент,
// кривая лестница волн, уже активная раскатка) возвращаются синхронно,
// до постановки первой задачи.
func (e *Engine) Initiate(ctx context.Context, req InitiateRequest) (*domain.FleetRollout, error) {
	if req.Component != domain.ComponentSidecar && req.Component != domain.ComponentWorkflow {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedComponent, req.Component)
	}

	covered, err := e.registry.CoversVersion(req.Component, req.ToVersion)
	if err != nil {
		return nil, fmt.Errorf("check version coverage: %w", err)
	}
	if !covered {
		return nil, fmt.Errorf("%w: %s %s", ErrVersionNotCovered, req.Component, req.ToVersion)
	}

	waves := req.Waves
	if waves == nil {
		waves = wavesForStrategy(req.Strategy)
	}
	if err := ValidateWaves(waves); err != nil {
		return nil, fmt.Errorf("wave configuration: %w", err)
	}

	if _, err := e.store.GetActiveForComponent(ctx, req.Component); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRolloutActive, req.Component)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("check active rollout: %w", err)
	}

	fleet, err := e.eligibleTenants(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(fleet) == 0 {
		return nil, ErrEmptyFleet
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = domain.StrategyCanary
	}

	rollout := &domain.FleetRollout{
		ID:               uuid.New(),
		Component:        req.Component,
		FromVersion:      req.FromVersion,
		ToVersion:        req.ToVersion,
		Strategy:         strategy,
		Waves:            waves,
		Status:           domain.RolloutStatusPending,
		TotalTenants:     len(fleet),
		ErrorThreshold:   waves[0].ErrorThresholdPercent,
		CanaryPercentage: waves[0].Percentage,
		CreatedAt:        time.Now(),
	}
	if err := e.store.Create(ctx, rollout); err != nil {
		// Конкурентная инициация могла проскочить проверку выше;
		// хранилище разрешает гонку атомарно.
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrRolloutActive, req.Component)
		}
		return nil, fmt.Errorf("create rollout: %w", err)
	}

	ordered := OrderTenants(rollout.ID, fleet)
	e.startRun(rollout, waves, ordered, 0, 0)

	e.logger.Info("rollout initiated",
		"rollout_id", rollout.ID,
		"component", rollout.Component,
		"to_version", rollout.ToVersion,
		"strategy", rollout.Strategy,
		"total_tenants", rollout.TotalTenants,
	)
	return rollout, nil
}

// eligibleTenants выбирает флот раскатки.
func (e *Engine) eligibleTenants(ctx context.Context, req InitiateRequest) ([]uuid.UUID, error) {
	if req.FromVersion == "" {
		ids, err := e.tenants.ListAllWorkspaces(ctx)
		if err != nil {
			return nil, fmt.Errorf("list workspaces: %w", err)
		}
		return ids, nil
	}
	ids, err := e.tenants.ListWorkspacesOnVersion(ctx, req.Component, req.FromVersion)
	if err != nil {
		return nil, fmt.Errorf("list workspaces on version: %w", err)
	}
	return ids, nil
}

func wavesForStrategy(strategy domain.RolloutStrategy) []domain.Wave {
	switch strategy {
	case domain.StrategyImmediate:
		return ImmediateWave()
	case domain.StrategyStaged:
		return StagedWaves()
	default:
		return DefaultWaves()
	}
}

// startRun запускает горутину цикла волн и регистрирует её cancel.
func (e *Engine) startRun(rollout *domain.FleetRollout, waves []domain.Wave, ordered []uuid.UUID, startWave, dispatched int) {
	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if e.running == nil {
		e.running = make(map[uuid.UUID]context.CancelFunc)
	}
	e.running[rollout.ID] = cancel
	e.mu.Unlock()

	telemetry.RolloutsActive.Inc()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer telemetry.RolloutsActive.Dec()
		defer func() {
			e.mu.Lock()
			delete(e.running, rollout.ID)
			e.mu.Unlock()
		}()
		e.run(runCtx, rollout, waves, ordered, startWave, dispatched)
	}()
}

// run — цикл волн одной раскатки: диспатч дельты, окно наблюдения,
// продвижение либо авто-пауза.
//
// dispatched — сколько tenants из ordered уже получили задачи (resume
// возобновляет наблюдение волны без передиспатча её дельты).
func (e *Engine) run(ctx context.Context, rollout *domain.FleetRollout, waves []domain.Wave, ordered []uuid.UUID, startWave, dispatched int) {
	log := e.logger.With("rollout_id", rollout.ID, "component", rollout.Component)

	if rollout.Status == domain.RolloutStatusPending {
		rollout.MarkStarted()
		if first := waves[0]; first.Ordinal > 0 {
			rollout.AdvanceWave(first)
		}
		if err := e.store.Update(ctx, rollout); err != nil {
			log.Error("failed to persist rollout start", "error", err)
			return
		}
	}

	for i := startWave; i < len(waves); i++ {
		wave := waves[i]
		if i > startWave || rollout.WaveOrdinal < wave.Ordinal {
			rollout.AdvanceWave(wave)
			if err := e.store.Update(ctx, rollout); err != nil {
				log.Error("failed to persist wave transition", "error", err)
				return
			}
		}
		telemetry.RolloutWaveTransitions.WithLabelValues(string(rollout.Status)).Inc()

		target := TargetCount(rollout.TotalTenants, wave.Percentage)
		delta := ordered[dispatched:target]
		log.Info("dispatching wave",
			"wave", wave.Ordinal,
			"percentage", wave.Percentage,
			"delta", len(delta),
			"cumulative", target,
		)

		if err := e.dispatchWave(ctx, rollout, wave, delta); err != nil {
			log.Error("wave dispatch failed, pausing rollout", "error", err)
			e.pauseRollout(rollout, fmt.Sprintf("wave %d dispatch failed: %v", wave.Ordinal, err))
			return
		}
		dispatched = target

		ok, err := e.monitorWave(ctx, rollout, wave, ordered[:dispatched])
		if err != nil {
			if ctx.Err() != nil {
				// Остановка по pause/abort/shutdown: статус выставляет
				// инициатор остановки.
				return
			}
			log.Error("wave monitoring failed, pausing rollout", "wave", wave.Ordinal, "error", err)
			e.pauseRollout(rollout, fmt.Sprintf("wave %d monitoring failed: %v", wave.Ordinal, err))
			return
		}
		if !ok {
			log.Warn("error threshold exceeded, auto-pausing",
				"wave", wave.Ordinal,
				"threshold", wave.ErrorThresholdPercent,
			)
			e.pauseRollout(rollout, fmt.Sprintf("wave %d error threshold %.1f%% exceeded", wave.Ordinal, wave.ErrorThresholdPercent))
			return
		}
	}

	e.refreshTenantCounts(ctx, rollout)
	rollout.MarkCompleted()
	telemetry.RolloutWaveTransitions.WithLabelValues(string(rollout.Status)).Inc()
	if err := e.store.Update(context.Background(), rollout); err != nil {
		log.Error("failed to persist rollout completion", "error", err)
		return
	}
	log.Info("rollout completed", "updated_tenants", rollout.UpdatedTenants, "failed_tenants", rollout.FailedTenants)
}

// dispatchWave ставит задачи обновления для дельты волны.
func (e *Engine) dispatchWave(ctx context.Context, rollout *domain.FleetRollout, wave domain.Wave, delta []uuid.UUID) error {
	for _, workspaceID := range delta {
		if err := e.dispatchTenant(ctx, rollout, wave, workspaceID); err != nil {
			return fmt.Errorf("tenant %s: %w", workspaceID, err)
		}
	}
	return nil
}

func (e *Engine) dispatchTenant(ctx context.Context, rollout *domain.FleetRollout, wave domain.Wave, workspaceID uuid.UUID) error {
	opts := queue.EnqueueOptions{
		RolloutID:  &rollout.ID,
		WaveNumber: wave.Ordinal,
		Priority:   mq.PriorityRoutine,
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
			FromVersion: rollout.FromVersion,
			ToVersion:   rollout.ToVersion,
			RolloutID:   &rollout.ID,
			WaveNumber:  wave.Ordinal,
		}
		_, err = e.enqueuer.Enqueue(ctx, domain.QueueSidecarUpdate, workspaceID, payload, opts)
		return err

	case domain.ComponentWorkflow:
		for _, name := range domain.ManagedWorkflows {
			payload := domain.WorkflowUpdateJob{
				WorkspaceID:  workspaceID,
				WorkflowName: name,
				Version:      rollout.ToVersion,
				RolloutID:    &rollout.ID,
				WaveNumber:   wave.Ordinal,
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

// monitorWave наблюдает error rate подмножества флота в течение окна
// волны. Возвращает false при превышении порога в любой момент окна.
func (e *Engine) monitorWave(ctx context.Context, rollout *domain.FleetRollout, wave domain.Wave, scope []uuid.UUID) (bool, error) {
	if wave.MonitorDuration <= 0 {
		return true, nil
	}

	deadline := time.Now().Add(wave.MonitorDuration)
	ticker := time.NewTicker(e.cfg.MonitorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			rate, err := e.errRate.FleetErrorRate(ctx, scope)
			if err != nil {
				return false, fmt.Errorf("observe error rate: %w", err)
			}
			e.refreshTenantCounts(ctx, rollout)
			if rate > wave.ErrorThresholdPercent {
				return false, nil
			}
			if !time.Now().Before(deadline) {
				return true, nil
			}
		}
	}
}

// refreshTenantCounts агрегирует updated/failed из durable-зеркал
// задач раскатки. Счётчики пишет только этот цикл, воркеры rollout
// не мутируют. Ошибка агрегации не прерывает окно наблюдения.
func (e *Engine) refreshTenantCounts(ctx context.Context, rollout *domain.FleetRollout) {
	jobs, err := e.jobs.ListByRollout(ctx, rollout.ID)
	if err != nil {
		e.logger.Error("failed to aggregate rollout jobs", "rollout_id", rollout.ID, "error", err)
		return
	}

	updatedSet := make(map[uuid.UUID]struct{})
	failedSet := make(map[uuid.UUID]struct{})
	for _, job := range jobs {
		switch job.Status {
		case domain.JobStatusCompleted:
			updatedSet[job.WorkspaceID] = struct{}{}
		case domain.JobStatusFailed, domain.JobStatusRolledBack:
			failedSet[job.WorkspaceID] = struct{}{}
		}
	}
	// Tenant с хотя бы одной упавшей задачей считается failed, даже
	// если остальные его задачи прошли.
	for id := range failedSet {
		delete(updatedSet, id)
	}

	updated, failed := len(updatedSet), len(failedSet)
	if updated+failed > rollout.TotalTenants {
		failed = rollout.TotalTenants - updated
	}
	if updated == rollout.UpdatedTenants && failed == rollout.FailedTenants {
		return
	}

	rollout.UpdatedTenants = updated
	rollout.FailedTenants = failed
	if err := e.store.Update(ctx, rollout); err != nil {
		e.logger.Error("failed to persist tenant counts", "rollout_id", rollout.ID, "error", err)
	}
}

// pauseRollout — авто-пауза после нарушения health-gate или сбоя
// диспатча. Пишется с фоновым контекстом: rollout-контекст к этому
// моменту может быть уже отменён.
func (e *Engine) pauseRollout(rollout *domain.FleetRollout, reason string) {
	rollout.MarkPaused(reason)
	telemetry.RolloutWaveTransitions.WithLabelValues(string(rollout.Status)).Inc()
	if err := e.store.Update(context.Background(), rollout); err != nil {
		e.logger.Error("failed to persist rollout pause", "rollout_id", rollout.ID, "error", err)
	}
}

// cancelRun останавливает горутину раскатки, если она бежит.
func (e *Engine) cancelRun(rolloutID uuid.UUID) {
	e.mu.Lock()
	cancel, ok := e.running[rolloutID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop отменяет все бегущие раскатки и дожидается их горутин.
// Приостановленные записи остаются в БД и возобновляются оператором
// после рестарта.
func (e *Engine) Stop() {
	e.mu.Lock()
	for _, cancel := range e.running {
		cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
}
