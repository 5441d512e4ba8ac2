// Package watchdog следит за парком droplet'ов и выдаёт корректирующие
// действия: зомби-инстансы помечаются и перезагружаются, ресурсные
// превышения поднимают оповещения оператору.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/health"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
)

// DefaultPollInterval — периодичность обхода парка.
const DefaultPollInterval = 60 * time.Second

// FleetStore — достаточный для watchdog срез хранилища здоровья.
type FleetStore interface {
	ListNonHibernated(ctx context.Context) ([]domain.DropletHealth, error)
	SetState(ctx context.Context, workspaceID uuid.UUID, state domain.DropletState) error
}

// JobEnqueuer ставит задачи в очереди.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, queueName domain.QueueName, workspaceID uuid.UUID, payload any, opts queue.EnqueueOptions) (*domain.FleetUpdateJob, error)
}

// Config — настройки watchdog.
type Config struct {
	// PollInterval — интервал между циклами обхода.
	PollInterval time.Duration
}

// Watchdog периодически обходит durable-состояние парка и применяет
// решения Evaluate.
type Watchdog struct {
	store    FleetStore
	enqueuer JobEnqueuer
	cfg      Config
	logger   *slog.Logger
	tracker  *health.Tracker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создаёт watchdog. Нулевой интервал заменяется значением по
// умолчанию.
func New(store FleetStore, enqueuer JobEnqueuer, cfg Config, logger *slog.Logger) *Watchdog {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Watchdog{
		store:    store,
		enqueuer: enqueuer,
		cfg:      cfg,
		logger:   logger.With("component", "watchdog"),
		tracker:  health.NewTracker(cfg.PollInterval),
	}
}

// Start запускает цикл обхода.
func (w *Watchdog) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.tracker.SetRunning(true)

	w.wg.Add(1)
	go w.pollLoop(runCtx)

	w.logger.Info("watchdog started", "poll_interval", w.cfg.PollInterval)
}

// Stop останавливает watchdog и дожидается завершения текущего цикла.
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.tracker.SetRunning(false)
	w.logger.Info("watchdog stopped")
}

// Name реализует health.Service.
func (w *Watchdog) Name() string { return "watchdog" }

// HealthStats реализует health.Service.
func (w *Watchdog) HealthStats() health.ServiceStats { return w.tracker.Stats() }

func (w *Watchdog) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runCycle(ctx); err != nil {
				w.tracker.RecordError(err)
				w.logger.Error("watchdog cycle failed", "error", err)
				continue
			}
			w.tracker.RecordRun()
		}
	}
}

// runCycle обходит весь парк один раз. Ошибка диспатча по одному
// droplet не прерывает обход остальных.
func (w *Watchdog) runCycle(ctx context.Context) error {
	fleet, err := w.store.ListNonHibernated(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range fleet {
		h := &fleet[i]
		for _, action := range Evaluate(h, now) {
			w.dispatch(ctx, h, action)
		}
	}
	return nil
}

func (w *Watchdog) dispatch(ctx context.Context, h *domain.DropletHealth, action domain.WatchdogAction) {
	log := w.logger.With(
		"workspace_id", action.WorkspaceID,
		"droplet_id", action.DropletID,
		"action", action.Action,
		"reason", action.Reason,
	)

	switch action.Action {
	case domain.ActionMarkZombie:
		if h.State == domain.DropletStateZombie {
			// Уже помечен предыдущим циклом, перезапись не нужна.
			return
		}
		if err := w.store.SetState(ctx, action.WorkspaceID, domain.DropletStateZombie); err != nil {
			log.Error("failed to mark droplet zombie", "error", err)
			return
		}
		telemetry.WatchdogActions.WithLabelValues(string(action.Action)).Inc()
		log.Warn("droplet marked zombie")

	case domain.ActionReboot:
		if h.State == domain.DropletStateZombie {
			// Reboot-задача уже стоит в очереди с прошлого цикла.
			return
		}
		payload := domain.HardRebootJob{
			DropletID:   action.DropletID,
			WorkspaceID: action.WorkspaceID,
			Reason:      domain.RebootReasonHeartbeatTimeout,
		}
		_, err := w.enqueuer.Enqueue(ctx, domain.QueueHardReboot, action.WorkspaceID, payload, queue.EnqueueOptions{
			Priority: mq.PriorityWatchdog,
		})
		if err != nil {
			log.Error("failed to enqueue hard reboot", "error", err)
			return
		}
		telemetry.WatchdogActions.WithLabelValues(string(action.Action)).Inc()
		log.Warn("hard reboot enqueued")

	case domain.ActionAlert:
		// Канал оповещений — структурированный лог, его собирает
		// внешний алертинг.
		telemetry.WatchdogActions.WithLabelValues(string(action.Action)).Inc()
		log.Warn("resource alert")
	}
}
