// Package maintenance выполняет фоновые регламентные задачи control
// plane по cron-расписанию: усечение истории задач и прочую уборку.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nishchith-m10/fleet-control-plane/internal/health"
)

// cronParser — парсер cron-выражений (пять полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Task — одна регламентная задача.
type Task struct {
	// Name — имя в логах и health-отчёте.
	Name string

	// CronExpr — расписание запуска.
	CronExpr string

	// Run — тело задачи.
	Run func(ctx context.Context) error
}

// Runner ведёт набор задач, каждая бежит по своему расписанию.
//
// Ошибка задачи фиксируется и не роняет процесс: следующий запуск
// пойдёт по расписанию.
type Runner struct {
	tasks   []scheduledTask
	logger  *slog.Logger
	tracker *health.Tracker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type scheduledTask struct {
	task     Task
	schedule cron.Schedule
}

// NewRunner создаёт runner. Невалидное cron-выражение — ошибка
// конфигурации, фатальная на старте.
func NewRunner(tasks []Task, logger *slog.Logger) (*Runner, error) {
	scheduled := make([]scheduledTask, 0, len(tasks))
	minInterval := time.Duration(0)
	for _, t := range tasks {
		schedule, err := cronParser.Parse(t.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("task %s: invalid cron expression %q: %w", t.Name, t.CronExpr, err)
		}
		scheduled = append(scheduled, scheduledTask{task: t, schedule: schedule})

		now := time.Now()
		interval := schedule.Next(schedule.Next(now)).Sub(schedule.Next(now))
		if minInterval == 0 || interval < minInterval {
			minInterval = interval
		}
	}

	if minInterval <= 0 {
		minInterval = 24 * time.Hour
	}

	return &Runner{
		tasks:   scheduled,
		logger:  logger.With("component", "maintenance"),
		tracker: health.NewTracker(minInterval),
	}, nil
}

// Start запускает все задачи.
func (r *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.tracker.SetRunning(true)

	for _, st := range r.tasks {
		st := st
		r.wg.Add(1)
		go r.runTask(runCtx, st)
	}

	r.logger.Info("maintenance runner started", "tasks", len(r.tasks))
}

// Stop останавливает runner. Бегущая задача дорабатывает до отмены
// своего контекста.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.tracker.SetRunning(false)
	r.logger.Info("maintenance runner stopped")
}

// Name реализует health.Service.
func (r *Runner) Name() string { return "maintenance" }

// HealthStats реализует health.Service.
func (r *Runner) HealthStats() health.ServiceStats { return r.tracker.Stats() }

func (r *Runner) runTask(ctx context.Context, st scheduledTask) {
	defer r.wg.Done()

	for {
		next := st.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		start := time.Now()
		if err := st.task.Run(ctx); err != nil {
			r.tracker.RecordError(err)
			r.logger.Error("maintenance task failed", "task", st.task.Name, "error", err)
			continue
		}
		r.tracker.RecordRun()
		r.logger.Debug("maintenance task done", "task", st.task.Name, "elapsed", time.Since(start))
	}
}
