package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/repo"
	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
)

// Worker — пул воркеров одной очереди.
//
// Одна consumer-горутина забирает сообщения с prefetch = concurrency
// и раздаёт их пулу из concurrency горутин. Каждая горутина выполняет
// задачу с retry и сама подтверждает своё сообщение.
type Worker struct {
	queue    domain.QueueName
	cfg      domain.QueueConfig
	registry *Registry
	jobRepo  *repo.JobRepo
	conn     *mq.Connection

	// Счётчики для health aggregator.
	// active не уходит в минус и декрементируется ровно один раз
	// на задачу независимо от исхода.
	countersMu sync.Mutex
	completed  int64
	failed     int64
	active     int64

	running bool

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// WorkerConfig — конфигурация Worker.
type WorkerConfig struct {
	Queue    domain.QueueName
	Registry *Registry
	JobRepo  *repo.JobRepo
	Conn     *mq.Connection
	Logger   *slog.Logger
}

// NewWorker создаёт пул воркеров очереди.
// Возвращает ErrQueueNotConfigured для очереди вне таблицы конфигураций.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	qcfg, err := domain.ConfigFor(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotConfigured, cfg.Queue)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		queue:    cfg.Queue,
		cfg:      qcfg,
		registry: cfg.Registry,
		jobRepo:  cfg.JobRepo,
		conn:     cfg.Conn,
		logger:   telemetry.WithQueue(logger, string(cfg.Queue)),
	}, nil
}

// Start запускает consumer и пул воркеров.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	if !w.registry.Has(w.queue) {
		cancel()
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, w.queue)
	}

	w.logger.Info("starting queue worker",
		"concurrency", w.cfg.Concurrency,
		"max_attempts", w.cfg.MaxAttempts,
	)

	deliveries := make(chan amqp.Delivery)

	// Пул воркеров
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-deliveries:
					if !ok {
						return
					}
					w.handleDelivery(ctx, raw)
				}
			}
		}()
	}

	// Consumer-горутина
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(deliveries)
		if err := w.consume(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("queue consumer error", "error", err)
		}
	}()

	w.countersMu.Lock()
	w.running = true
	w.countersMu.Unlock()

	w.logger.Info("queue worker started")
	return nil
}

// Stop останавливает пул. Активные задачи дорабатывают до конца
// в пределах таймаута вызывающей стороны.
func (w *Worker) Stop() {
	w.countersMu.Lock()
	w.running = false
	w.countersMu.Unlock()

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()

	w.logger.Info("queue worker stopped")
}

// consume — цикл получения сообщений и раздачи пулу.
func (w *Worker) consume(ctx context.Context, out chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := w.setupConsume()
		if err != nil {
			w.logger.Error("failed to setup consume", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.conn.ReconnectNotify():
				continue
			}
		}

		if err := w.forward(ctx, deliveries, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("deliveries channel closed, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// setupConsume настраивает prefetch и начинает потребление.
func (w *Worker) setupConsume() (<-chan amqp.Delivery, error) {
	ch := w.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	// prefetch = concurrency: в полёте не больше задач, чем воркеров
	if err := ch.Qos(w.cfg.Concurrency, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(w.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (мы ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// forward передаёт сообщения из AMQP-канала пулу.
func (w *Worker) forward(ctx context.Context, in <-chan amqp.Delivery, out chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-in:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- raw:
			}
		}
	}
}

// handleDelivery обрабатывает одно сообщение в горутине пула.
func (w *Worker) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	msg, err := mq.ParseJobMessage(raw.Body)
	if err != nil {
		w.logger.Error("failed to unmarshal job message",
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректное сообщение — отправляем в DLQ
		raw.Nack(false, false)
		return
	}

	w.incActive()
	defer w.decActive()

	start := time.Now()
	succeeded := w.processJob(ctx, msg)
	telemetry.JobDuration.WithLabelValues(string(w.queue)).Observe(time.Since(start).Seconds())

	if succeeded {
		telemetry.JobsProcessed.WithLabelValues(string(w.queue), "completed").Inc()
	} else {
		telemetry.JobsProcessed.WithLabelValues(string(w.queue), "failed").Inc()
	}

	// Задача достигла терминального статуса в durable-зеркале —
	// из очереди сообщение убираем в любом случае.
	raw.Ack(false)
}

// processJob выполняет задачу с retry. Возвращает true при успехе
// (completed или rolled_back — протокол отработал корректно).
func (w *Worker) processJob(ctx context.Context, msg *mq.JobMessage) bool {
	job, err := w.jobRepo.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			w.logger.Warn("job mirror not found, skipping", "job_id", msg.JobID)
			w.markFailed()
			return false
		}
		w.logger.Error("failed to load job", "job_id", msg.JobID, "error", err)
		w.markFailed()
		return false
	}

	if job.IsFinished() {
		// Дубликат после redelivery — задача уже доведена до конца.
		w.logger.Debug("job already terminal", "job_id", job.ID, "status", job.Status)
		return true
	}

	handler, err := w.registry.Get(w.queue)
	if err != nil {
		w.failJob(ctx, job, err.Error())
		return false
	}

	var result *Result
	var execErr error

	for {
		job.MarkProcessing()
		if err := w.jobRepo.Update(ctx, job); err != nil {
			w.logger.Error("failed to update job to processing", "job_id", job.ID, "error", err)
		}

		w.logger.Info("job started",
			"job_id", job.ID,
			"workspace_id", job.WorkspaceID,
			"attempt", job.Attempts,
		)

		result, execErr = handler.Handle(ctx, msg)
		if execErr == nil {
			break
		}

		// Инфраструктурная ошибка — retry с экспоненциальным backoff
		if !job.CanRetry() {
			break
		}

		delay := backoffDelay(w.cfg.BackoffBase, job.Attempts)
		w.logger.Debug("retrying job",
			"job_id", job.ID,
			"attempt", job.Attempts,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			execErr = ctx.Err()
			// Контекст отменён на shutdown: возвращаем задачу в queued,
			// следующий запуск подхватит её через redelivery.
			job.Requeue()
			if err := w.jobRepo.Update(ctx, job); err != nil {
				w.logger.Error("failed to requeue job", "job_id", job.ID, "error", err)
			}
			return false
		}
	}

	if execErr != nil {
		w.failJob(ctx, job, execErr.Error())
		return false
	}

	switch {
	case result != nil && result.Status == domain.JobStatusRolledBack:
		job.MarkRolledBack(result.Error)
	case result != nil && result.Error != "":
		job.MarkFailed(result.Error)
	default:
		job.MarkCompleted()
	}

	if err := w.jobRepo.Update(ctx, job); err != nil {
		w.logger.Error("failed to finalize job", "job_id", job.ID, "error", err)
	}

	if job.Status == domain.JobStatusFailed {
		w.markFailed()
		w.logger.Warn("job failed",
			"job_id", job.ID,
			"workspace_id", job.WorkspaceID,
			"attempt", job.Attempts,
			"error", job.Error,
		)
		return false
	}

	w.markCompleted()
	w.logger.Info("job finished",
		"job_id", job.ID,
		"workspace_id", job.WorkspaceID,
		"status", job.Status,
		"attempt", job.Attempts,
	)
	return true
}

// failJob финализирует задачу как failed.
func (w *Worker) failJob(ctx context.Context, job *domain.FleetUpdateJob, errMsg string) {
	job.MarkFailed(errMsg)
	if err := w.jobRepo.Update(ctx, job); err != nil {
		w.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	w.markFailed()
	w.logger.Warn("job failed",
		"job_id", job.ID,
		"workspace_id", job.WorkspaceID,
		"attempt", job.Attempts,
		"error", errMsg,
	)
}

// backoffDelay вычисляет задержку перед retry.
// delay = base * 2^(attempt-1)
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > 30*time.Second {
			return 30 * time.Second
		}
	}
	return delay
}

// --- Счётчики ---

func (w *Worker) incActive() {
	w.countersMu.Lock()
	w.active++
	w.countersMu.Unlock()
	telemetry.JobsActive.WithLabelValues(string(w.queue)).Inc()
}

func (w *Worker) decActive() {
	w.countersMu.Lock()
	// clamp: счётчик не уходит в минус даже при ошибке учёта
	if w.active > 0 {
		w.active--
	}
	w.countersMu.Unlock()
	telemetry.JobsActive.WithLabelValues(string(w.queue)).Dec()
}

func (w *Worker) markCompleted() {
	w.countersMu.Lock()
	w.completed++
	w.countersMu.Unlock()
}

func (w *Worker) markFailed() {
	w.countersMu.Lock()
	w.failed++
	w.countersMu.Unlock()
}

// Stats — снимок счётчиков воркера для health aggregator.
type Stats struct {
	Queue       domain.QueueName `json:"queue"`
	Running     bool             `json:"running"`
	Concurrency int              `json:"concurrency"`
	Completed   int64            `json:"completed_jobs"`
	Failed      int64            `json:"failed_jobs"`
	Active      int64            `json:"active_jobs"`
}

// Stats возвращает снимок счётчиков.
func (w *Worker) Stats() Stats {
	w.countersMu.Lock()
	defer w.countersMu.Unlock()
	return Stats{
		Queue:       w.queue,
		Running:     w.running,
		Concurrency: w.cfg.Concurrency,
		Completed:   w.completed,
		Failed:      w.failed,
		Active:      w.active,
	}
}
