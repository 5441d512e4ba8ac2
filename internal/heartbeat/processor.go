package heartbeat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/health"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
)

// DefaultFlushInterval — периодичность сброса буфера в БД.
const DefaultFlushInterval = 30 * time.Second

// HealthStore — персистентное хранилище показателей дроплетов.
type HealthStore interface {
	UpsertHeartbeats(ctx context.Context, beats []domain.Heartbeat) error
}

// Config — настройки процессора heartbeat'ов.
type Config struct {
	// FlushInterval — интервал между сбросами буфера.
	FlushInterval time.Duration
}

// Processor принимает heartbeat'ы из шины, буферизует последнее
// значение по каждому воркспейсу и периодически сбрасывает срез в БД.
//
// Буферизация схлопывает поток отчётов: сколько бы раз дроплет ни
// отчитался между сбросами, в БД уходит одна запись на воркспейс.
type Processor struct {
	buffer  *Buffer
	store   HealthStore
	conn    *mq.Connection
	cfg     Config
	logger  *slog.Logger
	tracker *health.Tracker

	consumer *mq.Consumer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewProcessor создаёт процессор. Нулевые поля конфигурации
// заменяются значениями по умолчанию.
func NewProcessor(conn *mq.Connection, store HealthStore, cfg Config, logger *slog.Logger) *Processor {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Processor{
		buffer:  NewBuffer(),
		store:   store,
		conn:    conn,
		cfg:     cfg,
		logger:  logger.With("component", "heartbeat_processor"),
		tracker: health.NewTracker(cfg.FlushInterval),
	}
}

// Start запускает потребление из очереди и цикл сброса.
func (p *Processor) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.consumer = mq.NewConsumer(p.conn, p.logger, mq.ConsumerConfig{
		Queue:    mq.QueueHeartbeatIngest,
		Handler:  p.handleDelivery,
		Prefetch: 100,
	})

	p.tracker.SetRunning(true)

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		if err := p.consumer.Start(runCtx); err != nil && runCtx.Err() == nil {
			p.logger.Error("heartbeat consumer stopped", "error", err)
		}
	}()
	go p.flushLoop(runCtx)

	p.logger.Info("heartbeat processor started",
		"flush_interval", p.cfg.FlushInterval)
	return nil
}

// Stop останавливает процессор и делает финальный сброс буфера,
// чтобы последние отчёты не потерялись при выключении.
func (p *Processor) Stop(ctx context.Context) {
	if p.cancel != nil {
		p.cancel()
	}
	if p.consumer != nil {
		p.consumer.Stop()
	}
	p.wg.Wait()
	p.tracker.SetRunning(false)

	p.flush(ctx)
	p.logger.Info("heartbeat processor stopped")
}

// Name реализует health.Service.
func (p *Processor) Name() string { return "heartbeat_processor" }

// HealthStats реализует health.Service.
func (p *Processor) HealthStats() health.ServiceStats { return p.tracker.Stats() }

// Buffered возвращает текущий размер буфера.
func (p *Processor) Buffered() int { return p.buffer.Len() }

func (p *Processor) handleDelivery(ctx context.Context, d *mq.Delivery) error {
	var beat domain.Heartbeat
	if err := json.Unmarshal(d.Body, &beat); err != nil {
		// Битый отчёт переотправкой не починится.
		p.logger.Error("malformed heartbeat discarded", "error", err)
		return nil
	}
	if beat.WorkspaceID == uuid.Nil {
		p.logger.Error("heartbeat without workspace_id discarded")
		return nil
	}
	if beat.Timestamp.IsZero() {
		beat.Timestamp = time.Now()
	}

	p.buffer.Put(beat)
	telemetry.HeartbeatsBuffered.Inc()
	return nil
}

func (p *Processor) flushLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// flush снимает срез буфера и пишет его в БД. При ошибке записи срез
// возвращается в буфер без перезаписи более свежих значений.
func (p *Processor) flush(ctx context.Context) {
	beats := p.buffer.Snapshot()
	if len(beats) == 0 {
		p.tracker.RecordRun()
		return
	}

	if err := p.store.UpsertHeartbeats(ctx, beats); err != nil {
		p.buffer.ReMerge(beats)
		p.tracker.RecordError(err)
		telemetry.HeartbeatFlushes.WithLabelValues("error").Inc()
		p.logger.Error("heartbeat flush failed, re-buffered",
			"count", len(beats), "error", err)
		return
	}

	p.tracker.RecordRun()
	telemetry.HeartbeatFlushes.WithLabelValues("success").Inc()
	p.logger.Debug("heartbeat flush", "count", len(beats))
}
