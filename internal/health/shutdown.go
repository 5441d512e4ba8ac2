package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultShutdownTimeout — сколько ждём завершения активных задач,
// прежде чем закрыться принудительно.
const DefaultShutdownTimeout = 30 * time.Second

// Shutdown координирует graceful-остановку процесса.
//
// Сигналов может прийти несколько (повторный SIGTERM, параллельные
// вызовы из разных мест): последовательность остановки выполняет
// только первый, остальные ждут её завершения.
type Shutdown struct {
	timeout time.Duration
	logger  *slog.Logger

	once sync.Once
	done chan struct{}
}

// NewShutdown создаёт координатор остановки.
func NewShutdown(timeout time.Duration, logger *slog.Logger) *Shutdown {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &Shutdown{
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Trigger запускает последовательность остановки. Идемпотентен: fn
// выполняется один раз, с контекстом, ограниченным таймаутом
// остановки. Повторные вызовы блокируются до завершения первого.
func (s *Shutdown) Trigger(fn func(ctx context.Context)) {
	s.once.Do(func() {
		defer close(s.done)

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		s.logger.Info("shutdown started", "timeout", s.timeout)
		start := time.Now()
		fn(ctx)
		s.logger.Info("shutdown finished", "elapsed", time.Since(start))
	})
	<-s.done
}

// Done закрывается по завершении остановки.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}
