package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
)

// Result — исход обработки задачи.
type Result struct {
	// Status — терминальный статус: completed или rolled_back.
	// rolled_back ставит только sidecar-протокол после неудачного
	// post-swap health check.
	Status domain.JobStatus

	// Error — текст логической ошибки (для rolled_back — причина отката).
	Error string
}

// Handler — обработчик задач одной очереди.
//
// Инфраструктурные ошибки (сеть, rate limit провайдера) возвращаются
// через error и уходят в retry; логические исходы — через Result.
type Handler interface {
	// Queue возвращает имя очереди, которую обслуживает обработчик.
	Queue() domain.QueueName

	// Handle выполняет одну задачу.
	Handle(ctx context.Context, msg *mq.JobMessage) (*Result, error)
}

// Registry — реестр обработчиков по имени очереди.
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.QueueName]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.QueueName]Handler),
	}
}

// Register регистрирует обработчик.
// Если обработчик для очереди уже существует, он будет перезаписан.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Queue()] = h
}

// Get возвращает обработчик очереди.
// Возвращает ErrHandlerNotFound, если обработчик не зарегистрирован.
func (r *Registry) Get(queue domain.QueueName) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[queue]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, queue)
	}

	return h, nil
}

// Has проверяет, зарегистрирован ли обработчик.
func (r *Registry) Has(queue domain.QueueName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[queue]
	return exists
}
