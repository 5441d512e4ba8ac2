package queue

import "errors"

var (
	// ErrHandlerNotFound — для очереди не зарегистрирован обработчик.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrQueueNotConfigured — очередь отсутствует в таблице конфигураций.
	// Ошибка конфигурации: отклоняется синхронно, до постановки задачи.
	ErrQueueNotConfigured = errors.New("queue not configured")

	// ErrJobNotFound — durable-зеркало задачи не найдено.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobActive — у workspace уже есть активная задача в
	// exclusive-очереди.
	ErrJobActive = errors.New("workspace already has an active job")
)
