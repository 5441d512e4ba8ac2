// Package queue реализует слой очередей обновлений.
//
// Пять независимо сконфигурированных очередей (workflow-update,
// sidecar-update, wake-droplet, credential-inject, hard-reboot-droplet),
// у каждой свой пул воркеров и retry-политика из domain.QueueConfigs.
//
// Структура:
//   - worker.go   — пул воркеров одной очереди, счётчики, retry с backoff
//   - registry.go — реестр обработчиков по имени очереди
//   - enqueue.go  — создание durable-зеркала задачи + публикация в RabbitMQ
package queue
