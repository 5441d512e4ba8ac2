// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация задач и событий
//   - consumer.go   — потребление сообщений из очередей
//
// Exchanges:
//   - fleet.jobs      — задачи пяти очередей обновлений (direct, с приоритетами)
//   - fleet.heartbeat — per-tenant heartbeat каналы (topic, wildcard подписка)
//   - fleet.dlq       — dead letter queue
package mq
