// Package api содержит HTTP API control plane.
//
// Структура:
//   - handler.go          — Handler с DI (engine, rollback, репозитории, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - rollout_handler.go  — обработчики для /rollouts
//   - rollback_handler.go — обработчик emergency rollback
//   - job_handler.go      — постановка ad-hoc задач в очереди
//   - fleet_handler.go    — состояние флота и проверка совместимости
//
// API предоставляет REST endpoints для управления раскатками, откатами
// и задачами обновления флота.
package api
