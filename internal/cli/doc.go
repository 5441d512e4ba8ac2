// Package cli содержит команды CLI для управления control plane.
//
// Структура:
//   - client.go   — HTTP-клиент к API control plane
//   - output.go   — табличный/JSON вывод
//   - rollout.go  — команды управления раскатками
//   - rollback.go — команда emergency rollback
//   - fleet.go    — состояние флота и проверка совместимости
//   - job.go      — постановка ad-hoc задач
//
// CLI не импортирует internal/api: типы ответов дублируются локально,
// клиент привязан только к JSON-контракту.
package cli
