package rollout

import "errors"

var (
	// ErrRolloutActive — у компонента уже есть активный rollout.
	ErrRolloutActive = errors.New("component already has an active rollout")

	// ErrVersionNotCovered — целевая версия не покрыта ни одним правилом
	// реестра совместимости.
	ErrVersionNotCovered = errors.New("target version not covered by compatibility registry")

	// ErrUnsupportedComponent — через очереди раскатываются только
	// sidecar и workflow.
	ErrUnsupportedComponent = errors.New("component has no dispatchable update queue")

	// ErrNotPaused — операция применима только к приостановленному rollout.
	ErrNotPaused = errors.New("rollout is not paused")

	// ErrRolloutFinished — rollout уже в терминальном статусе.
	ErrRolloutFinished = errors.New("rollout already finished")

	// ErrEmptyFleet — не найдено ни одного tenant для раскатки.
	ErrEmptyFleet = errors.New("no tenants eligible for rollout")
)
