package domain

// RuleStatus — классификация правила совместимости.
type RuleStatus string

const (
	// RuleStatusStable — проверенная комбинация, рекомендована для отката.
	RuleStatusStable RuleStatus = "stable"

	// RuleStatusCurrent — актуальная комбинация, цель текущих раскаток.
	RuleStatusCurrent RuleStatus = "current"

	// RuleStatusFuture — комбинация следующего релиза, ещё в раскатке.
	RuleStatusFuture RuleStatus = "future"
)

// CompatibilityRule — правило совместимости тройки версий.
//
// Диапазоны в синтаксисе semver-constraint (">=1.2.0 <2.0.0", "~1.4" и т.д.).
// Read-only в рантайме: инициация rollout консультируется с реестром,
// но никогда его не мутирует.
type CompatibilityRule struct {
	// Name — имя правила для логов и ответов API.
	Name string `json:"name"`

	// DashboardRange — диапазон версий dashboard.
	DashboardRange string `json:"dashboard_range"`

	// SidecarRange — диапазон версий sidecar.
	SidecarRange string `json:"sidecar_range"`

	// WorkflowRange — диапазон версий workflow-определений.
	WorkflowRange string `json:"workflow_range"`

	// Status — классификация правила.
	Status RuleStatus `json:"status"`
}

// VersionTriple — тройка версий для проверки совместимости.
type VersionTriple struct {
	Dashboard string `json:"dashboard_version"`
	Sidecar   string `json:"sidecar_version"`
	Workflow  string `json:"workflow_version"`
}
