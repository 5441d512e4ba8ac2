// Package compat реализует реестр совместимости версий.
//
// Реестр — read-only матрица правил: каждая строка задаёт диапазоны
// версий dashboard/sidecar/workflow, которые совместимы между собой.
// Инициация rollout консультируется с реестром до постановки задач:
// целевая версия вне всех правил отклоняется синхронно.
package compat

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// CheckResult — результат проверки тройки версий.
type CheckResult struct {
	// Compatible — найдено правило, покрывающее все три версии.
	Compatible bool `json:"compatible"`

	// Status — классификация сработавшего правила.
	Status domain.RuleStatus `json:"status,omitempty"`

	// MatchingRule — само правило (nil при Compatible=false).
	MatchingRule *domain.CompatibilityRule `json:"matching_rule,omitempty"`
}

// Registry — реестр правил совместимости с предразобранными диапазонами.
type Registry struct {
	rules []compiledRule
}

// compiledRule — правило с разобранными semver-constraint'ами.
type compiledRule struct {
	rule      domain.CompatibilityRule
	dashboard *semver.Constraints
	sidecar   *semver.Constraints
	workflow  *semver.Constraints
}

// NewRegistry создаёт реестр из набора правил.
//
// Реестр обязан классифицировать минимум по одному правилу каждого
// статуса (stable, current, future) — иначе это ошибка конфигурации,
// фатальная на старте.
func NewRegistry(rules []domain.CompatibilityRule) (*Registry, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("compatibility registry requires at least one rule")
	}

	seen := make(map[domain.RuleStatus]bool, 3)
	compiled := make([]compiledRule, 0, len(rules))

	for _, rule := range rules {
		cr, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		compiled = append(compiled, cr)
		seen[rule.Status] = true
	}

	for _, status := range []domain.RuleStatus{domain.RuleStatusStable, domain.RuleStatusCurrent, domain.RuleStatusFuture} {
		if !seen[status] {
			return nil, fmt.Errorf("compatibility registry has no %q rule", status)
		}
	}

	return &Registry{rules: compiled}, nil
}

// compileRule разбирает диапазоны правила.
func compileRule(rule domain.CompatibilityRule) (compiledRule, error) {
	dashboard, err := semver.NewConstraint(rule.DashboardRange)
	if err != nil {
		return compiledRule{}, fmt.Errorf("parse dashboard range %q: %w", rule.DashboardRange, err)
	}
	sidecar, err := semver.NewConstraint(rule.SidecarRange)
	if err != nil {
		return compiledRule{}, fmt.Errorf("parse sidecar range %q: %w", rule.SidecarRange, err)
	}
	workflow, err := semver.NewConstraint(rule.WorkflowRange)
	if err != nil {
		return compiledRule{}, fmt.Errorf("parse workflow range %q: %w", rule.WorkflowRange, err)
	}
	return compiledRule{
		rule:      rule,
		dashboard: dashboard,
		sidecar:   sidecar,
		workflow:  workflow,
	}, nil
}

// Check ищет правило, покрывающее тройку версий.
// Нет подходящего правила ⇒ Compatible=false, без ошибки.
func (r *Registry) Check(triple domain.VersionTriple) (CheckResult, error) {
	dashboard, err := semver.NewVersion(triple.Dashboard)
	if err != nil {
		return CheckResult{}, fmt.Errorf("parse dashboard version %q: %w", triple.Dashboard, err)
	}
	sidecar, err := semver.NewVersion(triple.Sidecar)
	if err != nil {
		return CheckResult{}, fmt.Errorf("parse sidecar version %q: %w", triple.Sidecar, err)
	}
	workflow, err := semver.NewVersion(triple.Workflow)
	if err != nil {
		return CheckResult{}, fmt.Errorf("parse workflow version %q: %w", triple.Workflow, err)
	}

	for i := range r.rules {
		cr := &r.rules[i]
		if cr.dashboard.Check(dashboard) && cr.sidecar.Check(sidecar) && cr.workflow.Check(workflow) {
			rule := cr.rule
			return CheckResult{
				Compatible:   true,
				Status:       rule.Status,
				MatchingRule: &rule,
			}, nil
		}
	}

	return CheckResult{Compatible: false}, nil
}

// CoversVersion проверяет, покрыта ли версия компонента хоть одним
// правилом. Инициация rollout отклоняет to_version вне всех правил.
func (r *Registry) CoversVersion(component domain.Component, version string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", version, err)
	}

	for i := range r.rules {
		cr := &r.rules[i]
		var c *semver.Constraints
		switch component {
		case domain.ComponentDashboard:
			c = cr.dashboard
		case domain.ComponentSidecar:
			c = cr.sidecar
		case domain.ComponentWorkflow:
			c = cr.workflow
		default:
			return false, fmt.Errorf("unknown component: %s", component)
		}
		if c.Check(v) {
			return true, nil
		}
	}
	return false, nil
}

// StableVersion возвращает правило со статусом stable — известную
// хорошую комбинацию для emergency rollback.
func (r *Registry) StableVersion() *domain.CompatibilityRule {
	for i := range r.rules {
		if r.rules[i].rule.Status == domain.RuleStatusStable {
			rule := r.rules[i].rule
			return &rule
		}
	}
	return nil
}

// DefaultRules — правила по умолчанию для локальной разработки.
// В production реестр загружается из конфигурации деплоя.
func DefaultRules() []domain.CompatibilityRule {
	return []domain.CompatibilityRule{
		{
			Name:           "v1-stable",
			DashboardRange: ">=1.0.0 <1.3.0",
			SidecarRange:   ">=1.0.0 <1.2.0",
			WorkflowRange:  ">=1.0.0 <1.2.0",
			Status:         domain.RuleStatusStable,
		},
		{
			Name:           "v1-current",
			DashboardRange: ">=1.3.0 <2.0.0",
			SidecarRange:   ">=1.2.0 <2.0.0",
			WorkflowRange:  ">=1.2.0 <2.0.0",
			Status:         domain.RuleStatusCurrent,
		},
		{
			Name:           "v2-future",
			DashboardRange: ">=2.0.0 <3.0.0",
			SidecarRange:   ">=2.0.0 <3.0.0",
			WorkflowRange:  ">=2.0.0 <3.0.0",
			Status:         domain.RuleStatusFuture,
		},
	}
}
