package compat

import (
	"testing"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

func TestNewRegistry_RequiresAllStatuses(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil {
		t.Error("empty rule set must be rejected")
	}

	// Только stable и current, без future
	rules := []domain.CompatibilityRule{
		{Name: "s", DashboardRange: ">=1.0.0", SidecarRange: ">=1.0.0", WorkflowRange: ">=1.0.0", Status: domain.RuleStatusStable},
		{Name: "c", DashboardRange: ">=1.0.0", SidecarRange: ">=1.0.0", WorkflowRange: ">=1.0.0", Status: domain.RuleStatusCurrent},
	}
	if _, err := NewRegistry(rules); err == nil {
		t.Error("registry without a future rule must be rejected")
	}
}

func TestNewRegistry_InvalidRange(t *testing.T) {
	rules := DefaultRules()
	rules[0].SidecarRange = "not-a-range"
	if _, err := NewRegistry(rules); err == nil {
		t.Error("unparseable range must fail registry construction")
	}
}

func TestRegistry_Check(t *testing.T) {
	r, err := NewRegistry(DefaultRules())
	if err != nil {
		t.Fatalf("default rules must compile: %v", err)
	}

	tests := []struct {
		name       string
		triple     domain.VersionTriple
		compatible bool
		status     domain.RuleStatus
	}{
		{
			name:       "stable combination",
			triple:     domain.VersionTriple{Dashboard: "1.1.0", Sidecar: "1.0.5", Workflow: "1.1.2"},
			compatible: true,
			status:     domain.RuleStatusStable,
		},
		{
			name:       "current combination",
			triple:     domain.VersionTriple{Dashboard: "1.4.0", Sidecar: "1.3.0", Workflow: "1.2.0"},
			compatible: true,
			status:     domain.RuleStatusCurrent,
		},
		{
			name:       "mixed across rules is incompatible",
			triple:     domain.VersionTriple{Dashboard: "1.1.0", Sidecar: "2.1.0", Workflow: "1.0.0"},
			compatible: false,
		},
		{
			name:       "version beyond all rules",
			triple:     domain.VersionTriple{Dashboard: "9.0.0", Sidecar: "9.0.0", Workflow: "9.0.0"},
			compatible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Check(tt.triple)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if result.Compatible != tt.compatible {
				t.Errorf("Compatible = %v, expected %v", result.Compatible, tt.compatible)
			}
			if tt.compatible && result.Status != tt.status {
				t.Errorf("Status = %s, expected %s", result.Status, tt.status)
			}
			if !tt.compatible && result.MatchingRule != nil {
				t.Error("incompatible triple should carry no matching rule")
			}
		})
	}
}

func TestRegistry_CheckRejectsGarbageVersion(t *testing.T) {
	r, _ := NewRegistry(DefaultRules())
	_, err := r.Check(domain.VersionTriple{Dashboard: "abc", Sidecar: "1.0.0", Workflow: "1.0.0"})
	if err == nil {
		t.Error("unparseable version must return an error")
	}
}

func TestRegistry_CoversVersion(t *testing.T) {
	r, _ := NewRegistry(DefaultRules())

	covered, err := r.CoversVersion(domain.ComponentSidecar, "1.2.3")
	if err != nil {
		t.Fatalf("CoversVersion failed: %v", err)
	}
	if !covered {
		t.Error("1.2.3 sidecar should be covered by the current rule")
	}

	covered, err = r.CoversVersion(domain.ComponentSidecar, "9.9.9")
	if err != nil {
		t.Fatalf("CoversVersion failed: %v", err)
	}
	if covered {
		t.Error("9.9.9 sidecar is beyond every rule")
	}

	if _, err := r.CoversVersion(domain.Component("bogus"), "1.0.0"); err == nil {
		t.Error("unknown component must be rejected")
	}
}

func TestRegistry_StableVersion(t *testing.T) {
	r, _ := NewRegistry(DefaultRules())
	rule := r.StableVersion()
	if rule == nil {
		t.Fatal("default rules include a stable rule")
	}
	if rule.Status != domain.RuleStatusStable {
		t.Errorf("expected stable rule, got %s", rule.Status)
	}
}
