package rollout

import (
	"testing"

	"github.com/google/uuid"
)

func TestOrderTenants_Deterministic(t *testing.T) {
	rolloutID := uuid.New()
	tenants := make([]uuid.UUID, 100)
	for i := range tenants {
		tenants[i] = uuid.New()
	}

	first := OrderTenants(rolloutID, tenants)
	second := OrderTenants(rolloutID, tenants)

	if len(first) != len(tenants) {
		t.Fatalf("order must preserve length: %d != %d", len(first), len(tenants))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("order must be reproducible, differs at %d", i)
		}
	}
}

func TestOrderTenants_InputOrderIrrelevant(t *testing.T) {
	rolloutID := uuid.New()
	tenants := make([]uuid.UUID, 50)
	for i := range tenants {
		tenants[i] = uuid.New()
	}

	reversed := make([]uuid.UUID, len(tenants))
	for i, id := range tenants {
		reversed[len(tenants)-1-i] = id
	}

	a := OrderTenants(rolloutID, tenants)
	b := OrderTenants(rolloutID, reversed)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order must not depend on input order, differs at %d", i)
		}
	}
}

func TestOrderTenants_DifferentRolloutsDifferentOrder(t *testing.T) {
	tenants := make([]uuid.UUID, 200)
	for i := range tenants {
		tenants[i] = uuid.New()
	}

	a := OrderTenants(uuid.New(), tenants)
	b := OrderTenants(uuid.New(), tenants)

	// Подмешивание rollout_id меняет canary-подмножество. Для 200
	// tenants совпадение двух перестановок невероятно.
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different rollouts should shuffle tenants differently")
	}
}

func TestOrderTenants_Empty(t *testing.T) {
	out := OrderTenants(uuid.New(), nil)
	if len(out) != 0 {
		t.Errorf("empty fleet should stay empty, got %d", len(out))
	}
}
