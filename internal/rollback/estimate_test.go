package rollback

import "testing"

func TestEstimateSeconds(t *testing.T) {
	tests := []struct {
		name      string
		tenants   int
		perTenant float64
		expected  int
	}{
		{
			name:     "single tenant hits the floor",
			tenants:  1,
			expected: 10,
		},
		{
			name:     "small scope still floored",
			tenants:  6,
			expected: 10,
		},
		{
			name:     "linear above the floor",
			tenants:  100,
			expected: 150,
		},
		{
			name:     "ceil on fractional result",
			tenants:  7,
			expected: 11,
		},
		{
			name:     "empty scope",
			tenants:  0,
			expected: 10,
		},
		{
			name:     "negative count treated as empty",
			tenants:  -5,
			expected: 10,
		},
		{
			name:      "custom per-tenant cost",
			tenants:   10,
			perTenant: 3,
			expected:  30,
		},
		{
			name:      "zero cost falls back to default",
			tenants:   100,
			perTenant: 0,
			expected:  150,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateSeconds(tt.tenants, tt.perTenant)
			if got != tt.expected {
				t.Errorf("EstimateSeconds(%d, %.1f) = %d, expected %d", tt.tenants, tt.perTenant, got, tt.expected)
			}
		})
	}
}

func TestEstimateSeconds_Monotonic(t *testing.T) {
	prev := 0
	for n := 0; n <= 1000; n += 50 {
		est := EstimateSeconds(n, 0)
		if est < prev {
			t.Fatalf("estimate must not decrease with scope: %d tenants gave %d after %d", n, est, prev)
		}
		prev = est
	}
}
