package rollout

import (
	"testing"
	"time"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

func TestDefaultWavesValid(t *testing.T) {
	if err := ValidateWaves(DefaultWaves()); err != nil {
		t.Errorf("default waves must validate: %v", err)
	}
	if err := ValidateWaves(StagedWaves()); err != nil {
		t.Errorf("staged waves must validate: %v", err)
	}
	if err := ValidateWaves(ImmediateWave()); err != nil {
		t.Errorf("immediate wave must validate: %v", err)
	}
}

func TestValidateWaves_Violations(t *testing.T) {
	tests := []struct {
		name  string
		waves []domain.Wave
	}{
		{
			name:  "empty configuration",
			waves: nil,
		},
		{
			name: "percentage not increasing",
			waves: []domain.Wave{
				{Ordinal: 0, Percentage: 50, ErrorThresholdPercent: 1, MonitorDuration: time.Minute},
				{Ordinal: 1, Percentage: 50, ErrorThresholdPercent: 2, MonitorDuration: time.Minute},
				{Ordinal: 2, Percentage: 100, ErrorThresholdPercent: 3, MonitorDuration: 0},
			},
		},
		{
			name: "error threshold tightens",
			waves: []domain.Wave{
				{Ordinal: 0, Percentage: 10, ErrorThresholdPercent: 5, MonitorDuration: time.Minute},
				{Ordinal: 1, Percentage: 100, ErrorThresholdPercent: 2, MonitorDuration: 0},
			},
		},
		{
			name: "zero monitor window on non-terminal wave",
			waves: []domain.Wave{
				{Ordinal: 0, Percentage: 10, ErrorThresholdPercent: 1, MonitorDuration: 0},
				{Ordinal: 1, Percentage: 100, ErrorThresholdPercent: 2, MonitorDuration: 0},
			},
		},
		{
			name: "last wave below 100",
			waves: []domain.Wave{
				{Ordinal: 0, Percentage: 10, ErrorThresholdPercent: 1, MonitorDuration: time.Minute},
				{Ordinal: 1, Percentage: 50, ErrorThresholdPercent: 2, MonitorDuration: time.Minute},
			},
		},
		{
			name: "percentage above 100",
			waves: []domain.Wave{
				{Ordinal: 0, Percentage: 120, ErrorThresholdPercent: 1, MonitorDuration: 0},
			},
		},
		{
			name: "ordinal regress",
			waves: []domain.Wave{
				{Ordinal: 2, Percentage: 10, ErrorThresholdPercent: 1, MonitorDuration: time.Minute},
				{Ordinal: 1, Percentage: 100, ErrorThresholdPercent: 2, MonitorDuration: 0},
			},
		},
		{
			name: "negative error threshold",
			waves: []domain.Wave{
				{Ordinal: 0, Percentage: 100, ErrorThresholdPercent: -1, MonitorDuration: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateWaves(tt.waves); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestTargetCount(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		percentage float64
		expected   int
	}{
		{"canary of large fleet", 1000, 1, 10},
		{"canary rounds up", 50, 1, 1},
		{"canary of tiny fleet never zero", 3, 1, 1},
		{"full fleet", 1000, 100, 1000},
		{"half fleet", 7, 50, 4},
		{"empty fleet", 0, 100, 0},
		{"capped at total", 3, 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetCount(tt.total, tt.percentage)
			if got != tt.expected {
				t.Errorf("TargetCount(%d, %.0f) = %d, expected %d", tt.total, tt.percentage, got, tt.expected)
			}
		})
	}
}

func TestTargetCount_CumulativeMonotonic(t *testing.T) {
	// Накопительные цели волн не убывают: дельта ordered[dispatched:target]
	// каждой следующей волны всегда неотрицательна.
	for _, total := range []int{1, 10, 137, 1000} {
		prev := 0
		for _, w := range DefaultWaves() {
			target := TargetCount(total, w.Percentage)
			if target < prev {
				t.Fatalf("total %d: wave %d target %d below previous %d", total, w.Ordinal, target, prev)
			}
			prev = target
		}
		if prev != total {
			t.Errorf("total %d: terminal wave must cover the whole fleet, got %d", total, prev)
		}
	}
}
