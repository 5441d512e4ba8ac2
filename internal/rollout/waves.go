package rollout

import (
	"fmt"
	"math"
	"time"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// DefaultWaves — стандартная лестница canary-раскатки.
//
// Проценты накопительные: волна 25% означает, что после её диспатча
// обновление получили 25% флота, включая предыдущие волны.
func DefaultWaves() []domain.Wave {
	return []domain.Wave{
		{Ordinal: 0, Percentage: 1, ErrorThresholdPercent: 1, MonitorDuration: 30 * time.Minute},
		{Ordinal: 1, Percentage: 10, ErrorThresholdPercent: 2, MonitorDuration: 30 * time.Minute},
		{Ordinal: 2, Percentage: 25, ErrorThresholdPercent: 3, MonitorDuration: 20 * time.Minute},
		{Ordinal: 3, Percentage: 50, ErrorThresholdPercent: 5, MonitorDuration: 15 * time.Minute},
		{Ordinal: 4, Percentage: 100, ErrorThresholdPercent: 5, MonitorDuration: 0},
	}
}

// StagedWaves — лестница без canary-ступени.
func StagedWaves() []domain.Wave {
	return DefaultWaves()[1:]
}

// ImmediateWave — одна 100%-волна без окна наблюдения.
func ImmediateWave() []domain.Wave {
	return []domain.Wave{
		{Ordinal: 4, Percentage: 100, ErrorThresholdPercent: 5, MonitorDuration: 0},
	}
}

// ValidateWaves проверяет конфигурацию лестницы волн.
//
// Правила: проценты строго растут и заканчиваются на 100; пороги ошибок
// не уменьшаются (допуск может только расширяться с ростом уверенности);
// нулевое окно наблюдения разрешено только терминальной волне.
func ValidateWaves(waves []domain.Wave) error {
	if len(waves) == 0 {
		return fmt.Errorf("wave configuration is empty")
	}

	for i, w := range waves {
		if w.Percentage <= 0 || w.Percentage > 100 {
			return fmt.Errorf("wave %d: percentage %.1f out of (0, 100]", w.Ordinal, w.Percentage)
		}
		if w.ErrorThresholdPercent < 0 {
			return fmt.Errorf("wave %d: negative error threshold", w.Ordinal)
		}
		if i > 0 {
			prev := waves[i-1]
			if w.Ordinal <= prev.Ordinal {
				return fmt.Errorf("wave ordinals must strictly increase: %d after %d", w.Ordinal, prev.Ordinal)
			}
			if w.Percentage <= prev.Percentage {
				return fmt.Errorf("wave percentages must strictly increase: %.1f after %.1f", w.Percentage, prev.Percentage)
			}
			if w.ErrorThresholdPercent < prev.ErrorThresholdPercent {
				return fmt.Errorf("wave %d: error threshold %.1f tighter than previous %.1f", w.Ordinal, w.ErrorThresholdPercent, prev.ErrorThresholdPercent)
			}
		}
		if w.MonitorDuration <= 0 && !w.IsTerminalWave() {
			return fmt.Errorf("wave %d: zero monitor window allowed only for the terminal wave", w.Ordinal)
		}
	}

	if last := waves[len(waves)-1]; !last.IsTerminalWave() {
		return fmt.Errorf("last wave must reach 100%%, got %.1f", last.Percentage)
	}
	return nil
}

// TargetCount возвращает накопительное число tenants, которые должны
// быть обновлены по завершении волны. Округление вверх: canary 1% от
// 1000 tenants — это 10, от 50 tenants — 1, никогда не ноль при
// непустом флоте.
func TargetCount(total int, percentage float64) int {
	if total <= 0 {
		return 0
	}
	n := int(math.Ceil(float64(total) * percentage / 100))
	if n > total {
		n = total
	}
	return n
}
