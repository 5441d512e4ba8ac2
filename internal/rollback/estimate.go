// Package rollback реализует emergency rollback: обход волновых ворот
// и массовый возврат заданного scope на известную хорошую версию.
package rollback

import "math"

// DefaultSecondsPerTenant — эмпирическая стоимость отката одного
// tenant: power-cycle плюс downgrade через агента, с учётом
// конкурентности очереди hard-reboot-droplet.
const DefaultSecondsPerTenant = 1.5

// MinEstimateSeconds — нижняя граница оценки: даже откат одного tenant
// не обещается быстрее.
const MinEstimateSeconds = 10

// EstimateSeconds возвращает оценку времени отката в секундах.
// Линейна по размеру scope, никогда не ниже пола.
func EstimateSeconds(tenantCount int, secondsPerTenant float64) int {
	if secondsPerTenant <= 0 {
		secondsPerTenant = DefaultSecondsPerTenant
	}
	if tenantCount < 0 {
		tenantCount = 0
	}
	est := int(math.Ceil(float64(tenantCount) * secondsPerTenant))
	if est < MinEstimateSeconds {
		return MinEstimateSeconds
	}
	return est
}
