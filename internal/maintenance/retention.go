package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// JobTrimmer — усечение истории терминальных задач.
type JobTrimmer interface {
	TrimTerminal(ctx context.Context, queue domain.QueueName, keepCompleted, keepFailed int) (int64, error)
}

// RetentionTask возвращает задачу усечения истории задач по политике
// очередей: completed и failed хранятся каждые со своим лимитом,
// остальное удаляется от старых к новым.
func RetentionTask(trimmer JobTrimmer, logger *slog.Logger) Task {
	return Task{
		Name:     "job_retention",
		CronExpr: "*/30 * * * *",
		Run: func(ctx context.Context) error {
			var total int64
			for _, queueName := range domain.AllQueues {
				cfg, err := domain.ConfigFor(queueName)
				if err != nil {
					return err
				}
				trimmed, err := trimmer.TrimTerminal(ctx, queueName, cfg.KeepCompleted, cfg.KeepFailed)
				if err != nil {
					return fmt.Errorf("trim %s: %w", queueName, err)
				}
				total += trimmed
			}
			if total > 0 {
				logger.Info("job history trimmed", "rows", total)
			}
			return nil
		},
	}
}
