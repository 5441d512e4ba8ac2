package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

func TestNewRunner_InvalidCronIsFatal(t *testing.T) {
	_, err := NewRunner([]Task{
		{Name: "broken", CronExpr: "not a schedule", Run: func(ctx context.Context) error { return nil }},
	}, slog.New(slog.DiscardHandler))
	if err == nil {
		t.Fatal("invalid cron expression must fail runner construction")
	}
}

func TestNewRunner_FiveFieldExpressions(t *testing.T) {
	exprs := []string{"*/30 * * * *", "0 3 * * *", "15 */6 * * 1-5"}
	for _, expr := range exprs {
		_, err := NewRunner([]Task{
			{Name: "ok", CronExpr: expr, Run: func(ctx context.Context) error { return nil }},
		}, slog.New(slog.DiscardHandler))
		if err != nil {
			t.Errorf("expression %q should parse: %v", expr, err)
		}
	}

	// Шестиполевые выражения (с секундами) не принимаются
	if _, err := NewRunner([]Task{
		{Name: "six", CronExpr: "0 */30 * * * *", Run: func(ctx context.Context) error { return nil }},
	}, slog.New(slog.DiscardHandler)); err == nil {
		t.Error("six-field expression must be rejected")
	}
}

func TestRunner_StartStop(t *testing.T) {
	r, err := NewRunner([]Task{
		{Name: "noop", CronExpr: "0 3 * * *", Run: func(ctx context.Context) error { return nil }},
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	r.Start(context.Background())
	if !r.HealthStats().Running {
		t.Error("runner should report running after start")
	}

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	if r.HealthStats().Running {
		t.Error("runner should report stopped after stop")
	}
}

type fakeTrimmer struct {
	queues []domain.QueueName
	limits [][2]int
	failOn domain.QueueName
}

func (f *fakeTrimmer) TrimTerminal(ctx context.Context, queue domain.QueueName, keepCompleted, keepFailed int) (int64, error) {
	if queue == f.failOn {
		return 0, errors.New("trim failed")
	}
	f.queues = append(f.queues, queue)
	f.limits = append(f.limits, [2]int{keepCompleted, keepFailed})
	return 3, nil
}

func TestRetentionTask_CoversAllQueues(t *testing.T) {
	trimmer := &fakeTrimmer{}
	task := RetentionTask(trimmer, slog.New(slog.DiscardHandler))

	if task.CronExpr == "" || task.Name == "" {
		t.Fatal("retention task must carry a name and a schedule")
	}
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("retention run failed: %v", err)
	}

	if len(trimmer.queues) != len(domain.AllQueues) {
		t.Fatalf("expected %d trims, got %d", len(domain.AllQueues), len(trimmer.queues))
	}
	// Лимиты из политики очереди, не из одного общего значения
	for i, q := range trimmer.queues {
		cfg, _ := domain.ConfigFor(q)
		if trimmer.limits[i] != [2]int{cfg.KeepCompleted, cfg.KeepFailed} {
			t.Errorf("queue %s trimmed with %v, expected %d/%d", q, trimmer.limits[i], cfg.KeepCompleted, cfg.KeepFailed)
		}
	}
}

func TestRetentionTask_TrimFailureSurfaces(t *testing.T) {
	trimmer := &fakeTrimmer{failOn: domain.QueueSidecarUpdate}
	task := RetentionTask(trimmer, slog.New(slog.DiscardHandler))

	if err := task.Run(context.Background()); err == nil {
		t.Fatal("trim failure should surface to the runner")
	}
}
