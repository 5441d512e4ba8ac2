package rollback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
)

var (
	// ErrEmptyScope — scope не содержит ни одного tenant.
	ErrEmptyScope = errors.New("rollback scope resolves to no tenants")

	// ErrNoTargetVersion — не указана версия, на которую откатываемся.
	ErrNoTargetVersion = errors.New("rollback target version is required")
)

// TenantSource — перечисление tenants для fleet-wide отката.
type TenantSource interface {
	ListAllWorkspaces(ctx context.Context) ([]uuid.UUID, error)
}

// DropletResolver — поиск droplet по workspace.
type DropletResolver interface {
	GetByWorkspace(ctx context.Context, workspaceID uuid.UUID) (*domain.DropletHealth, error)
}

// JobEnqueuer ставит задачи отката.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, queueName domain.QueueName, workspaceID uuid.UUID, payload any, opts queue.EnqueueOptions) (*domain.FleetUpdateJob, error)
}

// RolloutPreemptor вытесняет активную раскатку компонента.
type RolloutPreemptor interface {
	Preempt(ctx context.Context, component domain.Component, reason string) error
}

// Config — настройки emergency rollback.
type Config struct {
	// SecondsPerTenant — коэффициент линейной оценки времени.
	SecondsPerTenant float64
}

// Service — emergency rollback.
//
// Работает мимо волновых ворот: задачи ставятся с максимальным
// приоритетом и вытесняют любую бегущую или приостановленную раскатку
// того же компонента.
type Service struct {
	tenants   TenantSource
	droplets  DropletResolver
	enqueuer  JobEnqueuer
	preemptor RolloutPreemptor
	cfg       Config
	logger    *slog.Logger
}

// NewService создаёт сервис emergency rollback.
func NewService(tenants TenantSource, droplets DropletResolver, enqueuer JobEnqueuer, preemptor RolloutPreemptor, cfg Config, logger *slog.Logger) *Service {
	if cfg.SecondsPerTenant <= 0 {
		cfg.SecondsPerTenant = DefaultSecondsPerTenant
	}
	return &Service{
		tenants:   tenants,
		droplets:  droplets,
		enqueuer:  enqueuer,
		preemptor: preemptor,
		cfg:       cfg,
		logger:    logger.With("component", "emergency_rollback"),
	}
}

// Request — запрос emergency rollback.
//
// Scope задаётся одним из трёх способов: один tenant (WorkspaceID),
// явный список (WorkspaceIDs) либо весь флот (EntireFleet). Первый
// непустой и выигрывает в этом порядке.
type Request struct {
	// ToVersion — известная хорошая версия sidecar.
	ToVersion string `json:"to_version"`

	// WorkspaceID — откат одного tenant.
	WorkspaceID *uuid.UUID `json:"workspace_id,omitempty"`

	// WorkspaceIDs — откат явного списка tenants.
	WorkspaceIDs []uuid.UUID `json:"workspace_ids,omitempty"`

	// EntireFleet — откат всего флота.
	EntireFleet bool `json:"entire_fleet"`

	// Reason — причина инцидента для журнала и вытеснения раскатки.
	Reason string `json:"reason"`
}

// Result — итог инициации отката.
type Result struct {
	// TenantCount — размер scope.
	TenantCount int `json:"tenant_count"`

	// EstimateSeconds — оценка времени завершения.
	EstimateSeconds int `json:"estimate_seconds"`

	// JobIDs — поставленные задачи.
	JobIDs []uuid.UUID `json:"job_ids"`
}

// Execute вытесняет активную раскатку sidecar и ставит
// reboot/downgrade задачи для всего scope с приоритетом emergency.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.ToVersion == "" {
		return nil, ErrNoTargetVersion
	}

	scope, err := s.resolveScope(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(scope) == 0 {
		return nil, ErrEmptyScope
	}

	reason := req.Reason
	if reason == "" {
		reason = "emergency rollback to " + req.ToVersion
	}
	if err := s.preemptor.Preempt(ctx, domain.ComponentSidecar, reason); err != nil {
		return nil, fmt.Errorf("preempt active rollout: %w", err)
	}

	result := &Result{
		TenantCount:     len(scope),
		EstimateSeconds: EstimateSeconds(len(scope), s.cfg.SecondsPerTenant),
		JobIDs:          make([]uuid.UUID, 0, len(scope)),
	}

	for _, workspaceID := range scope {
		job, err := s.enqueueDowngrade(ctx, workspaceID, req.ToVersion)
		if err != nil {
			// Частично поставленный откат хуже остановленного на ошибке:
			// оператор видит, сколько задач успело встать.
			return result, fmt.Errorf("tenant %s: %w", workspaceID, err)
		}
		result.JobIDs = append(result.JobIDs, job.ID)
	}

	s.logger.Warn("emergency rollback initiated",
		"to_version", req.ToVersion,
		"tenants", result.TenantCount,
		"estimate_seconds", result.EstimateSeconds,
		"reason", reason,
	)
	return result, nil
}

func (s *Service) resolveScope(ctx context.Context, req Request) ([]uuid.UUID, error) {
	switch {
	case req.WorkspaceID != nil:
		return []uuid.UUID{*req.WorkspaceID}, nil
	case len(req.WorkspaceIDs) > 0:
		return dedupe(req.WorkspaceIDs), nil
	case req.EntireFleet:
		ids, err := s.tenants.ListAllWorkspaces(ctx)
		if err != nil {
			return nil, fmt.Errorf("list fleet: %w", err)
		}
		return ids, nil
	default:
		return nil, ErrEmptyScope
	}
}

func (s *Service) enqueueDowngrade(ctx context.Context, workspaceID uuid.UUID, toVersion string) (*domain.FleetUpdateJob, error) {
	droplet, err := s.droplets.GetByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("resolve droplet: %w", err)
	}

	payload := domain.HardRebootJob{
		DropletID:   droplet.DropletID,
		WorkspaceID: workspaceID,
		Reason:      domain.RebootReasonAdminRequest,
		DowngradeTo: toVersion,
	}
	return s.enqueuer.Enqueue(ctx, domain.QueueHardReboot, workspaceID, payload, queue.EnqueueOptions{
		Priority: mq.PriorityEmergency,
	})
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
