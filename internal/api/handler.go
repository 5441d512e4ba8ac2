package api

import (
	"log/slog"

	"github.com/nishchith-m10/fleet-control-plane/internal/compat"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
	"github.com/nishchith-m10/fleet-control-plane/internal/repo"
	"github.com/nishchith-m10/fleet-control-plane/internal/rollback"
	"github.com/nishchith-m10/fleet-control-plane/internal/rollout"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine      *rollout.Engine
	rollback    *rollback.Service
	registry    *compat.Registry
	enqueuer    *queue.Enqueuer
	rolloutRepo *repo.RolloutRepo
	jobRepo     *repo.JobRepo
	versionRepo *repo.TenantVersionRepo
	healthRepo  *repo.HealthRepo
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine      *rollout.Engine
	Rollback    *rollback.Service
	Registry    *compat.Registry
	Enqueuer    *queue.Enqueuer
	RolloutRepo *repo.RolloutRepo
	JobRepo     *repo.JobRepo
	VersionRepo *repo.TenantVersionRepo
	HealthRepo  *repo.HealthRepo
	Logger      *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		engine:      cfg.Engine,
		rollback:    cfg.Rollback,
		registry:    cfg.Registry,
		enqueuer:    cfg.Enqueuer,
		rolloutRepo: cfg.RolloutRepo,
		jobRepo:     cfg.JobRepo,
		versionRepo: cfg.VersionRepo,
		healthRepo:  cfg.HealthRepo,
		logger:      cfg.Logger,
	}
}
