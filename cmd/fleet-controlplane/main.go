// Fleet Control Plane — управляющий процесс флота tenant-droplet'ов.
//
// Внутри одного процесса живут:
//   - пулы воркеров пяти очередей обновления
//   - heartbeat processor (буферизация и батч-запись телеметрии)
//   - watchdog (детекция зомби и ресурсные тревоги)
//   - rollout engine (фазовые раскатки версий)
//   - emergency rollback
//   - HTTP API, health-эндпоинт и метрики
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nishchith-m10/fleet-control-plane/internal/api"
	"github.com/nishchith-m10/fleet-control-plane/internal/compat"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/health"
	"github.com/nishchith-m10/fleet-control-plane/internal/heartbeat"
	"github.com/nishchith-m10/fleet-control-plane/internal/maintenance"
	"github.com/nishchith-m10/fleet-control-plane/internal/mq"
	"github.com/nishchith-m10/fleet-control-plane/internal/queue"
	"github.com/nishchith-m10/fleet-control-plane/internal/repo"
	"github.com/nishchith-m10/fleet-control-plane/internal/rollback"
	"github.com/nishchith-m10/fleet-control-plane/internal/rollout"
	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
	"github.com/nishchith-m10/fleet-control-plane/internal/updater"
	"github.com/nishchith-m10/fleet-control-plane/internal/watchdog"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting fleet-controlplane", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	rolloutRepo := repo.NewRolloutRepo(pool)
	jobRepo := repo.NewJobRepo(pool)
	versionRepo := repo.NewTenantVersionRepo(pool)
	healthRepo := repo.NewHealthRepo(pool)

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)
	enqueuer := queue.NewEnqueuer(jobRepo, publisher, logger)

	// Реестр совместимости: без валидного набора правил (stable,
	// current, future) процесс не стартует.
	registry, err := compat.NewRegistry(compat.DefaultRules())
	if err != nil {
		logger.Error("invalid compatibility rules", "error", err)
		os.Exit(1)
	}

	// Клиенты к агенту и провайдеру
	agent := updater.NewAgentClient(updater.AgentConfig{
		BaseURLTemplate: os.Getenv("AGENT_URL_TEMPLATE"),
	})
	provider := updater.NewProviderClient(updater.ProviderConfig{
		BaseURL: os.Getenv("PROVIDER_API_URL"),
		Token:   os.Getenv("PROVIDER_API_TOKEN"),
	})

	// Обработчики пяти очередей
	handlers := queue.NewRegistry()
	handlers.Register(updater.NewSidecarHandler(agent, versionRepo, updater.SidecarConfig{}, logger))
	handlers.Register(updater.NewWorkflowHandler(agent, versionRepo, healthRepo, logger))
	handlers.Register(updater.NewWakeHandler(provider, healthRepo, logger))
	handlers.Register(updater.NewCredentialHandler(agent, logger))
	handlers.Register(updater.NewRebootHandler(provider, agent, versionRepo, healthRepo, updater.SidecarConfig{}, logger))

	aggregator := health.NewAggregator(version)

	// Пулы воркеров
	workers := make([]*queue.Worker, 0, len(domain.AllQueues))
	for _, queueName := range domain.AllQueues {
		w, err := queue.NewWorker(queue.WorkerConfig{
			Queue:    queueName,
			Registry: handlers,
			JobRepo:  jobRepo,
			Conn:     mqConn,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to create worker", "queue", queueName, "error", err)
			os.Exit(1)
		}
		if err := w.Start(ctx); err != nil {
			logger.Error("failed to start worker", "queue", queueName, "error", err)
			os.Exit(1)
		}
		workers = append(workers, w)
		aggregator.RegisterWorker(w)
	}

	// Heartbeat processor
	processor := heartbeat.NewProcessor(mqConn, healthRepo, heartbeat.Config{}, logger)
	if err := processor.Start(ctx); err != nil {
		logger.Error("failed to start heartbeat processor", "error", err)
		os.Exit(1)
	}
	aggregator.RegisterService(processor)

	// Watchdog
	dog := watchdog.New(healthRepo, enqueuer, watchdog.Config{}, logger)
	dog.Start(ctx)
	aggregator.RegisterService(dog)

	// Rollout engine и emergency rollback
	engine := rollout.New(rolloutRepo, versionRepo, healthRepo, healthRepo, registry, enqueuer, jobRepo, rollout.Config{}, logger)
	rollbackSvc := rollback.NewService(versionRepo, healthRepo, enqueuer, engine, rollback.Config{}, logger)

	// Регламентные задачи
	runner, err := maintenance.NewRunner([]maintenance.Task{
		maintenance.RetentionTask(jobRepo, logger),
	}, logger)
	if err != nil {
		logger.Error("invalid maintenance configuration", "error", err)
		os.Exit(1)
	}
	runner.Start(ctx)
	aggregator.RegisterService(runner)

	// HTTP: API + health + метрики
	handler := api.NewHandler(api.Config{
		Engine:      engine,
		Rollback:    rollbackSvc,
		Registry:    registry,
		Enqueuer:    enqueuer,
		RolloutRepo: rolloutRepo,
		JobRepo:     jobRepo,
		VersionRepo: versionRepo,
		HealthRepo:  healthRepo,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /healthz", aggregator.Handler(logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	port := ":8080"
	if v := os.Getenv("CONTROLPLANE_PORT"); v != "" {
		port = ":" + v
	}
	server := &http.Server{Addr: port, Handler: mux}

	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown: новые задачи не принимаются, активные
	// дорабатывают в пределах таймаута, затем принудительное закрытие.
	shutdown := health.NewShutdown(health.DefaultShutdownTimeout, logger)
	shutdown.Trigger(func(shutdownCtx context.Context) {
		aggregator.SetShuttingDown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}

		engine.Stop()
		runner.Stop()
		dog.Stop()
		processor.Stop(shutdownCtx)

		done := make(chan struct{})
		go func() {
			for _, w := range workers {
				w.Stop()
			}
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout, forcing close", "timeout", health.DefaultShutdownTimeout)
		}
	})

	// Даём буферам логов и соединениям закрыться без гонки с exit.
	time.Sleep(100 * time.Millisecond)
	logger.Info("fleet-controlplane stopped")
}
