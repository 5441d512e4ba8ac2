// Package updater содержит обработчиков пяти очередей обновления и
// HTTP-клиентов к sidecar-агенту droplet'а и API инфраструктурного
// провайдера.
package updater

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
)

// AgentAPI — управляющий API sidecar-агента на droplet.
//
// Шаги blue-green протокола и прямые пуши (workflow, credentials)
// ходят через него. Все операции ограничены по времени: агент ничего
// не ждёт бесконечно.
type AgentAPI interface {
	PrepareUpdate(ctx context.Context, dropletID string) error
	Drain(ctx context.Context, dropletID string, timeout time.Duration) error
	PullImage(ctx context.Context, dropletID, version string) error
	Checkpoint(ctx context.Context, dropletID string) error
	Swap(ctx context.Context, dropletID, version string) error
	HealthCheck(ctx context.Context, dropletID string, timeout time.Duration) error
	Rollback(ctx context.Context, dropletID, version string) error
	PushWorkflow(ctx context.Context, dropletID string, job domain.WorkflowUpdateJob) error
	InjectCredentials(ctx context.Context, dropletID string, creds []domain.Credential) error
}

// AgentConfig — настройки клиента агента.
type AgentConfig struct {
	// BaseURLTemplate — шаблон адреса агента, %s заменяется на droplet ID.
	// По умолчанию internal-DNS схема.
	BaseURLTemplate string

	// RequestTimeout — таймаут обычного запроса (не drain/health-check).
	RequestTimeout time.Duration
}

// AgentClient — resty-клиент к sidecar-агенту.
type AgentClient struct {
	client *resty.Client
	cfg    AgentConfig
}

// NewAgentClient создаёт клиент агента.
func NewAgentClient(cfg AgentConfig) *AgentClient {
	if cfg.BaseURLTemplate == "" {
		cfg.BaseURLTemplate = "http://droplet-%s.internal:8044"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &AgentClient{client: client, cfg: cfg}
}

func (a *AgentClient) url(dropletID, path string) string {
	return fmt.Sprintf(a.cfg.BaseURLTemplate, dropletID) + path
}

// post выполняет POST к агенту и переводит не-2xx ответ в ошибку.
func (a *AgentClient) post(ctx context.Context, operation, url string, body any, timeout time.Duration) error {
	req := a.client.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if timeout > 0 {
		// Длинные шаги (drain, health-check) живут дольше общего
		// таймаута клиента.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		req.SetContext(ctx)
	}

	resp, err := req.Post(url)
	if err != nil {
		telemetry.ProviderRequests.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("%s: %w", operation, err)
	}
	if !resp.IsSuccess() {
		telemetry.ProviderRequests.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("%s: agent returned %d: %s", operation, resp.StatusCode(), resp.String())
	}

	telemetry.ProviderRequests.WithLabelValues(operation, "success").Inc()
	return nil
}

// PrepareUpdate подготавливает агент к blue-green обновлению.
func (a *AgentClient) PrepareUpdate(ctx context.Context, dropletID string) error {
	return a.post(ctx, "agent_prepare", a.url(dropletID, "/v1/update/prepare"), nil, 0)
}

// Drain дожидается завершения in-flight операций tenant'а.
func (a *AgentClient) Drain(ctx context.Context, dropletID string, timeout time.Duration) error {
	body := map[string]any{"timeout_seconds": int(timeout.Seconds())}
	return a.post(ctx, "agent_drain", a.url(dropletID, "/v1/update/drain"), body, timeout+10*time.Second)
}

// PullImage скачивает образ целевой версии на droplet.
func (a *AgentClient) PullImage(ctx context.Context, dropletID, version string) error {
	body := map[string]any{"version": version}
	return a.post(ctx, "agent_pull", a.url(dropletID, "/v1/update/pull"), body, 5*time.Minute)
}

// Checkpoint сохраняет состояние sidecar перед подменой контейнера.
func (a *AgentClient) Checkpoint(ctx context.Context, dropletID string) error {
	return a.post(ctx, "agent_checkpoint", a.url(dropletID, "/v1/update/checkpoint"), nil, 0)
}

// Swap подменяет контейнер на целевую версию.
func (a *AgentClient) Swap(ctx context.Context, dropletID, version string) error {
	body := map[string]any{"version": version}
	return a.post(ctx, "agent_swap", a.url(dropletID, "/v1/update/swap"), body, 0)
}

// HealthCheck опрашивает агент до первого здорового ответа либо
// истечения таймаута.
func (a *AgentClient) HealthCheck(ctx context.Context, dropletID string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := a.url(dropletID, "/v1/health")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			telemetry.ProviderRequests.WithLabelValues("agent_health", "error").Inc()
			if lastErr != nil {
				return fmt.Errorf("health check: %w (last: %v)", ctx.Err(), lastErr)
			}
			return fmt.Errorf("health check: %w", ctx.Err())
		case <-ticker.C:
			resp, err := a.client.R().SetContext(ctx).Get(url)
			if err != nil {
				lastErr = err
				continue
			}
			if resp.StatusCode() == http.StatusOK {
				telemetry.ProviderRequests.WithLabelValues("agent_health", "success").Inc()
				return nil
			}
			lastErr = fmt.Errorf("agent returned %d", resp.StatusCode())
		}
	}
}

// Rollback возвращает контейнер на предыдущую версию.
func (a *AgentClient) Rollback(ctx context.Context, dropletID, version string) error {
	body := map[string]any{"version": version}
	return a.post(ctx, "agent_rollback", a.url(dropletID, "/v1/update/rollback"), body, 0)
}

// PushWorkflow заливает workflow-определение на droplet.
func (a *AgentClient) PushWorkflow(ctx context.Context, dropletID string, job domain.WorkflowUpdateJob) error {
	return a.post(ctx, "agent_push_workflow", a.url(dropletID, "/v1/workflows/"+job.WorkflowName), job, 0)
}

// InjectCredentials передаёт зашифрованные секреты агенту.
// Расшифровка происходит на droplet, control plane открытых данных
// не видит.
func (a *AgentClient) InjectCredentials(ctx context.Context, dropletID string, creds []domain.Credential) error {
	body := map[string]any{"credentials": creds}
	return a.post(ctx, "agent_inject_credentials", a.url(dropletID, "/v1/credentials"), body, 0)
}
