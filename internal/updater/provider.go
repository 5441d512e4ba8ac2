package updater

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/nishchith-m10/fleet-control-plane/internal/telemetry"
)

// InfraProvider — API инфраструктурного провайдера: операции питания,
// доступные даже когда агент на droplet мёртв.
type InfraProvider interface {
	// PowerCycle — принудительный hard reboot droplet'а.
	PowerCycle(ctx context.Context, dropletID string) error

	// PowerOn — включение hibernated droplet'а.
	PowerOn(ctx context.Context, dropletID string) error
}

// ProviderConfig — настройки клиента провайдера.
type ProviderConfig struct {
	// BaseURL — адрес API провайдера.
	BaseURL string

	// Token — bearer-токен.
	Token string

	// RequestTimeout — таймаут одного запроса.
	RequestTimeout time.Duration
}

// ProviderClient — resty-клиент к API провайдера.
//
// Rate limit (429) и 5xx считаются transient: запрос повторяется с
// экспоненциальной паузой внутри клиента, поверх этого работает retry
// самой задачи.
type ProviderClient struct {
	client *resty.Client
	cfg    ProviderConfig
}

// NewProviderClient создаёт клиент провайдера.
func NewProviderClient(cfg ProviderConfig) *ProviderClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(15 * time.Second).
		AddRetryConditions(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		})
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &ProviderClient{client: client, cfg: cfg}
}

// PowerCycle реализует InfraProvider.
func (p *ProviderClient) PowerCycle(ctx context.Context, dropletID string) error {
	return p.action(ctx, "provider_power_cycle", dropletID, "power_cycle")
}

// PowerOn реализует InfraProvider.
func (p *ProviderClient) PowerOn(ctx context.Context, dropletID string) error {
	return p.action(ctx, "provider_power_on", dropletID, "power_on")
}

func (p *ProviderClient) action(ctx context.Context, operation, dropletID, actionType string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"type": actionType}).
		Post(fmt.Sprintf("/v2/droplets/%s/actions", dropletID))
	if err != nil {
		telemetry.ProviderRequests.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("%s droplet %s: %w", actionType, dropletID, err)
	}
	if !resp.IsSuccess() {
		telemetry.ProviderRequests.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("%s droplet %s: provider returned %d: %s", actionType, dropletID, resp.StatusCode(), resp.String())
	}

	telemetry.ProviderRequests.WithLabelValues(operation, "success").Inc()
	return nil
}
