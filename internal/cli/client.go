package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api, CLI не импортирует internal/api) ---

// RolloutResponse — rollout из API.
type RolloutResponse struct {
	ID               string  `json:"id"`
	Component        string  `json:"component"`
	FromVersion      string  `json:"from_version"`
	ToVersion        string  `json:"to_version"`
	Strategy         string  `json:"strategy"`
	Status           string  `json:"status"`
	WaveOrdinal      int     `json:"wave_ordinal"`
	TotalTenants     int     `json:"total_tenants"`
	UpdatedTenants   int     `json:"updated_tenants"`
	FailedTenants    int     `json:"failed_tenants"`
	ErrorThreshold   float64 `json:"error_threshold"`
	CanaryPercentage float64 `json:"canary_percentage"`
	StartedAt        string  `json:"started_at,omitempty"`
	CompletedAt      string  `json:"completed_at,omitempty"`
	AbortReason      string  `json:"abort_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// JobResponse — задача из API.
type JobResponse struct {
	ID          string `json:"id"`
	Queue       string `json:"queue"`
	WorkspaceID string `json:"workspace_id"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
	RolloutID   string `json:"rollout_id,omitempty"`
	WaveNumber  int    `json:"wave_number,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// DropletHealthResponse — состояние droplet из API.
type DropletHealthResponse struct {
	WorkspaceID     string   `json:"workspace_id"`
	DropletID       string   `json:"droplet_id"`
	State           string   `json:"state"`
	LastHeartbeatAt string   `json:"last_heartbeat_at,omitempty"`
	CPUPercent      *float64 `json:"cpu_percent,omitempty"`
	MemoryPercent   *float64 `json:"memory_percent,omitempty"`
	DiskPercent     *float64 `json:"disk_percent,omitempty"`
	SidecarHealthy  bool     `json:"sidecar_healthy"`
}

// TenantResponse — tenant c версиями из API.
type TenantResponse struct {
	Health   DropletHealthResponse `json:"health"`
	Versions *struct {
		DashboardVersion string            `json:"dashboard_version"`
		SidecarVersion   string            `json:"sidecar_version"`
		WorkflowVersions map[string]string `json:"workflow_versions"`
		UpdateStatus     string            `json:"update_status"`
		LastUpdateAt     string            `json:"last_update_at,omitempty"`
	} `json:"versions,omitempty"`
}

// CompatResponse — результат проверки совместимости.
type CompatResponse struct {
	Compatible   bool   `json:"compatible"`
	Status       string `json:"status,omitempty"`
	MatchingRule string `json:"matching_rule,omitempty"`
}

// RollbackResponse — итог инициации emergency rollback.
type RollbackResponse struct {
	TenantCount     int      `json:"tenant_count"`
	EstimateSeconds int      `json:"estimate_seconds"`
	JobIDs          []string `json:"job_ids"`
}

// --- Request types ---

// InitiateRolloutRequest — инициация раскатки.
type InitiateRolloutRequest struct {
	Component   string `json:"component"`
	FromVersion string `json:"from_version,omitempty"`
	ToVersion   string `json:"to_version"`
	Strategy    string `json:"strategy,omitempty"`
}

// RollbackRequest — emergency rollback.
type RollbackRequest struct {
	ToVersion    string   `json:"to_version"`
	WorkspaceID  string   `json:"workspace_id,omitempty"`
	WorkspaceIDs []string `json:"workspace_ids,omitempty"`
	EntireFleet  bool     `json:"entire_fleet,omitempty"`
	Reason       string   `json:"reason"`
}

// CompatCheckRequest — тройка версий для проверки.
type CompatCheckRequest struct {
	Dashboard string `json:"dashboard_version"`
	Sidecar   string `json:"sidecar_version"`
	Workflow  string `json:"workflow_version"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API control plane.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Rollouts ---

// ListRollouts возвращает последние rollouts.
func (c *Client) ListRollouts() ([]RolloutResponse, error) {
	var rollouts []RolloutResponse
	err := c.list("/api/v1/rollouts", &rollouts)
	return rollouts, err
}

// GetRollout возвращает rollout по ID.
func (c *Client) GetRollout(id string) (*RolloutResponse, error) {
	var rollout RolloutResponse
	err := c.get("/api/v1/rollouts/"+id, &rollout)
	return &rollout, err
}

// InitiateRollout запускает новую раскатку.
func (c *Client) InitiateRollout(req InitiateRolloutRequest) (*RolloutResponse, error) {
	var rollout RolloutResponse
	err := c.post("/api/v1/rollouts", req, &rollout)
	return &rollout, err
}

// PauseRollout приостанавливает раскатку.
func (c *Client) PauseRollout(id, reason string) (*RolloutResponse, error) {
	var rollout RolloutResponse
	err := c.post("/api/v1/rollouts/"+id+"/pause", map[string]string{"reason": reason}, &rollout)
	return &rollout, err
}

// ResumeRollout возобновляет раскатку.
func (c *Client) ResumeRollout(id string) (*RolloutResponse, error) {
	var rollout RolloutResponse
	err := c.post("/api/v1/rollouts/"+id+"/resume", map[string]string{}, &rollout)
	return &rollout, err
}

// AbortRollout прерывает раскатку.
func (c *Client) AbortRollout(id, reason string) (*RolloutResponse, error) {
	var rollout RolloutResponse
	err := c.post("/api/v1/rollouts/"+id+"/abort", map[string]string{"reason": reason}, &rollout)
	return &rollout, err
}

// --- Emergency rollback ---

// EmergencyRollback инициирует экстренный откат.
func (c *Client) EmergencyRollback(req RollbackRequest) (*RollbackResponse, error) {
	var result RollbackResponse
	err := c.post("/api/v1/rollback", req, &result)
	return &result, err
}

// --- Fleet ---

// ListFleet возвращает все не-hibernated droplets.
func (c *Client) ListFleet() ([]DropletHealthResponse, error) {
	var fleet []DropletHealthResponse
	err := c.list("/api/v1/fleet", &fleet)
	return fleet, err
}

// GetTenant возвращает состояние одного tenant.
func (c *Client) GetTenant(workspaceID string) (*TenantResponse, error) {
	var tenant TenantResponse
	err := c.get("/api/v1/fleet/"+workspaceID, &tenant)
	return &tenant, err
}

// CheckCompat проверяет совместимость тройки версий.
func (c *Client) CheckCompat(req CompatCheckRequest) (*CompatResponse, error) {
	var result CompatResponse
	err := c.post("/api/v1/compat/check", req, &result)
	return &result, err
}

// --- Jobs ---

// GetJob возвращает задачу по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// EnqueueJob ставит ad-hoc задачу в указанную очередь.
func (c *Client) EnqueueJob(queueEndpoint string, payload any) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/"+queueEndpoint, payload, &job)
	return &job, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
