package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Payload-типы задач, приходящих из API-слоя или cron-триггеров.
// Все полностью сериализуемы: payload целиком живёт в сообщении очереди
// и в durable-зеркале задачи.

// WorkflowUpdateJob — пуш одного workflow-определения одному tenant.
type WorkflowUpdateJob struct {
	WorkspaceID  uuid.UUID       `json:"workspace_id"`
	WorkflowName string          `json:"workflow_name"`
	WorkflowJSON json.RawMessage `json:"workflow_json"`
	Version      string          `json:"version"`
	RolloutID    *uuid.UUID      `json:"rollout_id,omitempty"`
	WaveNumber   int             `json:"wave_number,omitempty"`
}

// SidecarUpdateJob — blue-green обновление sidecar одного tenant.
type SidecarUpdateJob struct {
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	DropletID   string     `json:"droplet_id"`
	FromVersion string     `json:"from_version"`
	ToVersion   string     `json:"to_version"`
	RolloutID   *uuid.UUID `json:"rollout_id,omitempty"`
	WaveNumber  int        `json:"wave_number,omitempty"`
}

// WakeReason — причина пробуждения droplet.
type WakeReason string

const (
	WakeReasonUserLogin         WakeReason = "user_login"
	WakeReasonScheduledCampaign WakeReason = "scheduled_campaign"
	WakeReasonAdminRequest      WakeReason = "admin_request"
	WakeReasonWatchdogRecovery  WakeReason = "watchdog_recovery"
)

// WakeDropletJob — пробуждение hibernated-инстанса.
type WakeDropletJob struct {
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	DropletID   string     `json:"droplet_id"`
	Reason      WakeReason `json:"reason"`
}

// Credential — один зашифрованный секрет для инъекции.
type Credential struct {
	Type          string `json:"type"`
	EncryptedData string `json:"encrypted_data"`
}

// CredentialInjectJob — пуш зашифрованных credentials в tenant.
type CredentialInjectJob struct {
	WorkspaceID uuid.UUID    `json:"workspace_id"`
	DropletID   string       `json:"droplet_id"`
	Credentials []Credential `json:"credentials"`
}

// RebootReason — причина принудительного power-cycle.
type RebootReason string

const (
	RebootReasonHeartbeatTimeout RebootReason = "watchdog_heartbeat_timeout"
	RebootReasonAdminRequest     RebootReason = "admin_request"
	RebootReasonZombieDetected   RebootReason = "zombie_detected"
)

// HardRebootJob — принудительный power-cycle через API провайдера.
type HardRebootJob struct {
	DropletID   string       `json:"droplet_id"`
	WorkspaceID uuid.UUID    `json:"workspace_id"`
	Reason      RebootReason `json:"reason"`

	// DowngradeTo — если задано, после ребута sidecar приводится к этой
	// версии (emergency rollback).
	DowngradeTo string `json:"downgrade_to,omitempty"`
}
