package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// Приоритеты сообщений в очередях задач.
// Рутинные задачи идут без приоритета; watchdog и emergency rollback
// публикуют выше, чтобы обгонять накопившуюся рутину.
const (
	PriorityRoutine   uint8 = 0
	PriorityWatchdog  uint8 = 7
	PriorityEmergency uint8 = 9
)

// JobMessage — конверт задачи в очереди.
//
// JobID ссылается на durable-зеркало в fleet_update_jobs;
// Payload — сериализованный payload конкретного типа задачи.
type JobMessage struct {
	// JobID — идентификатор durable-записи задачи.
	JobID uuid.UUID `json:"job_id"`

	// Queue — имя очереди (для логов и DLQ-разбора).
	Queue domain.QueueName `json:"queue"`

	// Payload — payload задачи.
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует задачи в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// PublishJob публикует задачу в её очередь с заданным приоритетом.
// payload сериализуется в конверт JobMessage.
func (p *Publisher) PublishJob(ctx context.Context, queue domain.QueueName, jobID uuid.UUID, payload any, priority uint8) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := JobMessage{
		JobID:     jobID,
		Queue:     queue,
		Payload:   body,
		Timestamp: time.Now(),
	}

	envelope, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal job message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeJobs),            // exchange
			string(JobRoutingKey(queue)),    // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    jobID.String(),
				Priority:     priority,
				Timestamp:    msg.Timestamp,
				Body:         envelope,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeJobs, queue, err)
		}

		p.logger.Debug("published job",
			"queue", queue,
			"job_id", jobID,
			"priority", priority,
		)

		return nil
	})
}

// ParseJobMessage парсит тело сообщения в конверт задачи.
func ParseJobMessage(body []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal job message: %w", err)
	}
	return &msg, nil
}

// ParsePayload парсит payload конверта в конкретный тип задачи.
func ParsePayload[T any](msg *JobMessage) (T, error) {
	var result T
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
