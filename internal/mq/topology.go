package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/nishchith-m10/fleet-control-plane/internal/domain"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeJobs — задачи пяти очередей обновлений.
	ExchangeJobs Exchange = "fleet.jobs"

	// ExchangeHeartbeat — per-tenant heartbeat каналы.
	// Topic exchange: droplet публикует в heartbeat.<workspace_id>,
	// processor подписан wildcard-паттерном heartbeat.*.
	ExchangeHeartbeat Exchange = "fleet.heartbeat"

	// ExchangeDLQ — dead letter queue.
	ExchangeDLQ Exchange = "fleet.dlq"
)

// Служебные очереди (помимо пяти очередей задач из domain.AllQueues).
const (
	// QueueHeartbeatIngest — единая точка потребления heartbeat'ов.
	QueueHeartbeatIngest Queue = "heartbeat.ingest"

	// QueueDLQJobs — сама DLQ очередь.
	QueueDLQJobs Queue = "dlq.jobs"
)

// Routing keys.
const (
	// RoutingKeyHeartbeatWildcard — wildcard подписка на все tenants.
	// Droplet публикует свои heartbeat'ы с ключом heartbeat.<workspace_id>.
	RoutingKeyHeartbeatWildcard RoutingKey = "heartbeat.*"

	// RoutingKeyDLQJobs — ключ DLQ.
	RoutingKeyDLQJobs RoutingKey = "jobs"
)

// maxJobPriority — верхняя граница приоритета сообщений в очередях задач.
// Emergency-задачи публикуются с приоритетом выше рутинных.
const maxJobPriority = 9

// JobRoutingKey возвращает ключ маршрутизации очереди задач.
// Каждая из пяти очередей привязана к fleet.jobs своим именем.
func JobRoutingKey(queue domain.QueueName) RoutingKey {
	return RoutingKey(queue)
}

// SetupTopology объявляет exchanges, очереди и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeJobs, "direct"},
		{ExchangeHeartbeat, "topic"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Очереди задач: DLQ после исчерпания retry + поддержка приоритетов.
	jobArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
		"x-max-priority":            int32(maxJobPriority),
	}

	for _, q := range domain.AllQueues {
		_, err := ch.QueueDeclare(
			string(q), // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			jobArgs,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	// Служебные очереди без приоритетов и DLQ.
	plain := []Queue{QueueHeartbeatIngest, QueueDLQJobs}
	for _, q := range plain {
		_, err := ch.QueueDeclare(
			string(q), // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			nil,       // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	for _, q := range domain.AllQueues {
		err := ch.QueueBind(
			string(q),                 // queue name
			string(JobRoutingKey(q)),  // routing key
			string(ExchangeJobs),      // exchange
			false,                     // no-wait
			nil,                       // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}

	// Heartbeat: wildcard на все per-tenant ключи.
	err := ch.QueueBind(
		string(QueueHeartbeatIngest),
		string(RoutingKeyHeartbeatWildcard),
		string(ExchangeHeartbeat),
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind heartbeat queue: %w", err)
	}

	err = ch.QueueBind(
		string(QueueDLQJobs),
		string(RoutingKeyDLQJobs),
		string(ExchangeDLQ),
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind dlq queue: %w", err)
	}

	return nil
}
