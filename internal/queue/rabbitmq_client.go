package queue

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

type rabbitChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// RabbitClient publishes and consumes jobs on a durable RabbitMQ queue.
type RabbitClient struct {
	conn  *amqp.Connection
	chn   rabbitChannel
	queue string
}

func newRabbitClient(chn rabbitChannel, queueName string) *RabbitClient {
	return &RabbitClient{chn: chn, queue: queueName}
}

// NewRabbitClient dials url and declares queueName.
func NewRabbitClient(url, queueName string) (*RabbitClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := chn.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare %s: %w", queueName, err)
	}
	client := newRabbitClient(chn, queueName)
	client.conn = conn
	return client, nil
}

// Send publishes a persistent JSON message.
func (r *RabbitClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode rabbitmq message: %w", err)
	}
	err = r.chn.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.RequestID,
		Body:          payload,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Consume starts delivering messages with manual acknowledgement. prefetch
// caps unacknowledged deliveries.
func (r *RabbitClient) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch > 0 {
		if err := r.chn.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("rabbitmq qos: %w", err)
		}
	}
	msgs, err := r.chn.Consume(r.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consume: %w", err)
	}
	return msgs, nil
}

// Close shuts the channel and connection.
func (r *RabbitClient) Close() error {
	if err := r.chn.Close(); err != nil {
		return err
	}
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

var _ Client = (*RabbitClient)(nil)
