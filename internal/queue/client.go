package queue

import "context"

// Backend names accepted by QUEUE_BACKEND.
const (
	BackendNone     = "none"
	BackendSQS      = "sqs"
	BackendRabbitMQ = "rabbitmq"
)

// Client hands current engine jobs to a worker. Send returns once the
// backend has accepted the message; delivery is at least once, so consumers
// must tolerate duplicates.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
