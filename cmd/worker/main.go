package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	amqp "github.com/rabbitmq/amqp091-go"

	"billing-backend/internal/bootstrap"
	"billing-backend/internal/queue"
	"billing-backend/internal/shared/config"
	"billing-backend/internal/shared/metrics"
	"billing-backend/internal/shared/telemetry"
	"billing-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 900
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := max(1, envInt("BILLING_WORKER_CONCURRENCY", defaultWorkerConcurrency))
	shutdownTimeout := time.Duration(envInt("BILLING_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	var wg sync.WaitGroup
	switch cfg.QueueBackend {
	case queue.BackendSQS:
		runSQS(ctx, cfg, app.Processor, concurrency, &wg)
	case queue.BackendRabbitMQ:
		runRabbit(ctx, cfg, app.Processor, concurrency, &wg)
	default:
		log.Fatalf("QUEUE_BACKEND must be sqs or rabbitmq for the worker, got %q", cfg.QueueBackend)
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func runSQS(ctx context.Context, cfg config.Config, processor workerproc.Processor, concurrency int, wg *sync.WaitGroup) {
	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("BILLING_SQS_QUEUE_URL is required")
	}
	visibilitySeconds := envInt("BILLING_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var client sqsAPI = sqs.NewFromConfig(awsCfg)

	sem := make(chan struct{}, concurrency)
	log.Printf("worker started backend=sqs queue=%s concurrency=%d visibility=%ds", queueURL, concurrency, visibilitySeconds)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}
			metrics.IncWorkerMessage(metrics.MessageReceived)
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, client, queueURL, processor, m)
			}(msg)
		}
	}
}

// handleMessage processes one SQS message. Successful and unrecoverable
// messages are deleted; failures stay on the queue for redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, processor workerproc.Processor, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.BillRunID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.billrun.invalid_message", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.BillRunID, decoded.RequestID) {
			metrics.IncWorkerMessage(metrics.MessageUnrecoverable)
		}
		return
	}

	telemetry.Info("worker.billrun.received", baseFields(msg, decoded.BillRunID, decoded.RequestID))

	if err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, decoded), processor, body); err != nil {
		fields := baseFields(msg, decoded.BillRunID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.billrun.failed", fields)
		metrics.IncWorkerMessage(metrics.MessageFailed)
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.BillRunID, decoded.RequestID) {
		telemetry.Info("worker.billrun.completed", baseFields(msg, decoded.BillRunID, decoded.RequestID))
		metrics.IncWorkerMessage(metrics.MessageCompleted)
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, billRunID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, billRunID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.billrun.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, billRunID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.billrun.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, billRunID, requestID string) map[string]any {
	fields := map[string]any{
		"bill_run_id":    billRunID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func runRabbit(ctx context.Context, cfg config.Config, processor workerproc.Processor, concurrency int, wg *sync.WaitGroup) {
	client, err := queue.NewRabbitClient(cfg.RabbitMQURL, cfg.RabbitMQQueue)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer client.Close()

	deliveries, err := client.Consume(concurrency)
	if err != nil {
		log.Fatalf("rabbitmq consume: %v", err)
	}

	sem := make(chan struct{}, concurrency)
	log.Printf("worker started backend=rabbitmq queue=%s concurrency=%d", cfg.RabbitMQQueue, concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Printf("rabbitmq delivery channel closed")
				return
			}
			select {
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			case sem <- struct{}{}:
			}
			metrics.IncWorkerMessage(metrics.MessageReceived)
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				handleDelivery(ctx, processor, d)
			}(d)
		}
	}
}

// handleDelivery acks successful and unrecoverable deliveries. A failed
// delivery is requeued once and dropped if it fails again.
func handleDelivery(ctx context.Context, processor workerproc.Processor, d amqp.Delivery) {
	body := string(d.Body)
	fields := map[string]any{
		"amqp_delivery_tag": d.DeliveryTag,
		"redelivered":       d.Redelivered,
	}
	if d.CorrelationId != "" {
		fields["request_id"] = d.CorrelationId
	}

	err := workerproc.HandleMessage(ctx, processor, body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			fields["error"] = ackErr.Error()
			telemetry.Error("worker.billrun.ack_failed", fields)
			return
		}
		telemetry.Info("worker.billrun.completed", fields)
		metrics.IncWorkerMessage(metrics.MessageCompleted)
	case workerproc.Unrecoverable(err):
		fields["error"] = err.Error()
		telemetry.Error("worker.billrun.invalid_message", fields)
		_ = d.Ack(false)
		metrics.IncWorkerMessage(metrics.MessageUnrecoverable)
	default:
		fields["error"] = err.Error()
		telemetry.Error("worker.billrun.failed", fields)
		_ = d.Nack(false, !d.Redelivered)
		metrics.IncWorkerMessage(metrics.MessageFailed)
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
