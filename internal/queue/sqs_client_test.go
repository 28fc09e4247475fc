package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSSender struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m1")}, nil
}

func TestSQSClientSendEncodesMessage(t *testing.T) {
	fake := &fakeSQSSender{}
	client := newSQSClient(fake, "https://sqs.local/jobs")

	if err := client.Send(context.Background(), Message{BillRunID: "run-1", RequestID: "req-1", Version: MessageVersion}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(fake.input.QueueUrl) != "https://sqs.local/jobs" {
		t.Fatalf("unexpected queue url %q", aws.ToString(fake.input.QueueUrl))
	}
	decoded, err := DecodeMessage([]byte(aws.ToString(fake.input.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.BillRunID != "run-1" {
		t.Fatalf("unexpected bill run id %q", decoded.BillRunID)
	}
	if aws.ToString(fake.input.MessageAttributes["requestId"].StringValue) != "req-1" {
		t.Fatalf("expected requestId attribute")
	}
	if fake.input.MessageGroupId != nil {
		t.Fatalf("standard queues must not set a message group")
	}
}

func TestSQSClientFIFOGroupsByBillRun(t *testing.T) {
	fake := &fakeSQSSender{}
	client := newSQSClient(fake, "https://sqs.local/jobs.fifo")

	if err := client.Send(context.Background(), Message{BillRunID: "run-7"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(fake.input.MessageGroupId) != "run-7" || aws.ToString(fake.input.MessageDeduplicationId) != "run-7" {
		t.Fatalf("unexpected fifo ids: %+v", fake.input)
	}
	if _, ok := fake.input.MessageAttributes["requestId"]; ok {
		t.Fatalf("empty request id must not be sent")
	}
}

func TestSQSClientSendWrapsError(t *testing.T) {
	sendErr := errors.New("throttled")
	client := newSQSClient(&fakeSQSSender{err: sendErr}, "q")

	err := client.Send(context.Background(), Message{BillRunID: "run-1"})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSQSClientRequiresQueueURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "eu-west-2", " "); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
}
