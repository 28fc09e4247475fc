package workerproc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"billing-backend/internal/engine/current"
	"billing-backend/internal/queue"
)

type fakeProcessor struct {
	ids []string
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, billRunID string) error {
	_ = ctx
	f.ids = append(f.ids, billRunID)
	return f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	raw, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestParseMessage(t *testing.T) {
	if _, _, err := ParseMessage("  "); !Unrecoverable(err) {
		t.Fatalf("expected unrecoverable empty body, got %v", err)
	}
	_, meta, err := ParseMessage("{bad-json")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) || meta.BodySHA == "" || meta.BodyLen != 9 {
		t.Fatalf("expected decode error with meta, got %v %+v", err, meta)
	}
	_, _, err = ParseMessage(`{"requestId":"req-1"}`)
	var missing ErrMissingBillRunID
	if !errors.As(err, &missing) || missing.RequestID != "req-1" {
		t.Fatalf("expected missing id error, got %v", err)
	}
	msg, _, err := ParseMessage(encode(t, queue.Message{BillRunID: "run-1"}))
	if err != nil || msg.BillRunID != "run-1" {
		t.Fatalf("unexpected parse: %+v %v", msg, err)
	}
}

func TestHandleMessage(t *testing.T) {
	proc := &fakeProcessor{}
	body := encode(t, queue.Message{BillRunID: "run-1", RequestID: "req-1"})
	if err := HandleMessage(context.Background(), proc, body); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(proc.ids) != 1 || proc.ids[0] != "run-1" {
		t.Fatalf("unexpected calls: %v", proc.ids)
	}
}

func TestHandleMessageUsesParsedMessage(t *testing.T) {
	proc := &fakeProcessor{}
	ctx := WithParsedMessage(context.Background(), queue.Message{BillRunID: "run-2"})
	if err := HandleMessage(ctx, proc, "ignored"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(proc.ids) != 1 || proc.ids[0] != "run-2" {
		t.Fatalf("unexpected calls: %v", proc.ids)
	}
}

func TestHandleMessageErrors(t *testing.T) {
	boom := errors.New("boom")
	proc := &fakeProcessor{err: boom}
	body := encode(t, queue.Message{BillRunID: "run-1"})

	err := HandleMessage(context.Background(), proc, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.BillRunID != "run-1" || !errors.Is(err, boom) {
		t.Fatalf("expected process error, got %v", err)
	}
	if Unrecoverable(err) {
		t.Fatalf("processing failures must be retried")
	}

	proc.err = fmt.Errorf("%w: run-1", current.ErrNotQueued)
	if err := HandleMessage(context.Background(), proc, body); err != nil {
		t.Fatalf("expected redelivery to be acknowledged, got %v", err)
	}

	if err := HandleMessage(context.Background(), nil, body); err == nil {
		t.Fatalf("expected error without processor")
	}
}
