package queue

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeMessageReadsWireNames(t *testing.T) {
	payload := []byte(`{"billRunId":"run-123","requestId":"request-456","enqueuedAt":"2025-05-01T09:00:00Z","version":1}`)

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.BillRunID != "run-123" || got.RequestID != "request-456" || got.Version != MessageVersion {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestDecodeMessageRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not-json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDecodeMessageVersions(t *testing.T) {
	got, err := DecodeMessage([]byte(`{"billRunId":"run-1"}`))
	if err != nil || got.Version != MessageVersion {
		t.Fatalf("expected unversioned payload to read as v%d, got %+v %v", MessageVersion, got, err)
	}
	if _, err := DecodeMessage([]byte(`{"billRunId":"run-1","version":2}`)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2025, time.May, 1, 10, 30, 0, 0, time.FixedZone("BST", 3600))
	msg := NewMessage("run-1", "req-1", at)
	if msg.EnqueuedAt != "2025-05-01T09:30:00Z" || msg.Version != MessageVersion {
		t.Fatalf("unexpected message: %+v", msg)
	}
}
