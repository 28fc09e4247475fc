package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageVersion is the current job payload version.
const MessageVersion = 1

// ErrUnsupportedVersion is returned for payloads newer than this build.
var ErrUnsupportedVersion = errors.New("unsupported message version")

// Message is the current engine job handed to the worker.
type Message struct {
	BillRunID  string `json:"billRunId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage builds a job for billRunID stamped with the current version.
func NewMessage(billRunID, requestID string, enqueuedAt time.Time) Message {
	return Message{
		BillRunID:  billRunID,
		RequestID:  requestID,
		EnqueuedAt: enqueuedAt.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Payloads without a
// version are read as version 1.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.Version)
	}
	return msg, nil
}
