package health

import (
	"context"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Queue    string `json:"queue"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB           Pinger
	QueueBackend string
	Timeout      time.Duration
}

// NewService constructs a new health service. db may be nil when running on
// in-memory repositories.
func NewService(db Pinger, queueBackend string) *Service {
	return &Service{DB: db, QueueBackend: queueBackend, Timeout: 2 * time.Second}
}

// Status checks the database, if any, and reports the queue backend.
func (s *Service) Status(ctx context.Context) Status {
	status := Status{OK: true, Database: "memory", Queue: s.QueueBackend}
	if status.Queue == "" {
		status.Queue = "none"
	}
	if s.DB == nil {
		return status
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		status.OK = false
		status.Database = "down"
		return status
	}
	status.Database = "up"
	return status
}
