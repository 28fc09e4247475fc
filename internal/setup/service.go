package setup

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"billing-backend/internal/billruns"
)

// Answers is a partial update of session data; nil fields are left unchanged.
type Answers struct {
	Region *string
	Type   *string
	Year   *string
	Season *string
}

// Service manages setup sessions.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Create starts a new, empty session.
func (s *Service) Create(ctx context.Context) (Session, error) {
	if s == nil || s.Repo == nil {
		return Session{}, errors.New("setup service not configured")
	}
	now := s.now()
	session := Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	if strings.TrimSpace(id) == "" {
		return Session{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// Update merges answers into a session. Picking a type other than two-part
// tariff drops the year and season answers, and a year after the scheme
// cutover drops the season.
func (s *Service) Update(ctx context.Context, id string, answers Answers) (Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if answers.Region != nil {
		session.Data.Region = strings.TrimSpace(*answers.Region)
	}
	if answers.Type != nil {
		session.Data.Type = strings.TrimSpace(*answers.Type)
		if billruns.BatchType(session.Data.Type) != billruns.BatchTwoPartTariff {
			session.Data.Year = ""
			session.Data.Season = ""
		}
	}
	if answers.Year != nil {
		session.Data.Year = strings.TrimSpace(*answers.Year)
	}
	if answers.Season != nil {
		session.Data.Season = strings.TrimSpace(*answers.Season)
	}
	if year, err := strconv.Atoi(session.Data.Year); err == nil && year > billruns.PresrocCutoverYear {
		session.Data.Season = ""
	}
	session.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Delete removes a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}
