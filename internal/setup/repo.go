package setup

import "context"

// Repo defines persistence operations for setup sessions.
type Repo interface {
	Create(ctx context.Context, session Session) error
	GetByID(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, session Session) error
	Delete(ctx context.Context, id string) error
}
