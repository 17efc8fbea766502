package port

import (
	"context"
	"time"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
)

// SessionRepository deals with authentication session storage. Implementations
// serialise access per session identifier: concurrent saves of the same session
// must surface a conflict rather than silently merging attempt histories.
type SessionRepository interface {
	FindBySessionID(ctx context.Context, id domain.SessionID) (*domain.AuthenticationSession, error)
	// Save persists the aggregate and returns it with assigned attempt
	// identifiers and a bumped version.
	Save(ctx context.Context, session *domain.AuthenticationSession) (*domain.AuthenticationSession, error)
	Delete(ctx context.Context, id domain.SessionID) error
	// DeleteOlderThan removes sessions whose last activity predates the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
