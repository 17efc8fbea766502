package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
)

// Repositories bundles the PostgreSQL-backed adapters sharing one pool.
type Repositories struct {
	Sessions       *SessionRepository
	SessionStatus  *SessionStatusQueryRepository
	FailedAttempts *FailedAttemptsQueryRepository
}

// NewRepositories wires all adapters against the provided pool. The lockout
// policy is needed to rehydrate aggregates with their configured window.
func NewRepositories(pool *pgxpool.Pool, policy domain.LockoutPolicy) *Repositories {
	return &Repositories{
		Sessions:       NewSessionRepository(pool, policy),
		SessionStatus:  NewSessionStatusQueryRepository(pool, policy),
		FailedAttempts: NewFailedAttemptsQueryRepository(pool),
	}
}
