package port

import (
	"context"
	"time"
)

// SessionStatusProjection is the read-optimised view of one session's lock state.
type SessionStatusProjection struct {
	SessionID      string
	UserID         string
	Locked         bool
	LockedUntil    *time.Time
	FailedAttempts int
	MaxRiskScore   int
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// SessionStatusQuery loads session status projections from read-side storage.
type SessionStatusQuery interface {
	LoadSessionStatus(ctx context.Context, sessionID string) (*SessionStatusProjection, error)
	LoadSessionStatusByUser(ctx context.Context, sessionID, userID string) (*SessionStatusProjection, error)
}
