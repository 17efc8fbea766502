package port

import (
	"context"
	"time"
)

// FailedAttemptProjection is the read-optimised view of one failed attempt.
type FailedAttemptProjection struct {
	ID          int64
	SessionID   string
	UserID      string
	ClientIP    string
	AttemptedAt time.Time
	RiskScore   int
	RiskReason  string
}

// FailedAttemptsQuery retrieves time-ranged failed-attempt projections and counts.
type FailedAttemptsQuery interface {
	LoadFailedAttempts(ctx context.Context, sessionID string, from, to time.Time, limit int) ([]FailedAttemptProjection, error)
	LoadFailedAttemptsByUser(ctx context.Context, sessionID, userID string, from, to time.Time, limit int) ([]FailedAttemptProjection, error)
	CountFailedAttempts(ctx context.Context, sessionID string, from, to time.Time) (int, error)
	CountFailedAttemptsByUser(ctx context.Context, sessionID, userID string, from, to time.Time) (int, error)
}
