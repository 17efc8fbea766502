package port

import (
	"context"
	"time"
)

// LockState is the cached lock snapshot for one session.
type LockState struct {
	Locked      bool
	LockedUntil *time.Time
}

// LockoutCache keeps a short-lived lock-state snapshot per session so the query
// side can answer status checks without hitting primary storage. A miss returns
// (nil, nil).
type LockoutCache interface {
	GetLockState(ctx context.Context, sessionID string) (*LockState, error)
	SetLockState(ctx context.Context, sessionID string, state LockState, ttl time.Duration) error
	Invalidate(ctx context.Context, sessionID string) error
}
