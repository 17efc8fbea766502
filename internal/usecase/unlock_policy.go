package usecase

import (
	"fmt"
	"time"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
)

// AllowAllUnlockPolicy permits every explicit unlock request.
type AllowAllUnlockPolicy struct{}

// AllowUnlock always succeeds.
func (AllowAllUnlockPolicy) AllowUnlock(_ *domain.AuthenticationSession, _ string, _ time.Time) error {
	return nil
}

// MinimumLockTimeUnlockPolicy rejects manual unlocks until the lock has been in
// place for at least MinLocked. The lock start is derived from the lock expiry
// and the session's configured lock duration.
type MinimumLockTimeUnlockPolicy struct {
	MinLocked time.Duration
}

// AllowUnlock enforces the minimum elapsed lock time.
func (p MinimumLockTimeUnlockPolicy) AllowUnlock(session *domain.AuthenticationSession, _ string, now time.Time) error {
	if p.MinLocked <= 0 || session == nil {
		return nil
	}
	until := session.LockedUntil()
	if until == nil {
		return nil
	}
	lockedAt := until.Add(-session.Policy().LockDuration)
	elapsed := now.Sub(lockedAt)
	if elapsed < p.MinLocked {
		return fmt.Errorf("lock held for %s, minimum before manual unlock is %s", elapsed.Truncate(time.Second), p.MinLocked)
	}
	return nil
}
