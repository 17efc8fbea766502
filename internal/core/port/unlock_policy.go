package port

import (
	"time"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
)

// UnlockPolicy decides whether an explicit unlock request may proceed. The
// predicate is injected into the command handler; the aggregate itself only
// mutates state.
type UnlockPolicy interface {
	AllowUnlock(session *domain.AuthenticationSession, requestedBy string, now time.Time) error
}
