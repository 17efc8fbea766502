package usecase

import (
	"strings"
	"time"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
)

// RecordAuthenticationAttemptCommand carries one authentication outcome to record.
type RecordAuthenticationAttemptCommand struct {
	SessionID   string
	UserID      string
	ClientIP    string
	Succeeded   bool
	RiskScore   int
	RiskReason  string
	AttemptedAt time.Time
	// CreateIfMissing provisions the session on the fly instead of failing
	// with ErrSessionNotFound. Used by callers that record the very first
	// attempt for a session.
	CreateIfMissing bool
}

// Validate checks the command shape before any port is touched.
func (c RecordAuthenticationAttemptCommand) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return domain.NewValidationError("session_id", "must not be blank")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return domain.NewValidationError("user_id", "must not be blank")
	}
	if strings.TrimSpace(c.ClientIP) == "" {
		return domain.NewValidationError("client_ip", "must not be blank")
	}
	if c.RiskScore < domain.RiskScoreMin || c.RiskScore > domain.RiskScoreMax {
		return domain.NewValidationError("risk_score", "out of range")
	}
	return nil
}

// UnlockAccountCommand requests an explicit unlock of a locked session.
type UnlockAccountCommand struct {
	SessionID   string
	UserID      string
	RequestedBy string
	Reason      string
}

// Validate checks the command shape before any port is touched.
func (c UnlockAccountCommand) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return domain.NewValidationError("session_id", "must not be blank")
	}
	if strings.TrimSpace(c.RequestedBy) == "" {
		return domain.NewValidationError("requested_by", "must not be blank")
	}
	return nil
}

// EnsureSessionCommand provisions the aggregate for a (session, user) pair ahead
// of its first recorded attempt.
type EnsureSessionCommand struct {
	SessionID string
	UserID    string
}

// Validate checks the command shape before any port is touched.
func (c EnsureSessionCommand) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return domain.NewValidationError("session_id", "must not be blank")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return domain.NewValidationError("user_id", "must not be blank")
	}
	return nil
}
