package domain

import (
	"strings"
	"time"
)

// failedAttemptRiskPenalty is added to the base risk score of unsuccessful attempts.
const failedAttemptRiskPenalty = 30

// AuthenticationAttempt records a single authentication try against a session.
// Attempts are immutable once created; the persistence identifier is the only
// field assigned later, when the owning session is saved.
type AuthenticationAttempt struct {
	id          int64
	userID      string
	attemptedAt time.Time
	succeeded   bool
	clientIP    ClientIP
	riskLevel   RiskLevel
}

// NewAuthenticationAttempt validates inputs and builds an attempt.
func NewAuthenticationAttempt(userID string, attemptedAt time.Time, succeeded bool, clientIP ClientIP, riskLevel RiskLevel) (AuthenticationAttempt, error) {
	if strings.TrimSpace(userID) == "" {
		return AuthenticationAttempt{}, NewValidationError("user_id", "must not be blank")
	}
	if attemptedAt.IsZero() {
		return AuthenticationAttempt{}, NewValidationError("attempted_at", "must not be zero")
	}
	if clientIP.IsZero() {
		return AuthenticationAttempt{}, NewValidationError("client_ip", "must not be empty")
	}
	return AuthenticationAttempt{
		userID:      strings.TrimSpace(userID),
		attemptedAt: attemptedAt.UTC(),
		succeeded:   succeeded,
		clientIP:    clientIP,
		riskLevel:   riskLevel,
	}, nil
}

// RestoreAuthenticationAttempt rehydrates a persisted attempt, including its
// storage identifier. Used by repository adapters only.
func RestoreAuthenticationAttempt(id int64, userID string, attemptedAt time.Time, succeeded bool, clientIP ClientIP, riskLevel RiskLevel) (AuthenticationAttempt, error) {
	attempt, err := NewAuthenticationAttempt(userID, attemptedAt, succeeded, clientIP, riskLevel)
	if err != nil {
		return AuthenticationAttempt{}, err
	}
	attempt.id = id
	return attempt, nil
}

// ID returns the persistence identifier, zero until the attempt is saved.
func (a AuthenticationAttempt) ID() int64 { return a.id }

// UserID returns the identifier of the user who made the attempt.
func (a AuthenticationAttempt) UserID() string { return a.userID }

// AttemptedAt returns when the attempt occurred.
func (a AuthenticationAttempt) AttemptedAt() time.Time { return a.attemptedAt }

// Succeeded reports whether the credential check passed.
func (a AuthenticationAttempt) Succeeded() bool { return a.succeeded }

// ClientIP returns the source address of the attempt.
func (a AuthenticationAttempt) ClientIP() ClientIP { return a.clientIP }

// RiskLevel returns the base risk assessment for the attempt.
func (a AuthenticationAttempt) RiskLevel() RiskLevel { return a.riskLevel }

// AssignID records the persistence identifier after the first save. Assignment
// is one-shot; later calls are ignored.
func (a *AuthenticationAttempt) AssignID(id int64) {
	if a.id == 0 && id > 0 {
		a.id = id
	}
}

// WithinWindow reports whether the attempt happened at or after windowStart.
func (a AuthenticationAttempt) WithinWindow(windowStart time.Time) bool {
	return !a.attemptedAt.Before(windowStart)
}

// FromSameSource reports whether the attempt originated from the supplied address.
func (a AuthenticationAttempt) FromSameSource(ip ClientIP) bool {
	return a.clientIP.Equal(ip)
}

// RiskScore computes the effective score: the base risk level plus a fixed
// penalty for failed attempts, capped at RiskScoreMax.
func (a AuthenticationAttempt) RiskScore() int {
	score := a.riskLevel.Score()
	if !a.succeeded {
		score += failedAttemptRiskPenalty
	}
	if score > RiskScoreMax {
		score = RiskScoreMax
	}
	return score
}
