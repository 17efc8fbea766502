package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LockoutPolicy configures the sliding-window lockout rules applied by a session.
type LockoutPolicy struct {
	// Window is the trailing duration within which failed attempts count toward the threshold.
	Window time.Duration
	// MaxFailedAttempts is the number of in-window failures that triggers a lock.
	MaxFailedAttempts int
	// LockDuration is how long a triggered lock lasts.
	LockDuration time.Duration
}

// DefaultLockoutPolicy returns the standard 5-failures-in-15-minutes, 30-minute-lock policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Window:            15 * time.Minute,
		MaxFailedAttempts: 5,
		LockDuration:      30 * time.Minute,
	}
}

// Normalized fills zero fields with the defaults so an incomplete policy never
// disables lockout enforcement.
func (p LockoutPolicy) Normalized() LockoutPolicy {
	defaults := DefaultLockoutPolicy()
	if p.Window <= 0 {
		p.Window = defaults.Window
	}
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = defaults.MaxFailedAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = defaults.LockDuration
	}
	return p
}

// AuthenticationSession is the aggregate root owning the attempt history and
// lock state for one authentication context. It is not safe for concurrent use;
// the repository serialises access per session identifier.
type AuthenticationSession struct {
	id             SessionID
	userID         string
	attempts       []AuthenticationAttempt // most recent first
	lockedUntil    *time.Time
	createdAt      time.Time
	lastActivityAt time.Time
	version        int64
	policy         LockoutPolicy

	pending []Event
}

// NewAuthenticationSession creates the aggregate for a new (session, user) pair.
func NewAuthenticationSession(id SessionID, userID string, createdAt time.Time, policy LockoutPolicy) (*AuthenticationSession, error) {
	if id.IsZero() {
		return nil, NewValidationError("session_id", "must not be zero")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, NewValidationError("user_id", "must not be blank")
	}
	if createdAt.IsZero() {
		return nil, NewValidationError("created_at", "must not be zero")
	}
	return &AuthenticationSession{
		id:             id,
		userID:         strings.TrimSpace(userID),
		createdAt:      createdAt.UTC(),
		lastActivityAt: createdAt.UTC(),
		policy:         policy.Normalized(),
	}, nil
}

// RestoreAuthenticationSession rehydrates a persisted aggregate. Attempts must be
// supplied most-recent-first; repository adapters are responsible for the ordering.
func RestoreAuthenticationSession(id SessionID, userID string, attempts []AuthenticationAttempt, lockedUntil *time.Time, createdAt, lastActivityAt time.Time, version int64, policy LockoutPolicy) (*AuthenticationSession, error) {
	session, err := NewAuthenticationSession(id, userID, createdAt, policy)
	if err != nil {
		return nil, err
	}
	session.attempts = append(session.attempts, attempts...)
	if lockedUntil != nil {
		until := lockedUntil.UTC()
		session.lockedUntil = &until
	}
	if !lastActivityAt.IsZero() {
		session.lastActivityAt = lastActivityAt.UTC()
	}
	session.version = version
	return session, nil
}

// ID returns the session identifier.
func (s *AuthenticationSession) ID() SessionID { return s.id }

// UserID returns the primary user bound to this session.
func (s *AuthenticationSession) UserID() string { return s.userID }

// CreatedAt returns when the session was first created.
func (s *AuthenticationSession) CreatedAt() time.Time { return s.createdAt }

// LastActivityAt returns the timestamp of the most recent recorded activity.
func (s *AuthenticationSession) LastActivityAt() time.Time { return s.lastActivityAt }

// Version returns the optimistic-concurrency counter maintained by the repository.
func (s *AuthenticationSession) Version() int64 { return s.version }

// Policy returns the lockout policy applied by this session.
func (s *AuthenticationSession) Policy() LockoutPolicy { return s.policy }

// Attempts returns a copy of the attempt history, most recent first.
func (s *AuthenticationSession) Attempts() []AuthenticationAttempt {
	out := make([]AuthenticationAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

// LockedUntil returns a copy of the lock expiry, or nil when the session has
// never been locked or the lock was cleared.
func (s *AuthenticationSession) LockedUntil() *time.Time {
	if s.lockedUntil == nil {
		return nil
	}
	until := *s.lockedUntil
	return &until
}

// IsLocked reports whether the session is locked at the supplied moment.
// An elapsed lock counts as unlocked even before it is explicitly cleared.
func (s *AuthenticationSession) IsLocked(at time.Time) bool {
	return s.lockedUntil != nil && at.Before(*s.lockedUntil)
}

// FailedAttemptsWithinWindow counts failures inside the trailing policy window
// ending at the supplied moment. Attempts are ordered most-recent-first, so the
// scan stops at the first attempt outside the window.
func (s *AuthenticationSession) FailedAttemptsWithinWindow(at time.Time) int {
	windowStart := at.Add(-s.policy.Window)
	count := 0
	for _, attempt := range s.attempts {
		if !attempt.WithinWindow(windowStart) {
			break
		}
		if !attempt.Succeeded() {
			count++
		}
	}
	return count
}

// AttemptOutcome describes the effect of recording one attempt.
type AttemptOutcome struct {
	// Authenticated reports whether the attempt is credited as a successful
	// authentication. A correct credential presented while locked is not credited.
	Authenticated bool
	// Locked reports the lock state after the attempt was applied.
	Locked bool
	// LockedUntil carries the lock expiry when Locked is true.
	LockedUntil *time.Time
	// FailedAttempts is the in-window failure count after the attempt.
	FailedAttempts int
	// RiskScore is the effective score of the recorded attempt.
	RiskScore int
}

// RecordAttempt inserts the attempt in timestamp order, refreshes activity
// metadata, and re-evaluates the lockout policy. A lock that has expired by the
// evaluation time is cleared first. Crossing the failure threshold locks the
// session and stages an AccountLockedEvent exactly once for the transition.
func (s *AuthenticationSession) RecordAttempt(attempt AuthenticationAttempt) (AttemptOutcome, error) {
	if attempt.AttemptedAt().IsZero() {
		return AttemptOutcome{}, NewValidationError("attempted_at", "must not be zero")
	}

	now := attempt.AttemptedAt()
	if now.After(s.lastActivityAt) {
		s.lastActivityAt = now
	}
	// A backdated attempt is evaluated at the session's latest activity, not
	// at its own stale timestamp; the sliding window always trails the
	// newest attempt.
	evalAt := s.lastActivityAt

	s.expireLock(evalAt)
	lockedBefore := s.IsLocked(evalAt)

	s.insertAttempt(attempt)

	s.stageEvent(AttemptRecordedEvent{
		EventID:   uuid.NewString(),
		SessionID: s.id.String(),
		UserID:    attempt.UserID(),
		ClientIP:  attempt.ClientIP().String(),
		Succeeded: attempt.Succeeded(),
		RiskScore: attempt.RiskScore(),
		At:        now,
	})

	failed := s.FailedAttemptsWithinWindow(evalAt)

	if !lockedBefore && !attempt.Succeeded() && failed >= s.policy.MaxFailedAttempts {
		until := evalAt.Add(s.policy.LockDuration)
		s.lockedUntil = &until

		event, err := NewAccountLockedEvent(uuid.NewString(), s.id.String(), attempt.UserID(), attempt.ClientIP().String(), until, failed, evalAt)
		if err != nil {
			return AttemptOutcome{}, err
		}
		s.stageEvent(event)
	}

	outcome := AttemptOutcome{
		Authenticated:  attempt.Succeeded() && !s.IsLocked(evalAt),
		Locked:         s.IsLocked(evalAt),
		LockedUntil:    s.LockedUntil(),
		FailedAttempts: failed,
		RiskScore:      attempt.RiskScore(),
	}
	return outcome, nil
}

// Unlock clears the lock unconditionally. Returns true when the session
// transitioned from locked to unlocked; unlocking an unlocked session is a no-op.
func (s *AuthenticationSession) Unlock(at time.Time, unlockedBy, reason string) bool {
	if s.lockedUntil == nil {
		return false
	}
	wasLocked := s.IsLocked(at)
	s.lockedUntil = nil
	if at.After(s.lastActivityAt) {
		s.lastActivityAt = at.UTC()
	}
	if !wasLocked {
		// Lock had already expired; clearing it is bookkeeping, not a transition.
		return false
	}

	s.stageEvent(AccountUnlockedEvent{
		EventID:    uuid.NewString(),
		SessionID:  s.id.String(),
		UserID:     s.userID,
		UnlockedBy: strings.TrimSpace(unlockedBy),
		Reason:     strings.TrimSpace(reason),
		At:         at.UTC(),
	})
	return true
}

// DrainEvents returns the staged domain events and clears the pending list.
// Handlers call this after a successful save and hand the result to the publisher.
func (s *AuthenticationSession) DrainEvents() []Event {
	if len(s.pending) == 0 {
		return nil
	}
	drained := s.pending
	s.pending = nil
	return drained
}

// insertAttempt places the attempt by timestamp so the most-recent-first order
// holds even when callers supply a backdated attemptedAt. The window scan in
// FailedAttemptsWithinWindow relies on that ordering to stop early.
func (s *AuthenticationSession) insertAttempt(attempt AuthenticationAttempt) {
	idx := 0
	for idx < len(s.attempts) && s.attempts[idx].AttemptedAt().After(attempt.AttemptedAt()) {
		idx++
	}
	s.attempts = slices.Insert(s.attempts, idx, attempt)
}

func (s *AuthenticationSession) stageEvent(event Event) {
	s.pending = append(s.pending, event)
}

func (s *AuthenticationSession) expireLock(at time.Time) {
	if s.lockedUntil != nil && !at.Before(*s.lockedUntil) {
		s.lockedUntil = nil
	}
}
