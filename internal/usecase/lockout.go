package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
	"github.com/arklim/social-platform-lockout/internal/repository"
)

var (
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnlockNotAllowed indicates the unlock policy rejected an explicit unlock request.
	ErrUnlockNotAllowed = errors.New("unlock not allowed")
)

// LockStatus reports the current lock state of a session.
type LockStatus struct {
	SessionID      string
	UserID         string
	Locked         bool
	LockedUntil    *time.Time
	FailedAttempts int
}

// RecordAttemptResult describes the effect of recording one authentication attempt.
type RecordAttemptResult struct {
	SessionID      string
	Authenticated  bool
	AccountLocked  bool
	LockedUntil    *time.Time
	FailedAttempts int
	RiskScore      int
}

// UnlockResult describes the outcome of an explicit unlock request.
type UnlockResult struct {
	SessionID string
	Unlocked  bool
}

// LockoutService coordinates lockout checks, attempt recording, and unlocks
// against the session aggregate.
type LockoutService struct {
	sessions     port.SessionRepository
	events       port.EventPublisher
	unlockPolicy port.UnlockPolicy
	cache        port.LockoutCache
	cacheTTL     time.Duration
	policy       domain.LockoutPolicy
	logger       *zap.Logger
	now          func() time.Time
}

// NewLockoutService constructs a LockoutService with the default lockout policy.
func NewLockoutService(sessions port.SessionRepository, events port.EventPublisher, logger *zap.Logger) *LockoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &LockoutService{
		sessions:     sessions,
		events:       events,
		unlockPolicy: AllowAllUnlockPolicy{},
		policy:       domain.DefaultLockoutPolicy(),
		logger:       logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *LockoutService) WithClock(clock func() time.Time) *LockoutService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithPolicy overrides the lockout policy applied to newly provisioned sessions.
func (s *LockoutService) WithPolicy(policy domain.LockoutPolicy) *LockoutService {
	s.policy = policy.Normalized()
	return s
}

// WithUnlockPolicy injects the predicate consulted before explicit unlocks.
func (s *LockoutService) WithUnlockPolicy(policy port.UnlockPolicy) *LockoutService {
	if policy != nil {
		s.unlockPolicy = policy
	}
	return s
}

// WithLockoutCache injects a cache that mirrors lock state after each mutation.
func (s *LockoutService) WithLockoutCache(cache port.LockoutCache, ttl time.Duration) *LockoutService {
	if cache != nil {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
		if s.cacheTTL <= 0 {
			s.cacheTTL = 5 * time.Minute
		}
	}
	return s
}

// CheckLockout returns the current lock status of a session. A non-empty
// userID must match the session's owner; a mismatch reports the session as
// not found, the same answer an unknown session gives. The call is
// read-only: an elapsed lock is reported as unlocked without persisting the
// cleared state, so repeated checks never mutate storage.
func (s *LockoutService) CheckLockout(ctx context.Context, sessionID, userID string) (LockStatus, error) {
	session, err := s.fetchSession(ctx, sessionID)
	if err != nil {
		return LockStatus{}, err
	}
	if userID != "" && session.UserID() != userID {
		return LockStatus{}, ErrSessionNotFound
	}

	now := s.now()
	status := LockStatus{
		SessionID:      session.ID().String(),
		UserID:         session.UserID(),
		Locked:         session.IsLocked(now),
		FailedAttempts: session.FailedAttemptsWithinWindow(now),
	}
	if status.Locked {
		status.LockedUntil = session.LockedUntil()
	}
	return status, nil
}

// RecordAttempt appends a new attempt to the session, applies the lockout
// policy, persists the aggregate, and publishes the staged domain events.
func (s *LockoutService) RecordAttempt(ctx context.Context, cmd RecordAuthenticationAttemptCommand) (RecordAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return RecordAttemptResult{}, err
	}

	clientIP, err := domain.NewClientIP(cmd.ClientIP)
	if err != nil {
		return RecordAttemptResult{}, err
	}
	riskLevel, err := domain.NewRiskLevel(cmd.RiskScore, cmd.RiskReason)
	if err != nil {
		return RecordAttemptResult{}, err
	}

	attemptedAt := cmd.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = s.now()
	}

	attempt, err := domain.NewAuthenticationAttempt(cmd.UserID, attemptedAt, cmd.Succeeded, clientIP, riskLevel)
	if err != nil {
		return RecordAttemptResult{}, err
	}

	session, err := s.fetchSession(ctx, cmd.SessionID)
	if err != nil {
		if !cmd.CreateIfMissing || !errors.Is(err, ErrSessionNotFound) {
			return RecordAttemptResult{}, err
		}
		id, parseErr := domain.ParseSessionID(cmd.SessionID)
		if parseErr != nil {
			return RecordAttemptResult{}, parseErr
		}
		session, err = domain.NewAuthenticationSession(id, cmd.UserID, attemptedAt, s.policy)
		if err != nil {
			return RecordAttemptResult{}, err
		}
	}

	outcome, err := session.RecordAttempt(attempt)
	if err != nil {
		return RecordAttemptResult{}, err
	}

	saved, err := s.sessions.Save(ctx, session)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return RecordAttemptResult{}, fmt.Errorf("concurrent update on session %s: %w", cmd.SessionID, err)
		}
		return RecordAttemptResult{}, fmt.Errorf("save session: %w", err)
	}

	s.publishEvents(ctx, session.DrainEvents())
	s.cacheLockState(ctx, saved)

	return RecordAttemptResult{
		SessionID:      saved.ID().String(),
		Authenticated:  outcome.Authenticated,
		AccountLocked:  outcome.Locked,
		LockedUntil:    outcome.LockedUntil,
		FailedAttempts: outcome.FailedAttempts,
		RiskScore:      outcome.RiskScore,
	}, nil
}

// UnlockAccount clears the lock on a session after consulting the unlock policy.
// Unlocking an already-unlocked session is a no-op success.
func (s *LockoutService) UnlockAccount(ctx context.Context, cmd UnlockAccountCommand) (UnlockResult, error) {
	if err := cmd.Validate(); err != nil {
		return UnlockResult{}, err
	}

	session, err := s.fetchSession(ctx, cmd.SessionID)
	if err != nil {
		return UnlockResult{}, err
	}

	now := s.now()
	if session.IsLocked(now) {
		if policyErr := s.unlockPolicy.AllowUnlock(session, cmd.RequestedBy, now); policyErr != nil {
			return UnlockResult{}, fmt.Errorf("%w: %s", ErrUnlockNotAllowed, policyErr.Error())
		}
	}

	hadLockValue := session.LockedUntil() != nil
	changed := session.Unlock(now, cmd.RequestedBy, cmd.Reason)
	if !changed && !hadLockValue {
		// Nothing to persist; the session was already unlocked.
		return UnlockResult{SessionID: session.ID().String(), Unlocked: false}, nil
	}

	saved, err := s.sessions.Save(ctx, session)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return UnlockResult{}, fmt.Errorf("concurrent update on session %s: %w", cmd.SessionID, err)
		}
		return UnlockResult{}, fmt.Errorf("save session: %w", err)
	}

	s.publishEvents(ctx, session.DrainEvents())
	s.cacheLockState(ctx, saved)

	return UnlockResult{SessionID: saved.ID().String(), Unlocked: changed}, nil
}

// EnsureSession loads the aggregate for the pair, creating it when absent.
func (s *LockoutService) EnsureSession(ctx context.Context, cmd EnsureSessionCommand) (*domain.AuthenticationSession, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := domain.ParseSessionID(cmd.SessionID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.FindBySessionID(ctx, id)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find session: %w", err)
	}

	created, err := domain.NewAuthenticationSession(id, cmd.UserID, s.now(), s.policy)
	if err != nil {
		return nil, err
	}

	saved, err := s.sessions.Save(ctx, created)
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("session provisioned",
		zap.String("session_id", saved.ID().String()),
		zap.String("user_id", saved.UserID()),
	)
	return saved, nil
}

// PurgeInactiveSessions deletes sessions whose last activity predates the cutoff.
// Retention is an operational concern; the core only exposes the operation.
func (s *LockoutService) PurgeInactiveSessions(ctx context.Context, cutoff time.Time) (int, error) {
	if cutoff.IsZero() {
		return 0, domain.NewValidationError("cutoff", "must not be zero")
	}

	deleted, err := s.sessions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("inactive sessions purged",
			zap.Int("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}

func (s *LockoutService) fetchSession(ctx context.Context, sessionID string) (*domain.AuthenticationSession, error) {
	id, err := domain.ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.FindBySessionID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

func (s *LockoutService) publishEvents(ctx context.Context, events []domain.Event) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.PublishAll(ctx, events); err != nil {
		s.logger.Warn("publish lockout events failed", zap.Int("count", len(events)), zap.Error(err))
	}
}

func (s *LockoutService) cacheLockState(ctx context.Context, session *domain.AuthenticationSession) {
	if s.cache == nil || session == nil {
		return
	}
	now := s.now()
	state := port.LockState{Locked: session.IsLocked(now)}
	if state.Locked {
		state.LockedUntil = session.LockedUntil()
	}
	if err := s.cache.SetLockState(ctx, session.ID().String(), state, s.cacheTTL); err != nil {
		s.logger.Warn("cache lock state failed", zap.String("session_id", session.ID().String()), zap.Error(err))
	}
}
