package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
	"github.com/arklim/social-platform-lockout/internal/repository"
)

// SessionQueryError wraps unexpected failures from query-side ports. Not-found
// conditions are never wrapped; they surface as ErrSessionNotFound.
type SessionQueryError struct {
	Op  string
	Err error
}

func (e *SessionQueryError) Error() string {
	return fmt.Sprintf("session query %s: %v", e.Op, e.Err)
}

func (e *SessionQueryError) Unwrap() error {
	return e.Err
}

// GetSessionStatusQuery requests the lock status projection for a session,
// optionally scoped to one user.
type GetSessionStatusQuery struct {
	SessionID string
	UserID    string
}

// Validate checks the query shape before any port is touched.
func (q GetSessionStatusQuery) Validate() error {
	if strings.TrimSpace(q.SessionID) == "" {
		return domain.NewValidationError("session_id", "must not be blank")
	}
	return nil
}

// GetFailedAttemptsQuery requests failed attempts for a session within a time
// range. Construct via NewGetFailedAttemptsQuery; invalid shapes never reach a port.
type GetFailedAttemptsQuery struct {
	sessionID string
	userID    string
	from      time.Time
	to        time.Time
	limit     int
}

// NewGetFailedAttemptsQuery validates and builds a failed-attempts query.
func NewGetFailedAttemptsQuery(sessionID, userID string, from, to time.Time, limit int) (GetFailedAttemptsQuery, error) {
	if strings.TrimSpace(sessionID) == "" {
		return GetFailedAttemptsQuery{}, domain.NewValidationError("session_id", "must not be blank")
	}
	if from.IsZero() || to.IsZero() {
		return GetFailedAttemptsQuery{}, domain.NewValidationError("time_range", "from and to must be set")
	}
	if from.After(to) {
		return GetFailedAttemptsQuery{}, domain.NewValidationError("time_range", "from must not be after to")
	}
	if limit < 0 {
		return GetFailedAttemptsQuery{}, domain.NewValidationError("limit", "must not be negative")
	}
	return GetFailedAttemptsQuery{
		sessionID: strings.TrimSpace(sessionID),
		userID:    strings.TrimSpace(userID),
		from:      from.UTC(),
		to:        to.UTC(),
		limit:     limit,
	}, nil
}

// SessionID returns the target session identifier.
func (q GetFailedAttemptsQuery) SessionID() string { return q.sessionID }

// UserID returns the optional user scope, empty when unscoped.
func (q GetFailedAttemptsQuery) UserID() string { return q.userID }

// Range returns the inclusive time range of the query.
func (q GetFailedAttemptsQuery) Range() (time.Time, time.Time) { return q.from, q.to }

// Limit returns the maximum number of projections to return, zero for unbounded.
func (q GetFailedAttemptsQuery) Limit() int { return q.limit }

// FailedAttemptsResult bundles the page of projections with the total in-range count.
type FailedAttemptsResult struct {
	Attempts []port.FailedAttemptProjection
	Total    int
}

// SessionQueryService serves read-side projections of session and attempt state.
// It bypasses the write-side aggregate entirely.
type SessionQueryService struct {
	status   port.SessionStatusQuery
	attempts port.FailedAttemptsQuery
	cache    port.LockoutCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionQueryService constructs a SessionQueryService.
func NewSessionQueryService(status port.SessionStatusQuery, attempts port.FailedAttemptsQuery, logger *zap.Logger) *SessionQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &SessionQueryService{
		status:   status,
		attempts: attempts,
		logger:   logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionQueryService) WithClock(clock func() time.Time) *SessionQueryService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithLockoutCache injects a cache consulted before the status port.
func (s *SessionQueryService) WithLockoutCache(cache port.LockoutCache) *SessionQueryService {
	if cache != nil {
		s.cache = cache
	}
	return s
}

// GetSessionStatus loads the status projection for a session. An elapsed lock is
// reported as unlocked so the read side never shows a stale-locked session.
func (s *SessionQueryService) GetSessionStatus(ctx context.Context, query GetSessionStatusQuery) (*port.SessionStatusProjection, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var (
		projection *port.SessionStatusProjection
		err        error
	)
	if query.UserID != "" {
		projection, err = s.status.LoadSessionStatusByUser(ctx, query.SessionID, query.UserID)
	} else {
		projection, err = s.status.LoadSessionStatus(ctx, query.SessionID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, &SessionQueryError{Op: "load session status", Err: err}
	}
	if projection == nil {
		return nil, ErrSessionNotFound
	}

	s.applyLockExpiry(projection)
	return projection, nil
}

// GetFailedAttempts loads failed-attempt projections plus the total in-range count.
func (s *SessionQueryService) GetFailedAttempts(ctx context.Context, query GetFailedAttemptsQuery) (*FailedAttemptsResult, error) {
	from, to := query.Range()

	var (
		attempts []port.FailedAttemptProjection
		total    int
		err      error
	)
	if query.UserID() != "" {
		attempts, err = s.attempts.LoadFailedAttemptsByUser(ctx, query.SessionID(), query.UserID(), from, to, query.Limit())
	} else {
		attempts, err = s.attempts.LoadFailedAttempts(ctx, query.SessionID(), from, to, query.Limit())
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, &SessionQueryError{Op: "load failed attempts", Err: err}
	}

	if query.UserID() != "" {
		total, err = s.attempts.CountFailedAttemptsByUser(ctx, query.SessionID(), query.UserID(), from, to)
	} else {
		total, err = s.attempts.CountFailedAttempts(ctx, query.SessionID(), from, to)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, &SessionQueryError{Op: "count failed attempts", Err: err}
	}

	return &FailedAttemptsResult{Attempts: attempts, Total: total}, nil
}

// CheckCachedLockState consults the lockout cache, falling back to the status
// port on a miss. The cached snapshot also honours lazy lock expiry.
func (s *SessionQueryService) CheckCachedLockState(ctx context.Context, sessionID string) (*port.LockState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.NewValidationError("session_id", "must not be blank")
	}

	if s.cache != nil {
		state, err := s.cache.GetLockState(ctx, sessionID)
		if err != nil {
			s.logger.Warn("lockout cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		} else if state != nil {
			if state.Locked && state.LockedUntil != nil && !s.now().Before(*state.LockedUntil) {
				state.Locked = false
				state.LockedUntil = nil
			}
			return state, nil
		}
	}

	projection, err := s.GetSessionStatus(ctx, GetSessionStatusQuery{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	state := &port.LockState{Locked: projection.Locked, LockedUntil: projection.LockedUntil}
	return state, nil
}

func (s *SessionQueryService) applyLockExpiry(projection *port.SessionStatusProjection) {
	if !projection.Locked {
		return
	}
	if projection.LockedUntil == nil || !s.now().Before(*projection.LockedUntil) {
		projection.Locked = false
		projection.LockedUntil = nil
	}
}
