package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
	"github.com/arklim/social-platform-lockout/internal/repository"
)

type sessionRecord struct {
	session *domain.AuthenticationSession
}

// SessionRepository is an in-memory adapter implementing the write-side
// repository plus both query ports. It guards its map with a mutex so the
// per-key operations are safe for concurrent use; optimistic versioning rejects
// conflicting saves the same way the SQL adapter does.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
	nextID   int64
	now      func() time.Time
}

// NewSessionRepository constructs an empty in-memory repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*sessionRecord),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used for window-relative projections.
func (r *SessionRepository) WithClock(clock func() time.Time) *SessionRepository {
	if clock != nil {
		r.now = clock
	}
	return r
}

// FindBySessionID returns a deep copy of the stored aggregate.
func (r *SessionRepository) FindBySessionID(_ context.Context, id domain.SessionID) (*domain.AuthenticationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.sessions[id.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(record.session)
}

// Save persists the aggregate, assigning attempt identifiers and bumping the
// version. A version mismatch against the stored aggregate yields ErrConflict.
func (r *SessionRepository) Save(_ context.Context, session *domain.AuthenticationSession) (*domain.AuthenticationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := session.ID().String()
	if existing, ok := r.sessions[key]; ok {
		if existing.session.Version() != session.Version() {
			return nil, repository.ErrConflict
		}
	}

	attempts := session.Attempts()
	for i := range attempts {
		if attempts[i].ID() == 0 {
			r.nextID++
			attempts[i].AssignID(r.nextID)
		}
	}

	stored, err := domain.RestoreAuthenticationSession(
		session.ID(),
		session.UserID(),
		attempts,
		session.LockedUntil(),
		session.CreatedAt(),
		session.LastActivityAt(),
		session.Version()+1,
		session.Policy(),
	)
	if err != nil {
		return nil, err
	}

	r.sessions[key] = &sessionRecord{session: stored}
	return cloneSession(stored)
}

// Delete removes a session and its attempts.
func (r *SessionRepository) Delete(_ context.Context, id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := id.String()
	if _, ok := r.sessions[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.sessions, key)
	return nil
}

// DeleteOlderThan removes sessions whose last activity predates the cutoff.
func (r *SessionRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key, record := range r.sessions {
		if record.session.LastActivityAt().Before(cutoff) {
			delete(r.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}

// LoadSessionStatus builds the status projection straight from stored state.
func (r *SessionRepository) LoadSessionStatus(_ context.Context, sessionID string) (*port.SessionStatusProjection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return projectStatus(record.session, r.now()), nil
}

// LoadSessionStatusByUser scopes the status projection to one user.
func (r *SessionRepository) LoadSessionStatusByUser(_ context.Context, sessionID, userID string) (*port.SessionStatusProjection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.sessions[sessionID]
	if !ok || record.session.UserID() != userID {
		return nil, repository.ErrNotFound
	}
	return projectStatus(record.session, r.now()), nil
}

// LoadFailedAttempts returns in-range failed attempts, most recent first.
func (r *SessionRepository) LoadFailedAttempts(_ context.Context, sessionID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	return r.loadFailedAttempts(sessionID, "", from, to, limit)
}

// LoadFailedAttemptsByUser returns in-range failed attempts for one user.
func (r *SessionRepository) LoadFailedAttemptsByUser(_ context.Context, sessionID, userID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	return r.loadFailedAttempts(sessionID, userID, from, to, limit)
}

// CountFailedAttempts counts in-range failed attempts.
func (r *SessionRepository) CountFailedAttempts(_ context.Context, sessionID string, from, to time.Time) (int, error) {
	attempts, err := r.loadFailedAttempts(sessionID, "", from, to, 0)
	if err != nil {
		return 0, err
	}
	return len(attempts), nil
}

// CountFailedAttemptsByUser counts in-range failed attempts for one user.
func (r *SessionRepository) CountFailedAttemptsByUser(_ context.Context, sessionID, userID string, from, to time.Time) (int, error) {
	attempts, err := r.loadFailedAttempts(sessionID, userID, from, to, 0)
	if err != nil {
		return 0, err
	}
	return len(attempts), nil
}

func (r *SessionRepository) loadFailedAttempts(sessionID, userID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	out := make([]port.FailedAttemptProjection, 0)
	for _, attempt := range record.session.Attempts() {
		if attempt.Succeeded() {
			continue
		}
		if userID != "" && attempt.UserID() != userID {
			continue
		}
		at := attempt.AttemptedAt()
		if at.Before(from) || at.After(to) {
			continue
		}
		out = append(out, port.FailedAttemptProjection{
			ID:          attempt.ID(),
			SessionID:   sessionID,
			UserID:      attempt.UserID(),
			ClientIP:    attempt.ClientIP().String(),
			AttemptedAt: at,
			RiskScore:   attempt.RiskScore(),
			RiskReason:  attempt.RiskLevel().Reason(),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func projectStatus(session *domain.AuthenticationSession, now time.Time) *port.SessionStatusProjection {
	projection := &port.SessionStatusProjection{
		SessionID:      session.ID().String(),
		UserID:         session.UserID(),
		Locked:         session.LockedUntil() != nil,
		LockedUntil:    session.LockedUntil(),
		FailedAttempts: session.FailedAttemptsWithinWindow(now),
		CreatedAt:      session.CreatedAt(),
		LastActivityAt: session.LastActivityAt(),
	}
	windowStart := now.Add(-session.Policy().Window)
	for _, attempt := range session.Attempts() {
		if !attempt.WithinWindow(windowStart) {
			break
		}
		if score := attempt.RiskScore(); score > projection.MaxRiskScore {
			projection.MaxRiskScore = score
		}
	}
	return projection
}

func cloneSession(session *domain.AuthenticationSession) (*domain.AuthenticationSession, error) {
	return domain.RestoreAuthenticationSession(
		session.ID(),
		session.UserID(),
		session.Attempts(),
		session.LockedUntil(),
		session.CreatedAt(),
		session.LastActivityAt(),
		session.Version(),
		session.Policy(),
	)
}

var (
	_ port.SessionRepository   = (*SessionRepository)(nil)
	_ port.SessionStatusQuery  = (*SessionRepository)(nil)
	_ port.FailedAttemptsQuery = (*SessionRepository)(nil)
)
