package usecase

import (
	"context"
	"time"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
	"github.com/arklim/social-platform-lockout/internal/repository"
)

type fakeSessionRepository struct {
	sessions map[string]*domain.AuthenticationSession
	nextID   int64

	findErr error
	saveErr error

	saveCalls   int
	deleteCalls []string
}

func newFakeSessionRepository(sessions ...*domain.AuthenticationSession) *fakeSessionRepository {
	repo := &fakeSessionRepository{sessions: make(map[string]*domain.AuthenticationSession)}
	for _, session := range sessions {
		repo.sessions[session.ID().String()] = session
	}
	return repo
}

func (f *fakeSessionRepository) FindBySessionID(_ context.Context, id domain.SessionID) (*domain.AuthenticationSession, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	session, ok := f.sessions[id.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessionRepository) Save(_ context.Context, session *domain.AuthenticationSession) (*domain.AuthenticationSession, error) {
	f.saveCalls++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	attempts := session.Attempts()
	for i := range attempts {
		if attempts[i].ID() == 0 {
			f.nextID++
			attempts[i].AssignID(f.nextID)
		}
	}
	saved, err := domain.RestoreAuthenticationSession(
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
	f.sessions[session.ID().String()] = saved
	return saved, nil
}

func (f *fakeSessionRepository) Delete(_ context.Context, id domain.SessionID) error {
	key := id.String()
	if _, ok := f.sessions[key]; !ok {
		return repository.ErrNotFound
	}
	delete(f.sessions, key)
	f.deleteCalls = append(f.deleteCalls, key)
	return nil
}

func (f *fakeSessionRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	for key, session := range f.sessions {
		if session.LastActivityAt().Before(cutoff) {
			delete(f.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}

type fakeEventPublisher struct {
	published []domain.Event
	fail      error
}

func (f *fakeEventPublisher) Publish(_ context.Context, event domain.Event) error {
	if f.fail != nil {
		return f.fail
	}
	f.published = append(f.published, event)
	return nil
}

func (f *fakeEventPublisher) PublishAll(_ context.Context, events []domain.Event) error {
	if f.fail != nil {
		return f.fail
	}
	f.published = append(f.published, events...)
	return nil
}

func (f *fakeEventPublisher) lockedEvents() []domain.AccountLockedEvent {
	out := make([]domain.AccountLockedEvent, 0)
	for _, event := range f.published {
		if locked, ok := event.(domain.AccountLockedEvent); ok {
			out = append(out, locked)
		}
	}
	return out
}

type fakeLockoutCache struct {
	states map[string]port.LockState
	getErr error
	setErr error
}

func newFakeLockoutCache() *fakeLockoutCache {
	return &fakeLockoutCache{states: make(map[string]port.LockState)}
}

func (f *fakeLockoutCache) GetLockState(_ context.Context, sessionID string) (*port.LockState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	state, ok := f.states[sessionID]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

func (f *fakeLockoutCache) SetLockState(_ context.Context, sessionID string, state port.LockState, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.states[sessionID] = state
	return nil
}

func (f *fakeLockoutCache) Invalidate(_ context.Context, sessionID string) error {
	delete(f.states, sessionID)
	return nil
}

type fakeStatusQuery struct {
	projections map[string]*port.SessionStatusProjection
	err         error
}

func (f *fakeStatusQuery) LoadSessionStatus(_ context.Context, sessionID string) (*port.SessionStatusProjection, error) {
	if f.err != nil {
		return nil, f.err
	}
	projection, ok := f.projections[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *projection
	return &copied, nil
}

func (f *fakeStatusQuery) LoadSessionStatusByUser(_ context.Context, sessionID, userID string) (*port.SessionStatusProjection, error) {
	projection, err := f.LoadSessionStatus(nil, sessionID)
	if err != nil {
		return nil, err
	}
	if projection.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return projection, nil
}

type fakeFailedAttemptsQuery struct {
	attempts []port.FailedAttemptProjection
	err      error

	lastFrom  time.Time
	lastTo    time.Time
	lastLimit int
	calls     int
}

func (f *fakeFailedAttemptsQuery) LoadFailedAttempts(_ context.Context, sessionID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	f.calls++
	f.lastFrom, f.lastTo, f.lastLimit = from, to, limit
	if f.err != nil {
		return nil, f.err
	}
	out := make([]port.FailedAttemptProjection, 0)
	for _, attempt := range f.attempts {
		if attempt.SessionID != sessionID {
			continue
		}
		if attempt.AttemptedAt.Before(from) || attempt.AttemptedAt.After(to) {
			continue
		}
		out = append(out, attempt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFailedAttemptsQuery) LoadFailedAttemptsByUser(ctx context.Context, sessionID, userID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	attempts, err := f.LoadFailedAttempts(ctx, sessionID, from, to, 0)
	if err != nil {
		return nil, err
	}
	out := make([]port.FailedAttemptProjection, 0)
	for _, attempt := range attempts {
		if attempt.UserID != userID {
			continue
		}
		out = append(out, attempt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFailedAttemptsQuery) CountFailedAttempts(ctx context.Context, sessionID string, from, to time.Time) (int, error) {
	attempts, err := f.LoadFailedAttempts(ctx, sessionID, from, to, 0)
	if err != nil {
		return 0, err
	}
	return len(attempts), nil
}

func (f *fakeFailedAttemptsQuery) CountFailedAttemptsByUser(ctx context.Context, sessionID, userID string, from, to time.Time) (int, error) {
	attempts, err := f.LoadFailedAttemptsByUser(ctx, sessionID, userID, from, to, 0)
	if err != nil {
		return 0, err
	}
	return len(attempts), nil
}

type rejectingUnlockPolicy struct {
	err error
}

func (p rejectingUnlockPolicy) AllowUnlock(_ *domain.AuthenticationSession, _ string, _ time.Time) error {
	return p.err
}
