package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/repository"
)

func newLockedOutFixture(t *testing.T, base time.Time, failures int) (*LockoutService, *fakeSessionRepository, *fakeEventPublisher, domain.SessionID) {
	t.Helper()

	id := domain.NewSessionID()
	session, err := domain.NewAuthenticationSession(id, "user-1", base.Add(-time.Hour), domain.DefaultLockoutPolicy())
	if err != nil {
		t.Fatalf("NewAuthenticationSession: %v", err)
	}

	repo := newFakeSessionRepository(session)
	publisher := &fakeEventPublisher{}
	service := NewLockoutService(repo, publisher, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return base })

	for i := 0; i < failures; i++ {
		cmd := RecordAuthenticationAttemptCommand{
			SessionID:   id.String(),
			UserID:      "user-1",
			ClientIP:    "203.0.113.7",
			Succeeded:   false,
			RiskScore:   20,
			RiskReason:  "bad password",
			AttemptedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := service.RecordAttempt(context.Background(), cmd); err != nil {
			t.Fatalf("RecordAttempt(%d): %v", i, err)
		}
	}

	return service, repo, publisher, id
}

func TestLockoutService_RecordAttempt_LocksAtThreshold(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	service, _, publisher, id := newLockedOutFixture(t, base, 4)

	cmd := RecordAuthenticationAttemptCommand{
		SessionID:   id.String(),
		UserID:      "user-1",
		ClientIP:    "203.0.113.7",
		Succeeded:   false,
		RiskScore:   20,
		AttemptedAt: base.Add(4 * time.Minute),
	}
	result, err := service.RecordAttempt(context.Background(), cmd)
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	if !result.AccountLocked {
		t.Fatal("fifth in-window failure must lock the account")
	}
	wantUntil := base.Add(4 * time.Minute).Add(30 * time.Minute)
	if result.LockedUntil == nil || !result.LockedUntil.Equal(wantUntil) {
		t.Fatalf("LockedUntil = %v, want %v", result.LockedUntil, wantUntil)
	}
	if result.FailedAttempts != 5 {
		t.Fatalf("FailedAttempts = %d, want 5", result.FailedAttempts)
	}

	locked := publisher.lockedEvents()
	if len(locked) != 1 {
		t.Fatalf("AccountLockedEvent published %d times, want exactly 1", len(locked))
	}
	if locked[0].FailedAttemptCount != 5 {
		t.Fatalf("event failed count = %d, want 5", locked[0].FailedAttemptCount)
	}
}

func TestLockoutService_RecordAttempt_SuccessKeepsSessionUnlocked(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	service, _, publisher, id := newLockedOutFixture(t, base, 3)

	cmd := RecordAuthenticationAttemptCommand{
		SessionID:   id.String(),
		UserID:      "user-1",
		ClientIP:    "203.0.113.7",
		Succeeded:   true,
		RiskScore:   10,
		AttemptedAt: base.Add(4 * time.Minute),
	}
	result, err := service.RecordAttempt(context.Background(), cmd)
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	if result.AccountLocked {
		t.Fatal("success after three failures must not lock")
	}
	if !result.Authenticated {
		t.Fatal("success on unlocked session must authenticate")
	}
	if result.FailedAttempts != 3 {
		t.Fatalf("FailedAttempts = %d, want 3", result.FailedAttempts)
	}
	if len(publisher.lockedEvents()) != 0 {
		t.Fatal("no AccountLockedEvent expected")
	}
}

func TestLockoutService_RecordAttempt_UnknownSession(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository()
	service := NewLockoutService(repo, &fakeEventPublisher{}, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return base })

	cmd := RecordAuthenticationAttemptCommand{
		SessionID: domain.NewSessionID().String(),
		UserID:    "user-1",
		ClientIP:  "203.0.113.7",
		RiskScore: 10,
	}
	if _, err := service.RecordAttempt(context.Background(), cmd); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLockoutService_RecordAttempt_CreateIfMissing(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository()
	service := NewLockoutService(repo, &fakeEventPublisher{}, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return base })

	id := domain.NewSessionID()
	cmd := RecordAuthenticationAttemptCommand{
		SessionID:       id.String(),
		UserID:          "user-1",
		ClientIP:        "203.0.113.7",
		Succeeded:       false,
		RiskScore:       10,
		CreateIfMissing: true,
	}
	result, err := service.RecordAttempt(context.Background(), cmd)
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if result.FailedAttempts != 1 {
		t.Fatalf("FailedAttempts = %d, want 1", result.FailedAttempts)
	}

	session, err := repo.FindBySessionID(context.Background(), id)
	if err != nil {
		t.Fatalf("session was not provisioned: %v", err)
	}
	if session.UserID() != "user-1" {
		t.Fatalf("UserID = %q, want %q", session.UserID(), "user-1")
	}
	if len(session.Attempts()) != 1 {
		t.Fatalf("attempts = %d, want 1", len(session.Attempts()))
	}
}

func TestLockoutService_RecordAttempt_Validation(t *testing.T) {
	service := NewLockoutService(newFakeSessionRepository(), &fakeEventPublisher{}, zaptest.NewLogger(t))

	cases := []RecordAuthenticationAttemptCommand{
		{SessionID: "", UserID: "user-1", ClientIP: "203.0.113.7", RiskScore: 10},
		{SessionID: domain.NewSessionID().String(), UserID: "", ClientIP: "203.0.113.7", RiskScore: 10},
		{SessionID: domain.NewSessionID().String(), UserID: "user-1", ClientIP: "", RiskScore: 10},
		{SessionID: domain.NewSessionID().String(), UserID: "user-1", ClientIP: "203.0.113.7", RiskScore: 101},
	}
	for i, cmd := range cases {
		if _, err := service.RecordAttempt(context.Background(), cmd); !domain.IsValidationError(err) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}

	malformed := RecordAuthenticationAttemptCommand{SessionID: domain.NewSessionID().String(), UserID: "user-1", ClientIP: "not-an-ip", RiskScore: 10}
	if _, err := service.RecordAttempt(context.Background(), malformed); !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat for malformed ip, got %v", err)
	}
}

func TestLockoutService_RecordAttempt_SurfacesWriteConflict(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	id := domain.NewSessionID()
	session, _ := domain.NewAuthenticationSession(id, "user-1", base.Add(-time.Hour), domain.DefaultLockoutPolicy())
	repo := newFakeSessionRepository(session)
	repo.saveErr = repository.ErrConflict
	service := NewLockoutService(repo, &fakeEventPublisher{}, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return base })

	cmd := RecordAuthenticationAttemptCommand{
		SessionID: id.String(),
		UserID:    "user-1",
		ClientIP:  "203.0.113.7",
		RiskScore: 10,
	}
	if _, err := service.RecordAttempt(context.Background(), cmd); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict to surface, got %v", err)
	}
}

func TestLockoutService_CheckLockout(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	service, repo, _, id := newLockedOutFixture(t, base, 5)

	status, err := service.CheckLockout(context.Background(), id.String(), "user-1")
	if err != nil {
		t.Fatalf("CheckLockout: %v", err)
	}
	if !status.Locked {
		t.Fatal("expected locked status after five failures")
	}

	versionBefore := repo.sessions[id.String()].Version()
	for i := 0; i < 3; i++ {
		if _, err := service.CheckLockout(context.Background(), id.String(), "user-1"); err != nil {
			t.Fatalf("CheckLockout repeat %d: %v", i, err)
		}
	}
	if repo.sessions[id.String()].Version() != versionBefore {
		t.Fatal("CheckLockout must never change persisted state")
	}
	if repo.saveCalls != 5 {
		t.Fatalf("saveCalls = %d, want only the 5 record saves", repo.saveCalls)
	}
}

func TestLockoutService_CheckLockout_ExpiredLockReadsUnlocked(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	service, repo, _, id := newLockedOutFixture(t, base, 5)

	service.WithClock(func() time.Time { return base.Add(2 * time.Hour) })

	status, err := service.CheckLockout(context.Background(), id.String(), "user-1")
	if err != nil {
		t.Fatalf("CheckLockout: %v", err)
	}
	if status.Locked {
		t.Fatal("expired lock must read as unlocked without an explicit unlock")
	}
	if status.LockedUntil != nil {
		t.Fatalf("LockedUntil = %v, want nil for expired lock", status.LockedUntil)
	}
	// Lazy expiry is read-only; the stored lock value is untouched.
	if repo.sessions[id.String()].LockedUntil() == nil {
		t.Fatal("stored lock must not be mutated by a read")
	}
}

func TestLockoutService_CheckLockout_UserMismatch(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	service, _, _, id := newLockedOutFixture(t, base, 5)

	if _, err := service.CheckLockout(context.Background(), id.String(), "someone-else"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign user, got %v", err)
	}

	// Callers without a user in hand still get the session-scoped answer.
	status, err := service.CheckLockout(context.Background(), id.String(), "")
	if err != nil {
		t.Fatalf("CheckLockout without user: %v", err)
	}
	if !status.Locked {
		t.Fatal("expected locked status")
	}
}

func TestLockoutService_CheckLockout_UnknownSession(t *testing.T) {
	service := NewLockoutService(newFakeSessionRepository(), &fakeEventPublisher{}, zaptest.NewLogger(t))
	if _, err := service.CheckLockout(context.Background(), domain.NewSessionID().String(), "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLockoutService_UnlockAccount(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	service, repo, publisher, id := newLockedOutFixture(t, base, 5)
	service.WithClock(func() time.Time { return base.Add(10 * time.Minute) })

	result, err := service.UnlockAccount(context.Background(), UnlockAccountCommand{
		SessionID:   id.String(),
		UserID:      "user-1",
		RequestedBy: "admin-1",
		Reason:      "support ticket 4412",
	})
	if err != nil {
		t.Fatalf("UnlockAccount: %v", err)
	}
	if !result.Unlocked {
		t.Fatal("expected unlock to report a transition")
	}
	if repo.sessions[id.String()].LockedUntil() != nil {
		t.Fatal("stored session must be unlocked")
	}

	foundUnlocked := false
	for _, event := range publisher.published {
		if unlocked, ok := event.(domain.AccountUnlockedEvent); ok {
			foundUnlocked = true
			if unlocked.UnlockedBy != "admin-1" {
				t.Fatalf("UnlockedBy = %q", unlocked.UnlockedBy)
			}
		}
	}
	if !foundUnlocked {
		t.Fatal("AccountUnlockedEvent not published")
	}

	// A second unlock is a no-op success, never ErrSessionNotFound.
	again, err := service.UnlockAccount(context.Background(), UnlockAccountCommand{
		SessionID:   id.String(),
		UserID:      "user-1",
		RequestedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("second UnlockAccount: %v", err)
	}
	if again.Unlocked {
		t.Fatal("second unlock must be a no-op")
	}
}

func TestLockoutService_UnlockAccount_PolicyRejection(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	service, _, _, id := newLockedOutFixture(t, base, 5)
	service.WithUnlockPolicy(rejectingUnlockPolicy{err: fmt.Errorf("too early")}).
		WithClock(func() time.Time { return base.Add(5 * time.Minute) })

	_, err := service.UnlockAccount(context.Background(), UnlockAccountCommand{
		SessionID:   id.String(),
		UserID:      "user-1",
		RequestedBy: "admin-1",
	})
	if !errors.Is(err, ErrUnlockNotAllowed) {
		t.Fatalf("expected ErrUnlockNotAllowed, got %v", err)
	}
}

func TestLockoutService_UnlockAccount_UnknownSession(t *testing.T) {
	service := NewLockoutService(newFakeSessionRepository(), &fakeEventPublisher{}, zaptest.NewLogger(t))
	_, err := service.UnlockAccount(context.Background(), UnlockAccountCommand{
		SessionID:   domain.NewSessionID().String(),
		RequestedBy: "admin-1",
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLockoutService_EnsureSession(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository()
	service := NewLockoutService(repo, &fakeEventPublisher{}, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return base })

	id := domain.NewSessionID()
	created, err := service.EnsureSession(context.Background(), EnsureSessionCommand{SessionID: id.String(), UserID: "user-1"})
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if created.UserID() != "user-1" {
		t.Fatalf("UserID = %q", created.UserID())
	}

	// Second call returns the existing aggregate instead of recreating it.
	again, err := service.EnsureSession(context.Background(), EnsureSessionCommand{SessionID: id.String(), UserID: "user-1"})
	if err != nil {
		t.Fatalf("EnsureSession again: %v", err)
	}
	if !again.ID().Equal(id) {
		t.Fatal("expected the same session back")
	}
	if repo.saveCalls != 1 {
		t.Fatalf("saveCalls = %d, want 1", repo.saveCalls)
	}
}

func TestLockoutService_PurgeInactiveSessions(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	stale, _ := domain.NewAuthenticationSession(domain.NewSessionID(), "user-1", base.Add(-40*24*time.Hour), domain.DefaultLockoutPolicy())
	fresh, _ := domain.NewAuthenticationSession(domain.NewSessionID(), "user-2", base.Add(-time.Hour), domain.DefaultLockoutPolicy())
	repo := newFakeSessionRepository(stale, fresh)
	service := NewLockoutService(repo, &fakeEventPublisher{}, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return base })

	deleted, err := service.PurgeInactiveSessions(context.Background(), base.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeInactiveSessions: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, ok := repo.sessions[fresh.ID().String()]; !ok {
		t.Fatal("fresh session must survive the purge")
	}
}

func TestLockoutService_CachesLockStateAfterRecord(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	id := domain.NewSessionID()
	session, _ := domain.NewAuthenticationSession(id, "user-1", base.Add(-time.Hour), domain.DefaultLockoutPolicy())
	repo := newFakeSessionRepository(session)
	cache := newFakeLockoutCache()
	service := NewLockoutService(repo, &fakeEventPublisher{}, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return base }).
		WithLockoutCache(cache, time.Minute)

	for i := 0; i < 5; i++ {
		cmd := RecordAuthenticationAttemptCommand{
			SessionID:   id.String(),
			UserID:      "user-1",
			ClientIP:    "203.0.113.7",
			RiskScore:   20,
			AttemptedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := service.RecordAttempt(context.Background(), cmd); err != nil {
			t.Fatalf("RecordAttempt(%d): %v", i, err)
		}
	}

	state, ok := cache.states[id.String()]
	if !ok {
		t.Fatal("lock state not mirrored into cache")
	}
	if !state.Locked || state.LockedUntil == nil {
		t.Fatalf("cached state = %+v, want locked", state)
	}
}

func TestMinimumLockTimeUnlockPolicy(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	_, repo, _, id := newLockedOutFixture(t, base, 5)
	session := repo.sessions[id.String()]

	policy := MinimumLockTimeUnlockPolicy{MinLocked: 10 * time.Minute}

	// Lock was set at base+4m; five minutes later is too early.
	if err := policy.AllowUnlock(session, "admin-1", base.Add(9*time.Minute)); err == nil {
		t.Fatal("expected rejection before minimum lock time")
	}
	if err := policy.AllowUnlock(session, "admin-1", base.Add(20*time.Minute)); err != nil {
		t.Fatalf("expected approval after minimum lock time, got %v", err)
	}
}
