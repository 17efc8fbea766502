package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/repository/memory"
	"github.com/arklim/social-platform-lockout/internal/transport/http/handlers"
	"github.com/arklim/social-platform-lockout/internal/usecase"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) error { return nil }

func (noopPublisher) PublishAll(context.Context, []domain.Event) error { return nil }

func newTestRouter(t *testing.T, now time.Time) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewSessionRepository().WithClock(func() time.Time { return now })
	logger := zaptest.NewLogger(t)
	clock := func() time.Time { return now }

	lockout := usecase.NewLockoutService(repo, noopPublisher{}, logger).WithClock(clock)
	queries := usecase.NewSessionQueryService(repo, repo, logger).WithClock(clock)

	r := gin.New()
	api := r.Group("/api/v1")
	handlers.NewLockoutHandler(lockout, queries).RegisterRoutes(api, handlers.RouteThrottles{})
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecordAttemptLocksAtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(t, now)

	sessionID := "7b1d60cc-9aa5-4f2b-9f3a-6c1f1f6f2a01"
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions", handlers.EnsureSessionRequest{
		SessionID: sessionID,
		UserID:    "user-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ensure session: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var last handlers.RecordAttemptResponse
	for i := 0; i < 5; i++ {
		w = doJSON(t, r, http.MethodPost, "/api/v1/attempts", handlers.RecordAttemptRequest{
			SessionID: sessionID,
			UserID:    "user-1",
			ClientIP:  "203.0.113.9",
			Succeeded: false,
			RiskScore: 10,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d (%s)", i+1, w.Code, w.Body.String())
		}
		if err := json.Unmarshal(w.Body.Bytes(), &last); err != nil {
			t.Fatalf("decode attempt response: %v", err)
		}
	}

	if !last.AccountLocked {
		t.Fatal("expected account to be locked after the fifth failure")
	}
	if last.LockedUntil == nil || !last.LockedUntil.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("unexpected locked_until %v", last.LockedUntil)
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/lock", sessionID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("check lock: expected 200, got %d", w.Code)
	}
	var status handlers.LockStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode lock status: %v", err)
	}
	if !status.Locked {
		t.Fatal("expected locked status")
	}
}

func TestUnlockAccountEndpoint(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(t, now)

	sessionID := "7b1d60cc-9aa5-4f2b-9f3a-6c1f1f6f2a02"
	doJSON(t, r, http.MethodPost, "/api/v1/sessions", handlers.EnsureSessionRequest{
		SessionID: sessionID,
		UserID:    "user-2",
	})
	for i := 0; i < 5; i++ {
		doJSON(t, r, http.MethodPost, "/api/v1/attempts", handlers.RecordAttemptRequest{
			SessionID: sessionID,
			UserID:    "user-2",
			ClientIP:  "203.0.113.9",
		})
	}

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/unlock", sessionID), handlers.UnlockAccountRequest{
		RequestedBy: "ops-admin",
		Reason:      "verified with user",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unlock: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var unlock handlers.UnlockAccountResponse
	if err := json.Unmarshal(w.Body.Bytes(), &unlock); err != nil {
		t.Fatalf("decode unlock response: %v", err)
	}
	if !unlock.Unlocked {
		t.Fatal("expected the unlock to report a state change")
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/lock", sessionID), nil)
	var status handlers.LockStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode lock status: %v", err)
	}
	if status.Locked {
		t.Fatal("expected session to be unlocked")
	}
}

func TestCheckLockoutUnknownSession(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(t, now)

	w := doJSON(t, r, http.MethodGet, "/api/v1/sessions/7b1d60cc-9aa5-4f2b-9f3a-6c1f1f6f2a99/lock", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestCheckLockoutMalformedSessionID(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(t, now)

	w := doJSON(t, r, http.MethodGet, "/api/v1/sessions/not-a-uuid/lock", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed session id, got %d", w.Code)
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(t, now)

	w := doJSON(t, r, http.MethodPost, "/api/v1/attempts", map[string]any{
		"user_id": "user-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing session_id, got %d", w.Code)
	}
}

func TestGetFailedAttemptsEndpoint(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := newTestRouter(t, now)

	sessionID := "7b1d60cc-9aa5-4f2b-9f3a-6c1f1f6f2a03"
	doJSON(t, r, http.MethodPost, "/api/v1/sessions", handlers.EnsureSessionRequest{
		SessionID: sessionID,
		UserID:    "user-3",
	})
	for i := 0; i < 3; i++ {
		doJSON(t, r, http.MethodPost, "/api/v1/attempts", handlers.RecordAttemptRequest{
			SessionID: sessionID,
			UserID:    "user-3",
			ClientIP:  "198.51.100.4",
			RiskScore: 20,
		})
	}

	path := fmt.Sprintf("/api/v1/sessions/%s/attempts?from=%s&to=%s",
		sessionID,
		now.Add(-time.Hour).Format(time.RFC3339),
		now.Add(time.Hour).Format(time.RFC3339),
	)
	w := doJSON(t, r, http.MethodGet, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp handlers.FailedAttemptsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode attempts response: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("expected 3 failed attempts, got %d", resp.Total)
	}
	for _, attempt := range resp.Attempts {
		if attempt.RiskScore != 50 {
			t.Fatalf("expected risk score 50 for failed attempt, got %d", attempt.RiskScore)
		}
	}
}
