package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-lockout/internal/infra/telemetry"
	"github.com/arklim/social-platform-lockout/internal/usecase"
)

// LockoutHandler exposes endpoints for attempt recording, lock checks, and unlocks.
type LockoutHandler struct {
	lockout   *usecase.LockoutService
	queries   *usecase.SessionQueryService
	telemetry *telemetry.Provider
}

// NewLockoutHandler constructs a lockout handler.
func NewLockoutHandler(lockout *usecase.LockoutService, queries *usecase.SessionQueryService) *LockoutHandler {
	return &LockoutHandler{lockout: lockout, queries: queries}
}

// WithTelemetry attaches domain counters incremented per recorded outcome.
func (h *LockoutHandler) WithTelemetry(provider *telemetry.Provider) *LockoutHandler {
	h.telemetry = provider
	return h
}

// RouteThrottles carries optional per-route throttle middleware: attempt
// recording is scoped by client IP, unlocks by session, reads by client IP.
type RouteThrottles struct {
	Attempt gin.HandlerFunc
	Unlock  gin.HandlerFunc
	Status  gin.HandlerFunc
}

// RegisterRoutes binds REST lockout routes to the provided router group.
func (h *LockoutHandler) RegisterRoutes(r *gin.RouterGroup, throttles RouteThrottles) {
	if r == nil {
		return
	}

	r.POST("/attempts", withThrottle(throttles.Attempt, h.RecordAttempt)...)
	r.POST("/sessions", h.EnsureSession)
	r.GET("/sessions/:session_id/lock", withThrottle(throttles.Status, h.CheckLockout)...)
	r.GET("/sessions/:session_id/status", withThrottle(throttles.Status, h.GetSessionStatus)...)
	r.GET("/sessions/:session_id/attempts", withThrottle(throttles.Status, h.GetFailedAttempts)...)
	r.POST("/sessions/:session_id/unlock", withThrottle(throttles.Unlock, h.UnlockAccount)...)
}

func withThrottle(throttle gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if throttle == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{throttle, handler}
}

// RecordAttempt records one authentication outcome and reports the resulting lock state.
func (h *LockoutHandler) RecordAttempt(c *gin.Context) {
	if h.lockout == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "lockout service unavailable"))
		return
	}

	var req RecordAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id and user_id are required"))
		return
	}

	clientIP := strings.TrimSpace(req.ClientIP)
	if clientIP == "" {
		clientIP = c.ClientIP()
	}

	result, err := h.lockout.RecordAttempt(c.Request.Context(), usecase.RecordAuthenticationAttemptCommand{
		SessionID:       req.SessionID,
		UserID:          req.UserID,
		ClientIP:        clientIP,
		Succeeded:       req.Succeeded,
		RiskScore:       req.RiskScore,
		RiskReason:      req.RiskReason,
		CreateIfMissing: req.CreateIfMissing,
	})
	if err != nil {
		respondCommandError(c, err, "failed to record attempt")
		return
	}

	h.telemetry.ObserveAttempt(result.Authenticated)
	if result.AccountLocked {
		h.telemetry.ObserveLock()
	}

	c.JSON(http.StatusOK, RecordAttemptResponse{
		SessionID:      result.SessionID,
		Authenticated:  result.Authenticated,
		AccountLocked:  result.AccountLocked,
		LockedUntil:    result.LockedUntil,
		FailedAttempts: result.FailedAttempts,
		RiskScore:      result.RiskScore,
	})
}

// CheckLockout reports whether a session is currently locked out.
func (h *LockoutHandler) CheckLockout(c *gin.Context) {
	if h.lockout == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "lockout service unavailable"))
		return
	}

	sessionID := c.Param("session_id")
	userID := c.Query("user_id")

	status, err := h.lockout.CheckLockout(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondCommandError(c, err, "failed to check lockout")
		return
	}

	c.JSON(http.StatusOK, LockStatusResponse{
		SessionID:      status.SessionID,
		UserID:         status.UserID,
		Locked:         status.Locked,
		LockedUntil:    status.LockedUntil,
		FailedAttempts: status.FailedAttempts,
	})
}

// GetSessionStatus returns the read-side projection for one session.
func (h *LockoutHandler) GetSessionStatus(c *gin.Context) {
	if h.queries == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "query service unavailable"))
		return
	}

	projection, err := h.queries.GetSessionStatus(c.Request.Context(), usecase.GetSessionStatusQuery{
		SessionID: c.Param("session_id"),
		UserID:    c.Query("user_id"),
	})
	if err != nil {
		respondCommandError(c, err, "failed to load session status")
		return
	}

	c.JSON(http.StatusOK, SessionStatusResponse{
		SessionID:      projection.SessionID,
		UserID:         projection.UserID,
		Locked:         projection.Locked,
		LockedUntil:    projection.LockedUntil,
		FailedAttempts: projection.FailedAttempts,
		MaxRiskScore:   projection.MaxRiskScore,
		CreatedAt:      projection.CreatedAt,
		LastActivityAt: projection.LastActivityAt,
	})
}

// GetFailedAttempts lists failed attempts for one session within a time range.
func (h *LockoutHandler) GetFailedAttempts(c *gin.Context) {
	if h.queries == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "query service unavailable"))
		return
	}

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "from must be RFC3339"))
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "to must be RFC3339"))
			return
		}
		to = parsed
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	query, err := usecase.NewGetFailedAttemptsQuery(c.Param("session_id"), c.Query("user_id"), from, to, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return
	}

	result, err := h.queries.GetFailedAttempts(c.Request.Context(), query)
	if err != nil {
		respondCommandError(c, err, "failed to load attempts")
		return
	}

	attempts := make([]FailedAttemptPayload, 0, len(result.Attempts))
	for _, attempt := range result.Attempts {
		attempts = append(attempts, FailedAttemptPayload{
			ID:          attempt.ID,
			SessionID:   attempt.SessionID,
			UserID:      attempt.UserID,
			ClientIP:    attempt.ClientIP,
			AttemptedAt: attempt.AttemptedAt,
			RiskScore:   attempt.RiskScore,
			RiskReason:  attempt.RiskReason,
		})
	}

	c.JSON(http.StatusOK, FailedAttemptsResponse{
		SessionID: query.SessionID(),
		Attempts:  attempts,
		Total:     result.Total,
	})
}

// UnlockAccount lifts an active lock ahead of its natural expiry.
func (h *LockoutHandler) UnlockAccount(c *gin.Context) {
	if h.lockout == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "lockout service unavailable"))
		return
	}

	var req UnlockAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "requested_by is required"))
		return
	}

	result, err := h.lockout.UnlockAccount(c.Request.Context(), usecase.UnlockAccountCommand{
		SessionID:   c.Param("session_id"),
		UserID:      req.UserID,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		respondCommandError(c, err, "failed to unlock account")
		return
	}

	if result.Unlocked {
		h.telemetry.ObserveUnlock()
	}

	c.JSON(http.StatusOK, UnlockAccountResponse{
		SessionID: result.SessionID,
		Unlocked:  result.Unlocked,
	})
}

// EnsureSession provisions tracking state for a (session, user) pair.
func (h *LockoutHandler) EnsureSession(c *gin.Context) {
	if h.lockout == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "lockout service unavailable"))
		return
	}

	var req EnsureSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id and user_id are required"))
		return
	}

	session, err := h.lockout.EnsureSession(c.Request.Context(), usecase.EnsureSessionCommand{
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		respondCommandError(c, err, "failed to ensure session")
		return
	}

	c.JSON(http.StatusOK, EnsureSessionResponse{
		SessionID: session.ID().String(),
		UserID:    session.UserID(),
	})
}

