package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the status of each readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// RecordAttemptRequest defines the payload for recording one authentication outcome.
type RecordAttemptRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	// ClientIP falls back to the connection's client IP when omitted.
	ClientIP        string `json:"client_ip"`
	Succeeded       bool   `json:"succeeded"`
	RiskScore       int    `json:"risk_score"`
	RiskReason      string `json:"risk_reason"`
	CreateIfMissing bool   `json:"create_if_missing"`
}

// RecordAttemptResponse describes the effect of recording the attempt.
type RecordAttemptResponse struct {
	SessionID      string     `json:"session_id"`
	Authenticated  bool       `json:"authenticated"`
	AccountLocked  bool       `json:"account_locked"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	RiskScore      int        `json:"risk_score"`
}

// LockStatusResponse reports the current lock state of a session.
type LockStatusResponse struct {
	SessionID      string     `json:"session_id"`
	UserID         string     `json:"user_id,omitempty"`
	Locked         bool       `json:"locked"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
}

// SessionStatusResponse is the read-side projection of one session.
type SessionStatusResponse struct {
	SessionID      string     `json:"session_id"`
	UserID         string     `json:"user_id"`
	Locked         bool       `json:"locked"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	MaxRiskScore   int        `json:"max_risk_score"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// UnlockAccountRequest defines the payload for an explicit unlock.
type UnlockAccountRequest struct {
	UserID      string `json:"user_id"`
	RequestedBy string `json:"requested_by" binding:"required"`
	Reason      string `json:"reason"`
}

// UnlockAccountResponse reports whether the unlock changed anything.
type UnlockAccountResponse struct {
	SessionID string `json:"session_id"`
	Unlocked  bool   `json:"unlocked"`
}

// EnsureSessionRequest provisions tracking state for a session.
type EnsureSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
}

// EnsureSessionResponse confirms the session being tracked.
type EnsureSessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// FailedAttemptPayload describes one failed attempt in query responses.
type FailedAttemptPayload struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	ClientIP    string    `json:"client_ip"`
	AttemptedAt time.Time `json:"attempted_at"`
	RiskScore   int       `json:"risk_score"`
	RiskReason  string    `json:"risk_reason,omitempty"`
}

// FailedAttemptsResponse lists failed attempts within the requested range.
type FailedAttemptsResponse struct {
	SessionID string                 `json:"session_id"`
	Attempts  []FailedAttemptPayload `json:"attempts"`
	Total     int                    `json:"total"`
}
