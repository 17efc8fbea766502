package domain

import (
	"strings"
	"time"
)

// Event is implemented by every lockout domain event handed to the publisher port.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// AccountLockedEvent represents the payload for lockout.account.locked messages.
type AccountLockedEvent struct {
	EventID            string
	SessionID          string
	UserID             string
	ClientIP           string
	LockedUntil        time.Time
	FailedAttemptCount int
	At                 time.Time
	Metadata           map[string]any
}

// NewAccountLockedEvent validates and constructs an AccountLockedEvent.
func NewAccountLockedEvent(eventID, sessionID, userID, clientIP string, lockedUntil time.Time, failedAttemptCount int, occurredAt time.Time) (AccountLockedEvent, error) {
	if strings.TrimSpace(eventID) == "" {
		return AccountLockedEvent{}, NewValidationError("event_id", "must not be blank")
	}
	if strings.TrimSpace(sessionID) == "" {
		return AccountLockedEvent{}, NewValidationError("session_id", "must not be blank")
	}
	if strings.TrimSpace(userID) == "" {
		return AccountLockedEvent{}, NewValidationError("user_id", "must not be blank")
	}
	if strings.TrimSpace(clientIP) == "" {
		return AccountLockedEvent{}, NewValidationError("client_ip", "must not be blank")
	}
	if failedAttemptCount <= 0 {
		return AccountLockedEvent{}, NewValidationError("failed_attempt_count", "must be positive")
	}
	if !lockedUntil.After(occurredAt) {
		return AccountLockedEvent{}, NewValidationError("locked_until", "must be after the occurrence time")
	}
	return AccountLockedEvent{
		EventID:            eventID,
		SessionID:          sessionID,
		UserID:             userID,
		ClientIP:           clientIP,
		LockedUntil:        lockedUntil.UTC(),
		FailedAttemptCount: failedAttemptCount,
		At:                 occurredAt.UTC(),
	}, nil
}

// EventName identifies the message type on the bus.
func (e AccountLockedEvent) EventName() string { return "lockout.account.locked" }

// OccurredAt returns the moment the lock transition happened.
func (e AccountLockedEvent) OccurredAt() time.Time { return e.At }

// AccountUnlockedEvent represents the payload for lockout.account.unlocked messages.
type AccountUnlockedEvent struct {
	EventID    string
	SessionID  string
	UserID     string
	UnlockedBy string
	Reason     string
	At         time.Time
	Metadata   map[string]any
}

// EventName identifies the message type on the bus.
func (e AccountUnlockedEvent) EventName() string { return "lockout.account.unlocked" }

// OccurredAt returns the moment the unlock happened.
func (e AccountUnlockedEvent) OccurredAt() time.Time { return e.At }

// AttemptRecordedEvent represents the payload for lockout.attempt.recorded messages.
type AttemptRecordedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	ClientIP  string
	Succeeded bool
	RiskScore int
	At        time.Time
	Metadata  map[string]any
}

// EventName identifies the message type on the bus.
func (e AttemptRecordedEvent) EventName() string { return "lockout.attempt.recorded" }

// OccurredAt returns the moment the attempt was recorded.
func (e AttemptRecordedEvent) OccurredAt() time.Time { return e.At }
