package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SessionID identifies one tracked authentication context.
type SessionID struct {
	value uuid.UUID
}

// NewSessionID generates a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID{value: uuid.New()}
}

// ParseSessionID parses the canonical string form of a session identifier.
func ParseSessionID(raw string) (SessionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SessionID{}, fmt.Errorf("session id is empty: %w", ErrInvalidFormat)
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return SessionID{}, fmt.Errorf("session id %q: %w", trimmed, ErrInvalidFormat)
	}
	return SessionID{value: parsed}, nil
}

// String returns the canonical textual form of the identifier.
func (id SessionID) String() string {
	return id.value.String()
}

// IsZero reports whether the identifier is the uninitialised zero value.
func (id SessionID) IsZero() bool {
	return id.value == uuid.Nil
}

// Equal reports value equality with another identifier.
func (id SessionID) Equal(other SessionID) bool {
	return id.value == other.value
}
