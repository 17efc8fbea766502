package domain

import (
	"fmt"
	"net"
	"strings"
)

// ClientIP wraps a validated IP address in canonical textual form.
type ClientIP struct {
	value string
}

// NewClientIP validates and canonicalises the supplied address.
func NewClientIP(raw string) (ClientIP, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ClientIP{}, fmt.Errorf("client ip is empty: %w", ErrInvalidFormat)
	}
	parsed := net.ParseIP(trimmed)
	if parsed == nil {
		return ClientIP{}, fmt.Errorf("client ip %q: %w", trimmed, ErrInvalidFormat)
	}
	return ClientIP{value: parsed.String()}, nil
}

// String returns the canonical address.
func (ip ClientIP) String() string {
	return ip.value
}

// IsZero reports whether the value is uninitialised.
func (ip ClientIP) IsZero() bool {
	return ip.value == ""
}

// Equal reports value equality with another address.
func (ip ClientIP) Equal(other ClientIP) bool {
	return ip.value == other.value
}
