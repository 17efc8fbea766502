package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-lockout/internal/core/port"
)

const defaultLockStatePrefix = "lockout:lock_state"

type cachedLockState struct {
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// LockoutCacheRepository caches per-session lock snapshots for low-latency
// status checks.
type LockoutCacheRepository struct {
	client *red.Client
	prefix string
}

// NewLockoutCacheRepository constructs a lock-state cache helper.
func NewLockoutCacheRepository(client *red.Client, keyPrefix string) *LockoutCacheRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultLockStatePrefix
	}

	return &LockoutCacheRepository{client: client, prefix: prefix}
}

// GetLockState fetches the cached snapshot, returning (nil, nil) on cache miss.
func (r *LockoutCacheRepository) GetLockState(ctx context.Context, sessionID string) (*port.LockState, error) {
	key := r.key(sessionID)
	if key == "" {
		return nil, fmt.Errorf("session id is required")
	}

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get lock state: %w", err)
	}

	var cached cachedLockState
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		return nil, fmt.Errorf("decode cached lock state: %w", err)
	}

	return &port.LockState{Locked: cached.Locked, LockedUntil: cached.LockedUntil}, nil
}

// SetLockState stores the snapshot with the provided TTL.
func (r *LockoutCacheRepository) SetLockState(ctx context.Context, sessionID string, state port.LockState, ttl time.Duration) error {
	key := r.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(cachedLockState{Locked: state.Locked, LockedUntil: state.LockedUntil})
	if err != nil {
		return fmt.Errorf("encode lock state: %w", err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set lock state: %w", err)
	}
	return nil
}

// Invalidate removes the cached snapshot for one session.
func (r *LockoutCacheRepository) Invalidate(ctx context.Context, sessionID string) error {
	key := r.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete lock state: %w", err)
	}
	return nil
}

func (r *LockoutCacheRepository) key(sessionID string) string {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.LockoutCache = (*LockoutCacheRepository)(nil)
