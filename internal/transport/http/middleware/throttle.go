package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	throttleProblemType  = "https://lockout.social-platform.example.com/errors/attempt-throttled"
	throttleProblemTitle = "Too Many Authentication Attempts"
)

// ThrottleStore is the sliding-window tally backing the attempt throttle.
// The redis adapter keeps one sorted set per scoped key.
type ThrottleStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// ScopeFunc derives the tally key for a request, e.g. the client IP for
// attempt recording or the session identifier for unlock requests.
type ScopeFunc func(*gin.Context) (string, bool)

// ThrottleRule bounds how often one scope may hit a route inside the window.
type ThrottleRule struct {
	Name   string
	Limit  int
	Window time.Duration
	Scope  ScopeFunc
}

// AttemptThrottle guards the lockout endpoints against brute-force traffic
// before a request ever reaches the aggregate. It fails open: a broken tally
// store must not block legitimate authentication flows.
type AttemptThrottle struct {
	store  ThrottleStore
	logger *zap.Logger
	now    func() time.Time
}

// ThrottleProblem is the RFC 9457 payload returned with 429 responses.
type ThrottleProblem struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewAttemptThrottle builds a throttle over the provided tally store.
func NewAttemptThrottle(store ThrottleStore, logger *zap.Logger) *AttemptThrottle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptThrottle{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the clock for deterministic tests.
func (t *AttemptThrottle) WithClock(now func() time.Time) *AttemptThrottle {
	if now != nil {
		t.now = now
	}
	return t
}

// ScopeByClientIP keys the tally on the caller's address.
func ScopeByClientIP() ScopeFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// ScopeBySession keys the tally on the session_id path parameter.
func ScopeBySession() ScopeFunc {
	return func(c *gin.Context) (string, bool) {
		id := c.Param("session_id")
		return id, id != ""
	}
}

type throttleDecision struct {
	rule      ThrottleRule
	allowed   bool
	remaining int
	reset     time.Time
}

// Limit enforces the given rules on a route. Rules without a scope, limit, or
// window are skipped; the most constrained allowed rule supplies the
// X-RateLimit headers, and the first denial answers 429.
func (t *AttemptThrottle) Limit(rules ...ThrottleRule) gin.HandlerFunc {
	active := make([]ThrottleRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Scope == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "attempts"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || t.store == nil {
			c.Next()
			return
		}

		now := t.now()
		var strictest *throttleDecision

		for _, rule := range active {
			scope, ok := rule.Scope(c)
			if !ok || scope == "" {
				continue
			}

			decision, err := t.decide(c.Request.Context(), rule, fmt.Sprintf("%s:%s", rule.Name, scope), now)
			if err != nil {
				t.logger.Warn("attempt throttle check failed",
					zap.String("rule", rule.Name),
					zap.String("scope", scope),
					zap.Error(err),
				)
				continue
			}

			if !decision.allowed {
				t.deny(c, decision, now)
				return
			}
			if strictest == nil || decision.remaining < strictest.remaining {
				snapshot := decision
				strictest = &snapshot
			}
		}

		if strictest != nil {
			t.writeHeaders(c, *strictest)
		}
		c.Next()
	}
}

func (t *AttemptThrottle) decide(ctx context.Context, rule ThrottleRule, key string, now time.Time) (throttleDecision, error) {
	if err := t.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return throttleDecision{}, err
	}

	count, err := t.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return throttleDecision{}, err
	}

	reset := now.Add(rule.Window)
	if oldest, found, err := t.store.OldestAttempt(ctx, key, rule.Window, now); err != nil {
		return throttleDecision{}, err
	} else if found {
		reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		return throttleDecision{rule: rule, allowed: false, reset: reset}, nil
	}

	if err := t.store.RecordAttempt(ctx, key, now); err != nil {
		return throttleDecision{}, err
	}

	remaining := rule.Limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return throttleDecision{rule: rule, allowed: true, remaining: remaining, reset: reset}, nil
}

func (t *AttemptThrottle) writeHeaders(c *gin.Context, decision throttleDecision) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.rule.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.reset.Unix(), 10))
}

func (t *AttemptThrottle) deny(c *gin.Context, decision throttleDecision, now time.Time) {
	retryAfter := int(math.Ceil(decision.reset.Sub(now).Seconds()))
	if retryAfter < 0 {
		retryAfter = 0
	}

	t.writeHeaders(c, decision)
	c.Writer.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ThrottleProblem{
		Type:       throttleProblemType,
		Title:      throttleProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Attempt budget exhausted. Try again in %d seconds.", retryAfter),
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    GetTraceID(c),
	})
}
