package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
	"github.com/arklim/social-platform-lockout/internal/repository"
)

// SessionStatusQueryRepository implements port.SessionStatusQuery for PostgreSQL.
// Projections are built with aggregate SQL, bypassing the write-side aggregate.
type SessionStatusQueryRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
	policy  domain.LockoutPolicy
}

// NewSessionStatusQueryRepository constructs the query adapter.
func NewSessionStatusQueryRepository(pool *pgxpool.Pool, policy domain.LockoutPolicy) *SessionStatusQueryRepository {
	return &SessionStatusQueryRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		policy:  policy.Normalized(),
	}
}

// LoadSessionStatus builds the status projection for a session.
func (r *SessionStatusQueryRepository) LoadSessionStatus(ctx context.Context, sessionID string) (*port.SessionStatusProjection, error) {
	return r.load(ctx, sessionID, "")
}

// LoadSessionStatusByUser scopes the projection to one user.
func (r *SessionStatusQueryRepository) LoadSessionStatusByUser(ctx context.Context, sessionID, userID string) (*port.SessionStatusProjection, error) {
	return r.load(ctx, sessionID, userID)
}

func (r *SessionStatusQueryRepository) load(ctx context.Context, sessionID, userID string) (*port.SessionStatusProjection, error) {
	where := squirrel.Eq{"id": sessionID}
	if userID != "" {
		where["user_id"] = userID
	}
	sql, args, err := r.builder.Select(
		"id",
		"user_id",
		"locked_until",
		"created_at",
		"last_activity_at",
	).From("lockout.sessions").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select status sql: %w", err)
	}

	projection := &port.SessionStatusProjection{}
	var lockedUntil *time.Time
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(
		&projection.SessionID,
		&projection.UserID,
		&lockedUntil,
		&projection.CreatedAt,
		&projection.LastActivityAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session status: %w", err)
	}
	projection.Locked = lockedUntil != nil
	projection.LockedUntil = lockedUntil

	windowStart := time.Now().UTC().Add(-r.policy.Window)
	countSQL, countArgs, err := r.builder.Select(
		"COUNT(*)",
		"COALESCE(MAX(LEAST(risk_score + 30, 100)), 0)",
	).From("lockout.attempts").
		Where(squirrel.Eq{"session_id": sessionID, "succeeded": false}).
		Where(squirrel.GtOrEq{"attempted_at": windowStart}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count failures sql: %w", err)
	}
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&projection.FailedAttempts, &projection.MaxRiskScore); err != nil {
		return nil, fmt.Errorf("count in-window failures: %w", err)
	}

	return projection, nil
}

var _ port.SessionStatusQuery = (*SessionStatusQueryRepository)(nil)
