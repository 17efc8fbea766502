package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-lockout/internal/core/port"
)

// FailedAttemptsQueryRepository implements port.FailedAttemptsQuery for PostgreSQL.
type FailedAttemptsQueryRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewFailedAttemptsQueryRepository constructs the query adapter.
func NewFailedAttemptsQueryRepository(pool *pgxpool.Pool) *FailedAttemptsQueryRepository {
	return &FailedAttemptsQueryRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// LoadFailedAttempts returns in-range failed attempts, most recent first.
func (r *FailedAttemptsQueryRepository) LoadFailedAttempts(ctx context.Context, sessionID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	return r.load(ctx, sessionID, "", from, to, limit)
}

// LoadFailedAttemptsByUser returns in-range failed attempts for one user.
func (r *FailedAttemptsQueryRepository) LoadFailedAttemptsByUser(ctx context.Context, sessionID, userID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	return r.load(ctx, sessionID, userID, from, to, limit)
}

// CountFailedAttempts counts in-range failed attempts.
func (r *FailedAttemptsQueryRepository) CountFailedAttempts(ctx context.Context, sessionID string, from, to time.Time) (int, error) {
	return r.count(ctx, sessionID, "", from, to)
}

// CountFailedAttemptsByUser counts in-range failed attempts for one user.
func (r *FailedAttemptsQueryRepository) CountFailedAttemptsByUser(ctx context.Context, sessionID, userID string, from, to time.Time) (int, error) {
	return r.count(ctx, sessionID, userID, from, to)
}

func (r *FailedAttemptsQueryRepository) load(ctx context.Context, sessionID, userID string, from, to time.Time, limit int) ([]port.FailedAttemptProjection, error) {
	query := r.builder.Select(
		"id",
		"session_id",
		"user_id",
		"client_ip",
		"attempted_at",
		"LEAST(risk_score + 30, 100)",
		"risk_reason",
	).From("lockout.attempts").
		Where(squirrel.Eq{"session_id": sessionID, "succeeded": false}).
		Where(squirrel.GtOrEq{"attempted_at": from}).
		Where(squirrel.LtOrEq{"attempted_at": to}).
		OrderBy("attempted_at DESC", "id DESC")
	if userID != "" {
		query = query.Where(squirrel.Eq{"user_id": userID})
	}
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select failed attempts sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select failed attempts: %w", err)
	}
	defer rows.Close()

	out := make([]port.FailedAttemptProjection, 0)
	for rows.Next() {
		var projection port.FailedAttemptProjection
		if err := rows.Scan(
			&projection.ID,
			&projection.SessionID,
			&projection.UserID,
			&projection.ClientIP,
			&projection.AttemptedAt,
			&projection.RiskScore,
			&projection.RiskReason,
		); err != nil {
			return nil, fmt.Errorf("scan failed attempt: %w", err)
		}
		out = append(out, projection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed attempts: %w", err)
	}
	return out, nil
}

func (r *FailedAttemptsQueryRepository) count(ctx context.Context, sessionID, userID string, from, to time.Time) (int, error) {
	query := r.builder.Select("COUNT(*)").From("lockout.attempts").
		Where(squirrel.Eq{"session_id": sessionID, "succeeded": false}).
		Where(squirrel.GtOrEq{"attempted_at": from}).
		Where(squirrel.LtOrEq{"attempted_at": to})
	if userID != "" {
		query = query.Where(squirrel.Eq{"user_id": userID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count failed attempts sql: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	return count, nil
}

var _ port.FailedAttemptsQuery = (*FailedAttemptsQueryRepository)(nil)
