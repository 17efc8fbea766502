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

// SessionRepository implements port.SessionRepository for PostgreSQL. Optimistic
// versioning on the sessions row serialises concurrent saves per session: a
// stale writer observes zero affected rows and receives ErrConflict.
type SessionRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
	policy  domain.LockoutPolicy
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool, policy domain.LockoutPolicy) *SessionRepository {
	return &SessionRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		policy:  policy.Normalized(),
	}
}

// FindBySessionID loads a session and its attempt history, most recent first.
func (r *SessionRepository) FindBySessionID(ctx context.Context, id domain.SessionID) (*domain.AuthenticationSession, error) {
	sql, args, err := r.builder.Select(
		"user_id",
		"locked_until",
		"created_at",
		"last_activity_at",
		"version",
	).From("lockout.sessions").Where(squirrel.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var (
		userID         string
		lockedUntil    *time.Time
		createdAt      time.Time
		lastActivityAt time.Time
		version        int64
	)
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&userID, &lockedUntil, &createdAt, &lastActivityAt, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	attempts, err := r.loadAttempts(ctx, id)
	if err != nil {
		return nil, err
	}

	session, err := domain.RestoreAuthenticationSession(id, userID, attempts, lockedUntil, createdAt, lastActivityAt, version, r.policy)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return session, nil
}

// Save persists the aggregate inside a transaction: the session row is inserted
// or conditionally updated, and unsaved attempts are appended with generated ids.
func (r *SessionRepository) Save(ctx context.Context, session *domain.AuthenticationSession) (*domain.AuthenticationSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin save session: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newVersion := session.Version() + 1

	if session.Version() == 0 {
		sql, args, err := r.builder.Insert("lockout.sessions").
			Columns("id", "user_id", "locked_until", "created_at", "last_activity_at", "version").
			Values(session.ID().String(), session.UserID(), session.LockedUntil(), session.CreatedAt(), session.LastActivityAt(), newVersion).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert session sql: %w", err)
		}
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return nil, fmt.Errorf("insert session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, repository.ErrConflict
		}
	} else {
		sql, args, err := r.builder.Update("lockout.sessions").
			Set("locked_until", session.LockedUntil()).
			Set("last_activity_at", session.LastActivityAt()).
			Set("version", newVersion).
			Where(squirrel.Eq{"id": session.ID().String(), "version": session.Version()}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build update session sql: %w", err)
		}
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, repository.ErrConflict
		}
	}

	attempts := session.Attempts()
	for i := range attempts {
		if attempts[i].ID() != 0 {
			continue
		}
		sql, args, err := r.builder.Insert("lockout.attempts").
			Columns("session_id", "user_id", "attempted_at", "succeeded", "client_ip", "risk_score", "risk_reason").
			Values(
				session.ID().String(),
				attempts[i].UserID(),
				attempts[i].AttemptedAt(),
				attempts[i].Succeeded(),
				attempts[i].ClientIP().String(),
				attempts[i].RiskLevel().Score(),
				attempts[i].RiskLevel().Reason(),
			).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert attempt sql: %w", err)
		}
		var attemptID int64
		if err := tx.QueryRow(ctx, sql, args...).Scan(&attemptID); err != nil {
			return nil, fmt.Errorf("insert attempt: %w", err)
		}
		attempts[i].AssignID(attemptID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit save session: %w", err)
	}

	saved, err := domain.RestoreAuthenticationSession(
		session.ID(),
		session.UserID(),
		attempts,
		session.LockedUntil(),
		session.CreatedAt(),
		session.LastActivityAt(),
		newVersion,
		r.policy,
	)
	if err != nil {
		return nil, fmt.Errorf("restore saved session: %w", err)
	}
	return saved, nil
}

// Delete removes the session; attempts cascade via the foreign key.
func (r *SessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	sql, args, err := r.builder.Delete("lockout.sessions").Where(squirrel.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes sessions whose last activity predates the cutoff.
func (r *SessionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	sql, args, err := r.builder.Delete("lockout.sessions").Where(squirrel.Lt{"last_activity_at": cutoff}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge sessions sql: %w", err)
	}
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *SessionRepository) loadAttempts(ctx context.Context, id domain.SessionID) ([]domain.AuthenticationAttempt, error) {
	sql, args, err := r.builder.Select(
		"id",
		"user_id",
		"attempted_at",
		"succeeded",
		"client_ip",
		"risk_score",
		"risk_reason",
	).From("lockout.attempts").
		Where(squirrel.Eq{"session_id": id.String()}).
		OrderBy("attempted_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select attempts sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.AuthenticationAttempt, 0)
	for rows.Next() {
		var (
			attemptID   int64
			userID      string
			attemptedAt time.Time
			succeeded   bool
			clientIPRaw string
			riskScore   int
			riskReason  string
		)
		if err := rows.Scan(&attemptID, &userID, &attemptedAt, &succeeded, &clientIPRaw, &riskScore, &riskReason); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}

		clientIP, err := domain.NewClientIP(clientIPRaw)
		if err != nil {
			return nil, fmt.Errorf("restore attempt client ip: %w", err)
		}
		riskLevel, err := domain.NewRiskLevel(riskScore, riskReason)
		if err != nil {
			return nil, fmt.Errorf("restore attempt risk level: %w", err)
		}
		attempt, err := domain.RestoreAuthenticationAttempt(attemptID, userID, attemptedAt, succeeded, clientIP, riskLevel)
		if err != nil {
			return nil, fmt.Errorf("restore attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
