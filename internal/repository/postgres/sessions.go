package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"refresh_token_hash",
	"ip_address",
	"user_agent",
	"device_info",
	"created_at",
	"last_seen",
	"expires_at",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionRepository using PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository wires a PostgreSQL-backed session repository.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	return &SessionRepository{exec: tx, builder: r.builder}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	stmt, args, err := r.builder.Insert("auth.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.RefreshTokenHash,
			optionalString(session.IPAddress),
			optionalString(session.UserAgent),
			optionalString(session.DeviceInfo),
			session.CreatedAt,
			session.LastSeen,
			session.ExpiresAt,
			optionalTime(session.RevokedAt),
			optionalString(session.RevokeReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID retrieves a session regardless of its revocation state.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// ListActiveByUser returns the user's sessions that are neither revoked nor expired.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	trimmedID := strings.TrimSpace(userID)
	if trimmedID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": trimmedID}).
		Where("revoked_at IS NULL").
		Where("expires_at > NOW()").
		OrderBy("last_seen DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSessionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active sessions: %w", err)
	}

	return sessions, nil
}

// UpdateLastSeen refreshes activity metadata for a live session.
func (r *SessionRepository) UpdateLastSeen(ctx context.Context, sessionID string, ip, userAgent *string) error {
	builder := r.builder.Update("auth.sessions").
		Set("last_seen", time.Now().UTC()).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL")
	if ip != nil {
		builder = builder.Set("ip_address", optionalString(ip))
	}
	if userAgent != nil {
		builder = builder.Set("user_agent", optionalString(userAgent))
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build update last seen sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}

	return nil
}

// Revoke marks a single session as revoked. Revoking an already revoked
// session is a no-op so the operation stays idempotent.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID, reason string) error {
	stmt, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", time.Now().UTC()).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// RevokeAllForUser revokes every live session of a user and reports how many
// rows were affected.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, reason string) (int, error) {
	trimmedID := strings.TrimSpace(userID)
	if trimmedID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	stmt, args, err := r.builder.Update("auth.sessions").
		Set("revoked_at", time.Now().UTC()).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"user_id": trimmedID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke all sessions sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	return scanSessionFrom(row.Scan)
}

func scanSessionRows(rows pgx.Rows) (*domain.Session, error) {
	return scanSessionFrom(rows.Scan)
}

func scanSessionFrom(scan func(dest ...any) error) (*domain.Session, error) {
	var (
		session      domain.Session
		ipAddress    sql.NullString
		userAgent    sql.NullString
		deviceInfo   sql.NullString
		revokedAt    sql.NullTime
		revokeReason sql.NullString
	)

	if err := scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenHash,
		&ipAddress,
		&userAgent,
		&deviceInfo,
		&session.CreatedAt,
		&session.LastSeen,
		&session.ExpiresAt,
		&revokedAt,
		&revokeReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if ipAddress.Valid {
		val := ipAddress.String
		session.IPAddress = &val
	}
	if userAgent.Valid {
		val := userAgent.String
		session.UserAgent = &val
	}
	if deviceInfo.Valid {
		val := deviceInfo.String
		session.DeviceInfo = &val
	}
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		session.RevokedAt = &t
	}
	if revokeReason.Valid {
		val := revokeReason.String
		session.RevokeReason = &val
	}

	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
