package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/repository"
)

// TwoFactorRepository implements port.TwoFactorRepository using PostgreSQL.
type TwoFactorRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTwoFactorRepository wires a PostgreSQL-backed two-factor settings repository.
func NewTwoFactorRepository(exec pgExecutor) *TwoFactorRepository {
	return &TwoFactorRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get retrieves a user's second-factor configuration.
func (r *TwoFactorRepository) Get(ctx context.Context, userID string) (*domain.TwoFactorSettings, error) {
	stmt, args, err := r.builder.
		Select("user_id", "secret_key", "method", "recovery_code_hashes",
			"pending_code_hash", "pending_code_expires_at", "enabled", "created_at", "updated_at").
		From("auth.two_factor_settings").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select two factor settings sql: %w", err)
	}

	var settings domain.TwoFactorSettings
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&settings.UserID,
		&settings.SecretKey,
		&settings.Method,
		&settings.RecoveryCodeHashes,
		&settings.PendingCodeHash,
		&settings.PendingCodeExpiresAt,
		&settings.Enabled,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan two factor settings: %w", err)
	}

	return &settings, nil
}

// Save upserts the settings, including the remaining recovery code hashes.
func (r *TwoFactorRepository) Save(ctx context.Context, settings domain.TwoFactorSettings) error {
	now := time.Now().UTC()
	createdAt := settings.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	stmt := `
		INSERT INTO auth.two_factor_settings
			(user_id, secret_key, method, recovery_code_hashes,
			 pending_code_hash, pending_code_expires_at, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			secret_key = EXCLUDED.secret_key,
			method = EXCLUDED.method,
			recovery_code_hashes = EXCLUDED.recovery_code_hashes,
			pending_code_hash = EXCLUDED.pending_code_hash,
			pending_code_expires_at = EXCLUDED.pending_code_expires_at,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.exec.Exec(ctx, stmt,
		settings.UserID,
		settings.SecretKey,
		settings.Method,
		settings.RecoveryCodeHashes,
		settings.PendingCodeHash,
		settings.PendingCodeExpiresAt,
		settings.Enabled,
		createdAt,
		now,
	); err != nil {
		return fmt.Errorf("upsert two factor settings: %w", err)
	}

	return nil
}

// Delete removes a user's second-factor configuration entirely.
func (r *TwoFactorRepository) Delete(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.Delete("auth.two_factor_settings").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete two factor settings sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete two factor settings: %w", err)
	}

	return nil
}

var _ port.TwoFactorRepository = (*TwoFactorRepository)(nil)
