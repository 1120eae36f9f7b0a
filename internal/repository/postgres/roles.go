package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/access-platform-auth/internal/core/port"
)

// RoleProvider resolves role names and permission codes for token claims.
// The role model itself is owned by another service; this is a read-only view.
type RoleProvider struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleProvider wires a read-only PostgreSQL role provider.
func NewRoleProvider(exec pgExecutor) *RoleProvider {
	return &RoleProvider{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListRoleNames returns the names of roles assigned to the user.
func (r *RoleProvider) ListRoleNames(ctx context.Context, userID string) ([]string, error) {
	stmt, args, err := r.builder.
		Select("r.name").
		From("auth.roles r").
		Join("auth.user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role names sql: %w", err)
	}

	return r.queryStrings(ctx, stmt, args)
}

// ListPermissionCodes returns the distinct permission codes granted through
// the user's roles.
func (r *RoleProvider) ListPermissionCodes(ctx context.Context, userID string) ([]string, error) {
	stmt, args, err := r.builder.
		Select("DISTINCT p.code").
		From("auth.permissions p").
		Join("auth.role_permissions rp ON rp.permission_id = p.id").
		Join("auth.user_roles ur ON ur.role_id = rp.role_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("p.code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission codes sql: %w", err)
	}

	return r.queryStrings(ctx, stmt, args)
}

func (r *RoleProvider) queryStrings(ctx context.Context, stmt string, args []any) ([]string, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}

	return values, nil
}

var _ port.RoleProvider = (*RoleProvider)(nil)
