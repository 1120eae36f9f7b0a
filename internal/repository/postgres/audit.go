package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
)

// AuditSink records login attempts and security actions in PostgreSQL.
// Audit writes are best-effort: a failed insert is logged and swallowed so it
// never aborts the authentication flow it documents.
type AuditSink struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	log     *zap.Logger
}

// NewAuditSink wires a PostgreSQL-backed audit sink.
func NewAuditSink(exec pgExecutor, log *zap.Logger) *AuditSink {
	return &AuditSink{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		log:     log,
	}
}

// LogAttempt records the outcome of a single authentication attempt.
func (s *AuditSink) LogAttempt(ctx context.Context, attempt domain.LoginAttempt) {
	id := attempt.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	stmt, args, err := s.builder.Insert("auth.login_attempts").
		Columns("id", "user_id", "identifier", "succeeded", "failure_reason", "ip_address", "user_agent", "created_at").
		Values(
			id,
			optionalString(attempt.UserID),
			attempt.Identifier,
			attempt.Succeeded,
			optionalString(attempt.FailureReason),
			attempt.IP,
			optionalString(attempt.UserAgent),
			createdAt,
		).
		ToSql()
	if err != nil {
		s.log.Error("build insert login attempt sql", zap.Error(err))
		return
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		s.log.Error("insert login attempt", zap.Error(err))
	}
}

// LogAction records a security-relevant action with free-form metadata.
func (s *AuditSink) LogAction(ctx context.Context, userID, action string, metadata map[string]any) {
	var payload any
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			s.log.Error("marshal audit metadata", zap.String("action", action), zap.Error(err))
		} else {
			payload = raw
		}
	}

	stmt, args, err := s.builder.Insert("auth.audit_log").
		Columns("id", "user_id", "action", "metadata", "created_at").
		Values(uuid.NewString(), userID, action, payload, time.Now().UTC()).
		ToSql()
	if err != nil {
		s.log.Error("build insert audit action sql", zap.Error(err))
		return
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		s.log.Error(fmt.Sprintf("insert audit action %s", action), zap.Error(err))
	}
}

var _ port.AuditSink = (*AuditSink)(nil)
