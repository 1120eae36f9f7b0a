package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/infra/config"
	"github.com/arklim/access-platform-auth/internal/repository"
)

// PasswordService enforces password policy and history on credential changes.
type PasswordService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	hasher    port.PasswordHasher
	validator port.PasswordPolicyValidator
	tokens    *TokenService
	audit     port.AuditSink
	events    port.EventPublisher
	log       *zap.Logger
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(
	cfg *config.AppConfig,
	users port.UserRepository,
	hasher port.PasswordHasher,
	validator port.PasswordPolicyValidator,
	tokens *TokenService,
	audit port.AuditSink,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	return &PasswordService{
		cfg:       cfg,
		users:     users,
		hasher:    hasher,
		validator: validator,
		tokens:    tokens,
		audit:     audit,
		events:    events,
		log:       log,
	}
}

// ChangePassword rotates a user's credential. The new password must satisfy
// the strength rules and must not match any of the last N stored hashes.
// Acceptance revokes every session so other devices re-authenticate. A nil
// failure means the change was applied.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*domain.Failure, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	match, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify current password: %w", err)
	}
	if !match {
		return domain.NewFailure(domain.FailureInvalidCredentials), nil
	}

	passwordCtx := domain.PasswordContext{
		Username: user.Username,
		Email:    user.Email,
		Phone:    user.Phone,
	}
	if violations := s.validator.Validate(newPassword, passwordCtx); len(violations) > 0 {
		failure := domain.NewFailure(domain.FailurePasswordPolicyViolation)
		failure.Violations = violations
		return failure, nil
	}

	reused, err := s.reusesRecentPassword(ctx, user, newPassword)
	if err != nil {
		return nil, err
	}
	if reused {
		return domain.NewFailure(domain.FailurePasswordHistoryViolation), nil
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user.ChangePassword(newHash, now)
	if err := s.users.Save(ctx, *user); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}

	entry := domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		PasswordHash: newHash,
		SetAt:        now,
	}
	if err := s.users.AddPasswordHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append password history: %w", err)
	}
	if err := s.users.TrimPasswordHistory(ctx, user.ID, s.cfg.Password.HistoryDepth); err != nil {
		return nil, fmt.Errorf("trim password history: %w", err)
	}

	revoked, err := s.tokens.RevokeAll(ctx, user.ID, "password_changed")
	if err != nil {
		return nil, fmt.Errorf("revoke sessions: %w", err)
	}

	if s.audit != nil {
		s.audit.LogAction(ctx, user.ID, "password_changed", map[string]any{"sessions_revoked": revoked})
	}
	s.publishChanged(ctx, user.ID, revoked)

	return nil, nil
}

// ForcePasswordChange flags the account so the next login demands a rotation.
func (s *PasswordService) ForcePasswordChange(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	user.RequirePasswordChange = true
	if err := s.users.Save(ctx, *user); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	if s.audit != nil {
		s.audit.LogAction(ctx, user.ID, "password_change_required", nil)
	}

	return nil
}

// reusesRecentPassword compares the candidate against the current hash and
// the retained history through the hasher, never by raw hash equality.
func (s *PasswordService) reusesRecentPassword(ctx context.Context, user *domain.User, candidate string) (bool, error) {
	match, err := s.hasher.Verify(candidate, user.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("verify against current hash: %w", err)
	}
	if match {
		return true, nil
	}

	history, err := s.users.ListPasswordHistory(ctx, user.ID, s.cfg.Password.HistoryDepth)
	if err != nil {
		return false, fmt.Errorf("list password history: %w", err)
	}

	for _, entry := range history {
		match, err := s.hasher.Verify(candidate, entry.PasswordHash)
		if err != nil {
			return false, fmt.Errorf("verify against history: %w", err)
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}

func (s *PasswordService) publishChanged(ctx context.Context, userID string, revoked int) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:         uuid.NewString(),
		UserID:          userID,
		SessionsRevoked: revoked,
		OccurredAt:      time.Now().UTC(),
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.log.Warn("publish password changed event", zap.Error(err))
	}
}
