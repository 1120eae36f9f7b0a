package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/infra/config"
	"github.com/arklim/access-platform-auth/internal/infra/logger"
	"github.com/arklim/access-platform-auth/internal/repository"
)

// LoginInput carries everything the login orchestrator needs for one attempt.
type LoginInput struct {
	Identifier   string
	Password     string
	CaptchaProof string
	RememberMe   bool
	IP           *string
	UserAgent    *string
	DeviceInfo   *string
}

// AuthService orchestrates credential verification: CAPTCHA, user resolution,
// lockout state, password verification, the two-factor branch, and token
// issuance. Exactly one audit record is written per attempt, whatever the
// outcome.
type AuthService struct {
	cfg     *config.AppConfig
	users   port.UserRepository
	hasher  port.PasswordHasher
	captcha port.CaptchaVerifier
	tokens  *TokenService
	audit   port.AuditSink
	events  port.EventPublisher
	log     *zap.Logger
}

// NewAuthService constructs the login orchestrator.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	hasher port.PasswordHasher,
	captcha port.CaptchaVerifier,
	tokens *TokenService,
	audit port.AuditSink,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:     cfg,
		users:   users,
		hasher:  hasher,
		captcha: captcha,
		tokens:  tokens,
		audit:   audit,
		events:  events,
		log:     log,
	}
}

// Authenticate runs the ordered login algorithm and reports one of three
// outcomes: success with tokens, a pending two-factor challenge, or a typed
// failure. Unknown identifiers and wrong passwords produce the same failure
// so callers cannot enumerate accounts.
func (s *AuthService) Authenticate(ctx context.Context, input LoginInput) (domain.LoginResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return s.fail(ctx, input, nil, domain.NewFailure(domain.FailureInvalidCredentials), false), nil
	}

	if input.CaptchaProof != "" && s.captcha != nil {
		remoteIP := ""
		if input.IP != nil {
			remoteIP = *input.IP
		}
		ok, err := s.captcha.Validate(ctx, input.CaptchaProof, remoteIP)
		if err != nil {
			s.log.Warn("captcha verification unavailable", zap.Error(err))
			return s.fail(ctx, input, nil, domain.NewFailure(domain.FailureRecaptchaFailed), false), nil
		}
		if !ok {
			return s.fail(ctx, input, nil, domain.NewFailure(domain.FailureRecaptchaFailed), false), nil
		}
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.fail(ctx, input, nil, domain.NewFailure(domain.FailureInvalidCredentials), false), nil
		}
		return domain.LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	now := time.Now().UTC()

	// An elapsed lockout lifts lazily on the next attempt.
	if user.LockoutExpired(now) {
		user.Unlock()
		if err := s.users.Save(ctx, *user); err != nil {
			return domain.LoginResult{}, fmt.Errorf("persist unlock: %w", err)
		}
	}

	if user.Status != domain.UserStatusActive {
		failure := domain.NewFailure(domain.StatusFailureReason(user.Status))
		if failure.Reason == domain.FailureAccountLocked {
			failure.RetryAfter = user.RemainingLockout(now)
		}
		return s.fail(ctx, input, user, failure, false), nil
	}

	match, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		locked := user.RecordFailedAttempt(s.cfg.Lockout.Threshold, s.cfg.Lockout.Duration, now)
		// The counter and any lock must land even though the attempt fails.
		if err := s.users.Save(ctx, *user); err != nil {
			return domain.LoginResult{}, fmt.Errorf("persist failed attempt: %w", err)
		}

		failure := domain.NewFailure(domain.FailureInvalidCredentials)
		if locked {
			failure = domain.NewFailure(domain.FailureAccountLocked)
			failure.RetryAfter = user.RemainingLockout(now)
		}
		return s.fail(ctx, input, user, failure, locked), nil
	}

	user.RecordLogin(now)
	if err := s.users.Save(ctx, *user); err != nil {
		return domain.LoginResult{}, fmt.Errorf("persist user: %w", err)
	}

	if !user.EmailConfirmed {
		return s.fail(ctx, input, user, domain.NewFailure(domain.FailureEmailNotConfirmed), false), nil
	}

	if user.TwoFactorEnabled {
		// No tokens and no session row until the second factor clears.
		s.logAttempt(ctx, input, user, nil)
		return domain.TwoFactorPendingResult(user.ID), nil
	}

	pair, session, err := s.tokens.Issue(ctx, *user, IssueOptions{
		Extended: input.RememberMe,
		Device: DeviceContext{
			IP:         input.IP,
			UserAgent:  input.UserAgent,
			DeviceInfo: input.DeviceInfo,
		},
	})
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.logAttempt(ctx, input, user, nil)
	s.publishSucceeded(ctx, user.ID, session.ID, input, false)

	return domain.SuccessResult(*user, pair), nil
}

func (s *AuthService) fail(ctx context.Context, input LoginInput, user *domain.User, failure *domain.Failure, locked bool) domain.LoginResult {
	s.logAttempt(ctx, input, user, failure)
	s.publishFailed(ctx, input, user, failure, locked)
	return domain.FailureResult(failure)
}

func (s *AuthService) logAttempt(ctx context.Context, input LoginInput, user *domain.User, failure *domain.Failure) {
	if s.audit == nil {
		return
	}

	attempt := domain.LoginAttempt{
		ID:         uuid.NewString(),
		Identifier: logger.MaskEmail(input.Identifier),
		Succeeded:  failure == nil,
		IP:         input.IP,
		UserAgent:  input.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	if user != nil {
		attempt.UserID = &user.ID
	}
	if failure != nil {
		reason := string(failure.Reason)
		attempt.FailureReason = &reason
	}

	s.audit.LogAttempt(ctx, attempt)
}

func (s *AuthService) publishSucceeded(ctx context.Context, userID, sessionID string, input LoginInput, twoFactor bool) {
	if s.events == nil {
		return
	}

	event := domain.LoginSucceededEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
		IPAddress:  input.IP,
		UserAgent:  input.UserAgent,
		TwoFactor:  twoFactor,
	}
	if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
		s.log.Warn("publish login succeeded event", zap.Error(err))
	}
}

func (s *AuthService) publishFailed(ctx context.Context, input LoginInput, user *domain.User, failure *domain.Failure, locked bool) {
	if s.events == nil {
		return
	}

	event := domain.LoginFailedEvent{
		EventID:    uuid.NewString(),
		Identifier: logger.MaskEmail(input.Identifier),
		Reason:     failure.Reason,
		Locked:     locked,
		OccurredAt: time.Now().UTC(),
		IPAddress:  input.IP,
	}
	if user != nil {
		event.UserID = user.ID
	}
	if err := s.events.PublishLoginFailed(ctx, event); err != nil {
		s.log.Warn("publish login failed event", zap.Error(err))
	}
}
