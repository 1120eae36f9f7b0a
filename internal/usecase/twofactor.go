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
	"github.com/arklim/access-platform-auth/internal/infra/security"
	"github.com/arklim/access-platform-auth/internal/repository"
)

var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrTwoFactorNotConfigured indicates the user has no pending or enabled
	// second-factor settings.
	ErrTwoFactorNotConfigured = errors.New("two-factor not configured")
	// ErrTwoFactorAlreadyEnabled indicates Enable was called twice.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrInvalidTwoFactorCode indicates the supplied code failed verification.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrInvalidPassword indicates the confirmation password did not match.
	ErrInvalidPassword = errors.New("invalid password")
)

// TwoFactorSetup is handed to the user exactly once during enrollment.
type TwoFactorSetup struct {
	SecretKey    string
	ProvisionURI string
	Method       domain.TwoFactorMethod
}

// TwoFactorService manages second-factor enrollment and login verification.
type TwoFactorService struct {
	cfg      *config.AppConfig
	users    port.UserRepository
	settings port.TwoFactorRepository
	totp     *security.TOTPEngine
	hasher   port.PasswordHasher
	tokens   *TokenService
	audit    port.AuditSink
	events   port.EventPublisher
	notifier port.NotificationSender
	log      *zap.Logger
}

// NewTwoFactorService constructs a TwoFactorService.
func NewTwoFactorService(
	cfg *config.AppConfig,
	users port.UserRepository,
	settings port.TwoFactorRepository,
	totp *security.TOTPEngine,
	hasher port.PasswordHasher,
	tokens *TokenService,
	audit port.AuditSink,
	events port.EventPublisher,
	notifier port.NotificationSender,
	log *zap.Logger,
) *TwoFactorService {
	return &TwoFactorService{
		cfg:      cfg,
		users:    users,
		settings: settings,
		totp:     totp,
		hasher:   hasher,
		tokens:   tokens,
		audit:    audit,
		events:   events,
		notifier: notifier,
		log:      log,
	}
}

// Setup generates a fresh secret and provisioning URI. The settings row is
// stored disabled until Enable verifies the user can produce a valid code.
func (s *TwoFactorService) Setup(ctx context.Context, userID string, method domain.TwoFactorMethod) (*TwoFactorSetup, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.settings.Get(ctx, user.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup two-factor settings: %w", err)
	}
	if existing != nil && existing.Enabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	if method == "" {
		method = domain.TwoFactorMethodApp
	}

	_, secretBase32, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	now := time.Now().UTC()
	settings := domain.TwoFactorSettings{
		UserID:    user.ID,
		SecretKey: secretBase32,
		Method:    method,
		Enabled:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		settings.CreatedAt = existing.CreatedAt
	}

	if err := s.settings.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("save two-factor settings: %w", err)
	}

	return &TwoFactorSetup{
		SecretKey:    secretBase32,
		ProvisionURI: s.totp.ProvisionURI(secretBase32, user.Email),
		Method:       method,
	}, nil
}

// Enable verifies the first code against the pending secret, activates the
// second factor, and mints single-use recovery codes. The plaintext codes are
// returned once; only hashes are kept.
func (s *TwoFactorService) Enable(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTwoFactorNotConfigured
		}
		return nil, fmt.Errorf("lookup two-factor settings: %w", err)
	}
	if settings.Enabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	ok, err := s.validateTOTP(settings.SecretKey, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTwoFactorCode
	}

	recoveryCodes, err := security.GenerateRecoveryCodes(s.cfg.TwoFactor.RecoveryCodes)
	if err != nil {
		return nil, fmt.Errorf("generate recovery codes: %w", err)
	}

	hashes := make([]string, 0, len(recoveryCodes))
	for _, rc := range recoveryCodes {
		hashes = append(hashes, security.HashToken(rc))
	}

	settings.RecoveryCodeHashes = hashes
	settings.Enabled = true
	settings.UpdatedAt = time.Now().UTC()
	if err := s.settings.Save(ctx, *settings); err != nil {
		return nil, fmt.Errorf("save two-factor settings: %w", err)
	}

	user.EnableTwoFactor()
	if err := s.users.Save(ctx, *user); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}

	s.logAction(ctx, user.ID, "two_factor_enabled", map[string]any{"method": string(settings.Method)})
	s.publishStateChanged(ctx, user.ID, settings.Method, true)

	return recoveryCodes, nil
}

// Disable removes the second factor after re-verifying the account password,
// then revokes every session so stolen tokens cannot outlive the downgrade.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	match, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return ErrInvalidPassword
	}

	settings, err := s.settings.Get(ctx, user.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup two-factor settings: %w", err)
	}

	method := domain.TwoFactorMethodApp
	if settings != nil {
		method = settings.Method
	}

	if err := s.settings.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete two-factor settings: %w", err)
	}

	user.DisableTwoFactor()
	if err := s.users.Save(ctx, *user); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	if _, err := s.tokens.RevokeAll(ctx, user.ID, "two_factor_disabled"); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	s.logAction(ctx, user.ID, "two_factor_disabled", nil)
	s.publishStateChanged(ctx, user.ID, method, false)

	return nil
}

// VerifyLogin completes a pending two-factor challenge. It accepts either a
// valid TOTP code or an unused recovery code, which is burned on use.
func (s *TwoFactorService) VerifyLogin(ctx context.Context, userID, code string, rememberMe bool, device DeviceContext) (domain.LoginResult, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.FailureResult(domain.NewFailure(domain.FailureInvalidCredentials)), nil
		}
		return domain.LoginResult{}, err
	}

	if user.Status != domain.UserStatusActive {
		return domain.FailureResult(domain.NewFailure(domain.StatusFailureReason(user.Status))), nil
	}

	settings, err := s.settings.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.FailureResult(domain.NewFailure(domain.FailureTwoFactorNotConfigured)), nil
		}
		return domain.LoginResult{}, fmt.Errorf("lookup two-factor settings: %w", err)
	}
	if !settings.Enabled || !user.TwoFactorEnabled {
		return domain.FailureResult(domain.NewFailure(domain.FailureTwoFactorNotConfigured)), nil
	}

	valid, err := s.validateTOTP(settings.SecretKey, code)
	if err != nil {
		return domain.LoginResult{}, err
	}

	codeHash := security.HashToken(strings.TrimSpace(code))

	if !valid {
		// Codes delivered over email or SMS are staged hashed and burned on use.
		if settings.ConsumePendingCode(codeHash, time.Now().UTC()) {
			if err := s.settings.Save(ctx, *settings); err != nil {
				return domain.LoginResult{}, fmt.Errorf("burn login code: %w", err)
			}
			valid = true
		}
	}

	if !valid {
		// Fall back to a single-use recovery code.
		if settings.ConsumeRecoveryCode(codeHash) {
			if err := s.settings.Save(ctx, *settings); err != nil {
				return domain.LoginResult{}, fmt.Errorf("burn recovery code: %w", err)
			}
			valid = true
		}
	}

	if !valid {
		s.logVerifyAttempt(ctx, user, device, false)
		return domain.FailureResult(domain.NewFailure(domain.FailureInvalidTwoFactorCode)), nil
	}

	now := time.Now().UTC()
	user.RecordLogin(now)
	if err := s.users.Save(ctx, *user); err != nil {
		return domain.LoginResult{}, fmt.Errorf("persist user: %w", err)
	}

	pair, session, err := s.tokens.Issue(ctx, *user, IssueOptions{Extended: rememberMe, Device: device})
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.logVerifyAttempt(ctx, user, device, true)
	s.publishSucceeded(ctx, user.ID, session.ID, device)

	return domain.SuccessResult(*user, pair), nil
}

// loginCodeTTL bounds how long a delivered code stays redeemable.
const loginCodeTTL = 5 * time.Minute

// SendLoginCode mints a fresh one-time code and delivers it over the
// configured channel for email and SMS methods. Only the code's hash is
// stored; a newly staged code replaces any previous one. App-based
// authenticators generate codes locally and never hit this path.
func (s *TwoFactorService) SendLoginCode(ctx context.Context, userID string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	settings, err := s.settings.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTwoFactorNotConfigured
		}
		return fmt.Errorf("lookup two-factor settings: %w", err)
	}
	if !settings.Enabled || settings.Method == domain.TwoFactorMethodApp {
		return ErrTwoFactorNotConfigured
	}
	if s.notifier == nil {
		return errors.New("notification sender not configured")
	}

	code, err := security.GenerateNumericCode(s.cfg.TwoFactor.Digits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	now := time.Now().UTC()
	settings.StagePendingCode(security.HashToken(code), now.Add(loginCodeTTL))
	settings.UpdatedAt = now
	if err := s.settings.Save(ctx, *settings); err != nil {
		return fmt.Errorf("stage login code: %w", err)
	}

	if err := s.notifier.SendCode(ctx, *user, settings.Method, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	return nil
}

func (s *TwoFactorService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *TwoFactorService) validateTOTP(secretBase32, code string) (bool, error) {
	secret, err := security.DecodeSecret(secretBase32)
	if err != nil {
		return false, fmt.Errorf("decode secret: %w", err)
	}

	ok, err := s.totp.ValidateCode(secret, code, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("validate code: %w", err)
	}
	return ok, nil
}

func (s *TwoFactorService) logVerifyAttempt(ctx context.Context, user *domain.User, device DeviceContext, succeeded bool) {
	if s.audit == nil {
		return
	}

	attempt := domain.LoginAttempt{
		ID:         uuid.NewString(),
		UserID:     &user.ID,
		Identifier: user.Username,
		Succeeded:  succeeded,
		IP:         device.IP,
		UserAgent:  device.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	if !succeeded {
		reason := string(domain.FailureInvalidTwoFactorCode)
		attempt.FailureReason = &reason
	}

	s.audit.LogAttempt(ctx, attempt)
}

func (s *TwoFactorService) logAction(ctx context.Context, userID, action string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.LogAction(ctx, userID, action, metadata)
}

func (s *TwoFactorService) publishSucceeded(ctx context.Context, userID, sessionID string, device DeviceContext) {
	if s.events == nil {
		return
	}

	event := domain.LoginSucceededEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
		IPAddress:  device.IP,
		UserAgent:  device.UserAgent,
		TwoFactor:  true,
	}
	if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
		s.log.Warn("publish login succeeded event", zap.Error(err))
	}
}

func (s *TwoFactorService) publishStateChanged(ctx context.Context, userID string, method domain.TwoFactorMethod, enabled bool) {
	if s.events == nil {
		return
	}

	event := domain.TwoFactorStateChangedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		Method:     method,
		Enabled:    enabled,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.PublishTwoFactorStateChanged(ctx, event); err != nil {
		s.log.Warn("publish two-factor state changed event", zap.Error(err))
	}
}
