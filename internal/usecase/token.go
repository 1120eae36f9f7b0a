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

const refreshTokenBytes = 32

var (
	// ErrInvalidToken indicates the access token is malformed, forged, or its
	// session is gone or revoked.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates an otherwise authentic access token past expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// DeviceContext carries request metadata bound to an issued session.
type DeviceContext struct {
	IP         *string
	UserAgent  *string
	DeviceInfo *string
}

// IssueOptions configure token issuance.
type IssueOptions struct {
	// Extended selects the remember-me lifetime for the access token.
	Extended bool
	Device   DeviceContext
}

// TokenService mints, validates, refreshes, and revokes session tokens.
//
// An access token's jti claim equals the id of the session row created with
// it, and Validate performs a live session lookup on every call. That makes
// revocation take effect on the next validation, not at natural expiry.
type TokenService struct {
	cfg      *config.AppConfig
	users    port.UserRepository
	sessions port.SessionRepository
	roles    port.RoleProvider
	signer   *security.TokenSigner
	events   port.EventPublisher
	log      *zap.Logger
}

// NewTokenService constructs a TokenService.
func NewTokenService(
	cfg *config.AppConfig,
	users port.UserRepository,
	sessions port.SessionRepository,
	roles port.RoleProvider,
	signer *security.TokenSigner,
	events port.EventPublisher,
	log *zap.Logger,
) *TokenService {
	return &TokenService{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		roles:    roles,
		signer:   signer,
		events:   events,
		log:      log,
	}
}

// Issue mints a signed access token plus an opaque refresh token and persists
// the session binding them. The refresh token is 32 random bytes; only its
// SHA-256 hash is stored.
func (s *TokenService) Issue(ctx context.Context, user domain.User, opts IssueOptions) (domain.TokenPair, domain.Session, error) {
	now := time.Now().UTC()

	roles, perms, err := s.resolveAccessProfile(ctx, user.ID)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}

	accessTTL := s.cfg.JWT.AccessTokenTTL
	if opts.Extended {
		accessTTL = s.cfg.JWT.ExtendedTokenTTL
	}

	sessionID := uuid.NewString()
	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:      user.ID,
		SessionID:   sessionID,
		Roles:       roles,
		Permissions: perms,
		Issuer:      s.cfg.App.Name,
		TTL:         accessTTL,
		IssuedAt:    now,
	})
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, fmt.Errorf("build claims: %w", err)
	}

	accessToken, err := s.signer.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := security.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, fmt.Errorf("generate refresh token: %w", err)
	}

	session := domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: security.HashToken(refreshToken),
		IPAddress:        opts.Device.IP,
		UserAgent:        opts.Device.UserAgent,
		DeviceInfo:       opts.Device.DeviceInfo,
		CreatedAt:        now,
		LastSeen:         now,
		ExpiresAt:        now.Add(s.cfg.JWT.RefreshTokenTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.TokenPair{}, domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	pair := domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt.Time,
	}

	return pair, session, nil
}

// Validate checks signature and expiry, then resolves the session behind the
// jti claim. A missing or revoked session invalidates the token even when it
// is cryptographically sound.
func (s *TokenService) Validate(ctx context.Context, accessToken string) (*security.AccessTokenClaims, *domain.Session, error) {
	claims, err := s.signer.Parse(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, nil, ErrExpiredToken
		}
		return nil, nil, ErrInvalidToken
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("lookup session: %w", err)
	}

	if !session.IsActive(time.Now().UTC()) {
		return nil, nil, ErrInvalidToken
	}

	return claims, session, nil
}

// Refresh rotates a session: it accepts an expired-but-authentic access
// token, verifies the presented refresh token against the stored hash, then
// revokes the old session and issues a fresh pair.
func (s *TokenService) Refresh(ctx context.Context, accessToken, refreshToken string, opts IssueOptions) (domain.LoginResult, error) {
	invalid := domain.FailureResult(domain.NewFailure(domain.FailureTokenInvalidOrExpired))

	claims, err := s.signer.ParseAllowExpired(accessToken)
	if err != nil {
		return invalid, nil
	}

	if strings.TrimSpace(refreshToken) == "" {
		return invalid, nil
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid, nil
		}
		return domain.LoginResult{}, fmt.Errorf("lookup session: %w", err)
	}

	now := time.Now().UTC()
	if !session.IsActive(now) {
		return invalid, nil
	}
	if !security.VerifyTokenHash(refreshToken, session.RefreshTokenHash) {
		return invalid, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid, nil
		}
		return domain.LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if user.Status != domain.UserStatusActive {
		return domain.FailureResult(domain.NewFailure(domain.StatusFailureReason(user.Status))), nil
	}

	if err := s.Revoke(ctx, session.ID, "refresh_rotation"); err != nil {
		return domain.LoginResult{}, fmt.Errorf("revoke rotated session: %w", err)
	}

	user.ResetFailedAttempts()
	if err := s.users.Save(ctx, *user); err != nil {
		return domain.LoginResult{}, fmt.Errorf("persist user: %w", err)
	}

	pair, _, err := s.Issue(ctx, *user, opts)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue rotated tokens: %w", err)
	}

	return domain.SuccessResult(*user, pair), nil
}

// Revoke terminates a single session.
func (s *TokenService) Revoke(ctx context.Context, sessionID, reason string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	if err := s.sessions.Revoke(ctx, sessionID, reason); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	s.publishRevoked(ctx, sessionID, session.UserID, reason, 1)
	return nil
}

// RevokeAll terminates every active session for a user and reports how many
// were revoked.
func (s *TokenService) RevokeAll(ctx context.Context, userID, reason string) (int, error) {
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	if revoked > 0 {
		s.publishRevoked(ctx, "", userID, reason, revoked)
	}

	return revoked, nil
}

func (s *TokenService) resolveAccessProfile(ctx context.Context, userID string) ([]string, []string, error) {
	if s.roles == nil {
		return nil, nil, nil
	}

	roles, err := s.roles.ListRoleNames(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list roles: %w", err)
	}

	perms, err := s.roles.ListPermissionCodes(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list permissions: %w", err)
	}

	return roles, perms, nil
}

func (s *TokenService) publishRevoked(ctx context.Context, sessionID, userID, reason string, count int) {
	if s.events == nil {
		return
	}

	event := domain.SessionRevokedEvent{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		UserID:     userID,
		Reason:     reason,
		Revoked:    count,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.log.Warn("publish session revoked event", zap.Error(err))
	}
}
