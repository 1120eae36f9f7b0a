package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/infra/security"
)

func TestIssueAndValidate(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	user := env.users.get(t, "user-1")

	pair, session, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens populated")
	}
	if session.UserID != "user-1" {
		t.Fatalf("expected session bound to user, got %q", session.UserID)
	}
	if session.RefreshTokenHash != security.HashToken(pair.RefreshToken) {
		t.Fatal("expected session to store the refresh token hash")
	}

	claims, validated, err := env.tokens.Validate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected uid claim, got %q", claims.UserID)
	}
	if claims.SessionID() != session.ID || validated.ID != session.ID {
		t.Fatal("expected jti to match the persisted session id")
	}
}

func TestIssueExtendedLifetime(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	user := env.users.get(t, "user-1")

	short, _, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	long, _, err := env.tokens.Issue(context.Background(), user, IssueOptions{Extended: true})
	if err != nil {
		t.Fatalf("Issue extended: %v", err)
	}
	if !long.ExpiresAt.After(short.ExpiresAt) {
		t.Fatalf("extended expiry %v not after standard %v", long.ExpiresAt, short.ExpiresAt)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))

	if _, _, err := env.tokens.Validate(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))

	expired := signExpiredToken(t, env, "user-1", "session-x")
	if _, _, err := env.tokens.Validate(context.Background(), expired); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateAfterRevoke(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	user := env.users.get(t, "user-1")

	pair, session, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := env.tokens.Revoke(context.Background(), session.ID, "logout"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// Revocation reaches tokens before their natural expiry.
	if _, _, err := env.tokens.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after revoke, got %v", err)
	}
	if env.events.revoked != 1 {
		t.Fatalf("expected one revoked event, got %d", env.events.revoked)
	}
}

func TestRevokeUnknownSession(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))

	if err := env.tokens.Revoke(context.Background(), "missing", "logout"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevokeAllInvalidatesEverySession(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	user := env.users.get(t, "user-1")

	var pairs []domain.TokenPair
	for i := 0; i < 3; i++ {
		pair, _, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
		if err != nil {
			t.Fatalf("Issue %d: %v", i, err)
		}
		pairs = append(pairs, pair)
	}

	revoked, err := env.tokens.RevokeAll(context.Background(), "user-1", "password_changed")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if revoked != 3 {
		t.Fatalf("expected 3 revoked, got %d", revoked)
	}
	for i, pair := range pairs {
		if _, _, err := env.tokens.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("session %d: expected ErrInvalidToken, got %v", i, err)
		}
	}

	// Idempotent: a second sweep finds nothing and publishes nothing.
	revoked, err = env.tokens.RevokeAll(context.Background(), "user-1", "password_changed")
	if err != nil {
		t.Fatalf("RevokeAll again: %v", err)
	}
	if revoked != 0 {
		t.Fatalf("expected 0 revoked on second sweep, got %d", revoked)
	}
	if env.events.revoked != 1 {
		t.Fatalf("expected one revoked event, got %d", env.events.revoked)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	user := activeUser("user-1")
	user.AccessFailedCount = 2
	env := newTestEnv(t, user)

	pair, session, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	result, err := env.tokens.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, IssueOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Tokens.AccessToken == pair.AccessToken || result.Tokens.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a fresh token pair")
	}

	// The rotated-out session is dead.
	old, err := env.sessions.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if old.RevokedAt == nil || old.RevokeReason == nil || *old.RevokeReason != "refresh_rotation" {
		t.Fatalf("expected old session revoked with refresh_rotation, got %+v", old)
	}

	// Successful refresh counts as authentication for the lockout machine.
	if stored := env.users.get(t, "user-1"); stored.AccessFailedCount != 0 {
		t.Fatalf("expected counter reset, got %d", stored.AccessFailedCount)
	}
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	user := env.users.get(t, "user-1")

	pair, session, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Same session, same signer, but an expiry in the past. The refresh
	// flow must accept it as long as the signature checks out.
	expired := signExpiredToken(t, env, user.ID, session.ID)

	result, err := env.tokens.Refresh(context.Background(), expired, pair.RefreshToken, IssueOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected success with expired access token, got %+v", result)
	}
}

func TestRefreshRejections(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	user := env.users.get(t, "user-1")

	pair, session, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := []struct {
		name         string
		accessToken  string
		refreshToken string
	}{
		{"garbage access token", "garbage", pair.RefreshToken},
		{"empty refresh token", pair.AccessToken, ""},
		{"wrong refresh token", pair.AccessToken, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
		{"unknown session", signExpiredToken(t, env, user.ID, "no-such-session"), pair.RefreshToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := env.tokens.Refresh(context.Background(), tc.accessToken, tc.refreshToken, IssueOptions{})
			if err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			if result.Failure == nil || result.Failure.Reason != domain.FailureTokenInvalidOrExpired {
				t.Fatalf("expected token_invalid_or_expired, got %+v", result)
			}
		})
	}

	// A revoked session cannot be refreshed, even with matching tokens.
	if err := env.tokens.Revoke(context.Background(), session.ID, "logout"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	result, err := env.tokens.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, IssueOptions{})
	if err != nil {
		t.Fatalf("Refresh after revoke: %v", err)
	}
	if result.Failure == nil || result.Failure.Reason != domain.FailureTokenInvalidOrExpired {
		t.Fatalf("expected token_invalid_or_expired after revoke, got %+v", result)
	}
}

func TestRefreshRejectsInactiveUser(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	user := env.users.get(t, "user-1")

	pair, _, err := env.tokens.Issue(context.Background(), user, IssueOptions{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	user.Status = domain.UserStatusSuspended
	if err := env.users.Save(context.Background(), user); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result, err := env.tokens.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, IssueOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Failure == nil || result.Failure.Reason != domain.FailureAccountSuspended {
		t.Fatalf("expected account_suspended, got %+v", result)
	}
}

// signExpiredToken mints an authentic token for the given session whose
// expiry already passed.
func signExpiredToken(t *testing.T, env *testEnv, userID, sessionID string) string {
	t.Helper()

	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:    userID,
		SessionID: sessionID,
		Issuer:    env.cfg.App.Name,
		TTL:       time.Hour,
		IssuedAt:  time.Now().UTC().Add(-3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("NewAccessTokenClaims: %v", err)
	}
	token, err := env.signer.Sign(claims)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return token
}
