package port

import (
	"context"

	"github.com/arklim/access-platform-auth/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	// Validate returns the list of violated rules; an empty slice means the
	// password is acceptable.
	Validate(password string, ctx domain.PasswordContext) []string
}

// CaptchaVerifier validates an externally issued CAPTCHA proof.
type CaptchaVerifier interface {
	Validate(ctx context.Context, proof string, remoteIP string) (bool, error)
}

// AuditSink records authentication attempts and security-relevant actions.
// Failures here must never abort the surrounding flow.
type AuditSink interface {
	LogAttempt(ctx context.Context, attempt domain.LoginAttempt)
	LogAction(ctx context.Context, userID, action string, metadata map[string]any)
}

// NotificationSender delivers one-time codes over email or SMS.
type NotificationSender interface {
	SendCode(ctx context.Context, user domain.User, method domain.TwoFactorMethod, code string) error
}

// RoleProvider resolves the role names and permission codes embedded in
// access token claims. Role and permission management itself lives outside
// this service.
type RoleProvider interface {
	ListRoleNames(ctx context.Context, userID string) ([]string, error)
	ListPermissionCodes(ctx context.Context, userID string) ([]string, error)
}
