package domain

import "time"

// FailureReason is the closed set of authentication failure causes.
// Identifier-vs-password mismatches are deliberately collapsed into
// FailureInvalidCredentials to prevent account enumeration; account-status
// failures stay distinguishable for support workflows.
type FailureReason string

const (
	FailureRecaptchaFailed          FailureReason = "recaptcha_failed"
	FailureInvalidCredentials       FailureReason = "invalid_credentials"
	FailureAccountLocked            FailureReason = "account_locked"
	FailureEmailNotActivated        FailureReason = "email_not_activated"
	FailureAccountSuspended         FailureReason = "account_suspended"
	FailureAccountDeleted           FailureReason = "account_deleted"
	FailureEmailNotConfirmed        FailureReason = "email_not_confirmed"
	FailureInvalidTwoFactorCode     FailureReason = "invalid_two_factor_code"
	FailureTokenInvalidOrExpired    FailureReason = "token_invalid_or_expired"
	FailurePasswordPolicyViolation  FailureReason = "password_policy_violation"
	FailurePasswordHistoryViolation FailureReason = "password_history_violation"
	FailureTwoFactorNotConfigured   FailureReason = "two_factor_not_configured"
)

// Failure describes why an authentication flow was rejected.
type Failure struct {
	Reason FailureReason
	// RetryAfter carries the remaining lockout window for FailureAccountLocked.
	RetryAfter time.Duration
	// Violations lists the individual rule failures for password policy rejections.
	Violations []string
}

// NewFailure builds a Failure for the supplied reason.
func NewFailure(reason FailureReason) *Failure {
	return &Failure{Reason: reason}
}

// StatusFailureReason maps a non-active account status to its failure reason.
func StatusFailureReason(status UserStatus) FailureReason {
	switch status {
	case UserStatusRegistered:
		return FailureEmailNotActivated
	case UserStatusBlocked:
		return FailureAccountLocked
	case UserStatusDeleted:
		return FailureAccountDeleted
	default:
		return FailureAccountSuspended
	}
}

// TokenPair bundles a signed access token and its opaque refresh companion.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// LoginResult is the outcome of Authenticate, VerifyTwoFactor, and Refresh.
// Exactly one of three shapes is populated: Succeeded with tokens,
// RequiresTwoFactor with the user id, or Failure.
type LoginResult struct {
	Succeeded         bool
	RequiresTwoFactor bool
	UserID            string
	User              *User
	Tokens            *TokenPair
	Failure           *Failure
}

// SuccessResult builds a successful login outcome.
func SuccessResult(user User, tokens TokenPair) LoginResult {
	sanitized := user.Sanitized()
	return LoginResult{
		Succeeded: true,
		UserID:    user.ID,
		User:      &sanitized,
		Tokens:    &tokens,
	}
}

// TwoFactorPendingResult builds the intermediate outcome for 2FA-enabled users.
func TwoFactorPendingResult(userID string) LoginResult {
	return LoginResult{RequiresTwoFactor: true, UserID: userID}
}

// FailureResult builds a failed login outcome.
func FailureResult(failure *Failure) LoginResult {
	return LoginResult{Failure: failure}
}
