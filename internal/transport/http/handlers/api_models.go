package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"error_code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID                    string            `json:"id"`
	Username              string            `json:"username"`
	Email                 string            `json:"email"`
	Status                domain.UserStatus `json:"status"`
	TwoFactorEnabled      bool              `json:"two_factor_enabled"`
	RequirePasswordChange bool              `json:"require_password_change"`
	LastLogin             *time.Time        `json:"last_login,omitempty"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:                    user.ID,
		Username:              user.Username,
		Email:                 user.Email,
		Status:                user.Status,
		TwoFactorEnabled:      user.TwoFactorEnabled,
		RequirePasswordChange: user.RequirePasswordChange,
		LastLogin:             user.LastLogin,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Identifier   string `json:"identifier" binding:"required"`
	Password     string `json:"password" binding:"required"`
	RememberMe   bool   `json:"remember_me"`
	CaptchaToken string `json:"captcha_token"`
	DeviceInfo   string `json:"device_info"`
}

// RefreshRequest defines the payload for the token refresh endpoint.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest defines the payload for the logout endpoint.
type LogoutRequest struct {
	// All revokes every session for the caller instead of just the current one.
	All bool `json:"all"`
}

// TwoFactorVerifyRequest completes a pending two-factor login challenge.
type TwoFactorVerifyRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Code       string `json:"code" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// TwoFactorSendCodeRequest asks for a one-time code delivery to the user's
// enrolled email or SMS channel during a pending login challenge.
type TwoFactorSendCodeRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// TwoFactorSetupRequest starts second-factor enrollment.
type TwoFactorSetupRequest struct {
	Method string `json:"method"`
}

// TwoFactorEnableRequest confirms enrollment with a first valid code.
type TwoFactorEnableRequest struct {
	Code string `json:"code" binding:"required"`
}

// TwoFactorDisableRequest removes the second factor after password re-entry.
type TwoFactorDisableRequest struct {
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest rotates the caller's credential.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// LoginResponse is the unified shape for login, 2FA verification, and refresh.
type LoginResponse struct {
	Succeeded         bool         `json:"succeeded"`
	RequiresTwoFactor bool         `json:"requires_two_factor"`
	UserID            string       `json:"user_id,omitempty"`
	AccessToken       string       `json:"access_token,omitempty"`
	RefreshToken      string       `json:"refresh_token,omitempty"`
	ExpiresAt         *time.Time   `json:"expires_at,omitempty"`
	User              *UserSummary `json:"user,omitempty"`
	ErrorCode         string       `json:"error_code,omitempty"`
	RetryAfterSeconds int          `json:"retry_after_seconds,omitempty"`
	Violations        []string     `json:"violations,omitempty"`
	TraceID           string       `json:"trace_id,omitempty"`
}

// TwoFactorSetupResponse hands the enrollment secret to the user once.
type TwoFactorSetupResponse struct {
	SecretKey    string `json:"secret_key"`
	ProvisionURI string `json:"provision_uri"`
	Method       string `json:"method"`
}

// RecoveryCodesResponse returns the plaintext recovery codes exactly once.
type RecoveryCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

// SessionResponse is one row of the session listing.
type SessionResponse struct {
	ID         string    `json:"id"`
	IPAddress  *string   `json:"ip_address,omitempty"`
	UserAgent  *string   `json:"user_agent,omitempty"`
	DeviceInfo *string   `json:"device_info,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeen   time.Time `json:"last_seen"`
	ExpiresAt  time.Time `json:"expires_at"`
	Current    bool      `json:"current"`
}

// LogoutResponse reports how many sessions a logout closed.
type LogoutResponse struct {
	Revoked int `json:"revoked"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports dependency health.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
