package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the error against known cases or falls back
// to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// failureStatus maps a domain failure reason to its HTTP status code.
// Account-status reasons stay distinguishable; credential mismatches are one
// opaque 401.
func failureStatus(reason domain.FailureReason) int {
	switch reason {
	case domain.FailureInvalidCredentials,
		domain.FailureInvalidTwoFactorCode,
		domain.FailureTokenInvalidOrExpired:
		return http.StatusUnauthorized
	case domain.FailureAccountLocked:
		return http.StatusLocked
	case domain.FailureRecaptchaFailed:
		return http.StatusBadRequest
	case domain.FailurePasswordPolicyViolation,
		domain.FailurePasswordHistoryViolation:
		return http.StatusUnprocessableEntity
	case domain.FailureTwoFactorNotConfigured:
		return http.StatusConflict
	default:
		// email_not_activated, email_not_confirmed, suspended, deleted
		return http.StatusForbidden
	}
}

// respondLoginResult renders a usecase LoginResult as the unified login shape.
func respondLoginResult(c *gin.Context, result domain.LoginResult) {
	traceID := middleware.GetTraceID(c)

	switch {
	case result.Succeeded:
		resp := LoginResponse{
			Succeeded:   true,
			UserID:      result.UserID,
			AccessToken: result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			TraceID:     traceID,
		}
		expiresAt := result.Tokens.ExpiresAt
		resp.ExpiresAt = &expiresAt
		if result.User != nil {
			summary := newUserSummary(*result.User)
			resp.User = &summary
		}
		c.JSON(http.StatusOK, resp)

	case result.RequiresTwoFactor:
		c.JSON(http.StatusOK, LoginResponse{
			RequiresTwoFactor: true,
			UserID:            result.UserID,
			TraceID:           traceID,
		})

	default:
		failure := result.Failure
		resp := LoginResponse{
			ErrorCode:  string(failure.Reason),
			Violations: failure.Violations,
			TraceID:    traceID,
		}
		if failure.RetryAfter > 0 {
			resp.RetryAfterSeconds = int(math.Ceil(failure.RetryAfter.Seconds()))
		}
		c.JSON(failureStatus(failure.Reason), resp)
	}
}
