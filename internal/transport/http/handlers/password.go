package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/access-platform-auth/internal/usecase"
)

// PasswordHandler exposes the credential rotation endpoint.
type PasswordHandler struct {
	passwords *usecase.PasswordService
	log       *zap.Logger
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService, log *zap.Logger) *PasswordHandler {
	return &PasswordHandler{passwords: passwords, log: log}
}

// RegisterRoutes binds the authenticated password routes.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/password", h.change)
}

func (h *PasswordHandler) change(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "current_password and new_password are required"))
		return
	}

	failure, err := h.passwords.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.log.Error("change password", zap.Error(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "password change failed")
		return
	}

	if failure != nil {
		resp := LoginResponse{
			ErrorCode:  string(failure.Reason),
			Violations: failure.Violations,
			TraceID:    middleware.GetTraceID(c),
		}
		if failure.RetryAfter > 0 {
			resp.RetryAfterSeconds = int(math.Ceil(failure.RetryAfter.Seconds()))
		}
		c.JSON(failureStatus(failure.Reason), resp)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed; all sessions revoked"})
}
