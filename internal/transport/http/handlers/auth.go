package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/access-platform-auth/internal/usecase"
)

// AuthHandler exposes the login, refresh, logout, and 2FA verification endpoints.
type AuthHandler struct {
	auth      *usecase.AuthService
	tokens    *usecase.TokenService
	twoFactor *usecase.TwoFactorService
	sessions  *usecase.SessionService
	metrics   *middleware.AuthMetrics
	log       *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(
	auth *usecase.AuthService,
	tokens *usecase.TokenService,
	twoFactor *usecase.TwoFactorService,
	sessions *usecase.SessionService,
	metrics *middleware.AuthMetrics,
	log *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		tokens:    tokens,
		twoFactor: twoFactor,
		sessions:  sessions,
		metrics:   metrics,
		log:       log,
	}
}

// RegisterRoutes binds the public authentication routes. The supplied
// middleware chains guard the brute-forceable endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authGuard gin.HandlerFunc, limits map[string]gin.HandlerFunc) {
	r.POST("/login", chain(limits["login"], h.login)...)
	r.POST("/refresh", chain(limits["refresh"], h.refresh)...)
	r.POST("/2fa/verify", chain(limits["two_factor"], h.verifyTwoFactor)...)
	r.POST("/2fa/send-code", chain(limits["two_factor"], h.sendTwoFactorCode)...)
	r.POST("/logout", authGuard, h.logout)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "identifier and password are required"))
		return
	}

	input := usecase.LoginInput{
		Identifier:   req.Identifier,
		Password:     req.Password,
		CaptchaProof: req.CaptchaToken,
		RememberMe:   req.RememberMe,
		IP:           clientIP(c),
		UserAgent:    userAgent(c),
	}
	if device := strings.TrimSpace(req.DeviceInfo); device != "" {
		input.DeviceInfo = &device
	}

	result, err := h.auth.Authenticate(c.Request.Context(), input)
	if err != nil {
		h.log.Error("authenticate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
		return
	}

	h.observe(result2outcome(result))
	respondLoginResult(c, result)
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "access_token and refresh_token are required"))
		return
	}

	result, err := h.tokens.Refresh(c.Request.Context(), req.AccessToken, req.RefreshToken, usecase.IssueOptions{
		Device: usecase.DeviceContext{IP: clientIP(c), UserAgent: userAgent(c)},
	})
	if err != nil {
		h.log.Error("refresh tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "token refresh failed"))
		return
	}

	respondLoginResult(c, result)
}

func (h *AuthHandler) verifyTwoFactor(c *gin.Context) {
	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id and code are required"))
		return
	}

	device := usecase.DeviceContext{IP: clientIP(c), UserAgent: userAgent(c)}
	result, err := h.twoFactor.VerifyLogin(c.Request.Context(), req.UserID, req.Code, req.RememberMe, device)
	if err != nil {
		h.log.Error("verify two-factor", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "two-factor verification failed"))
		return
	}

	h.observe(result2outcome(result))
	respondLoginResult(c, result)
}

func (h *AuthHandler) sendTwoFactorCode(c *gin.Context) {
	var req TwoFactorSendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id is required"))
		return
	}

	if err := h.twoFactor.SendLoginCode(c.Request.Context(), req.UserID); err != nil {
		h.log.Warn("send two-factor code", zap.Error(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: usecase.ErrTwoFactorNotConfigured, Status: http.StatusConflict, Message: "no deliverable second factor"},
		}, http.StatusInternalServerError, "sending code failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "code sent"})
}

func (h *AuthHandler) logout(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LogoutRequest
	// The body is optional; default is to close just the current session.
	_ = c.ShouldBindJSON(&req)

	if req.All {
		revoked, err := h.sessions.RevokeAllForUser(c.Request.Context(), userID, "logout_all")
		if err != nil {
			h.log.Error("logout all", zap.Error(err))
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
			return
		}
		c.JSON(http.StatusOK, LogoutResponse{Revoked: revoked})
		return
	}

	sessionID, ok := middleware.GetAuthenticatedSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), sessionID, "logout"); err != nil {
		h.log.Error("logout", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "logout failed"))
		return
	}

	c.JSON(http.StatusOK, LogoutResponse{Revoked: 1})
}

func (h *AuthHandler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.Observe(outcome)
	}
}

func result2outcome(result domain.LoginResult) string {
	switch {
	case result.Succeeded:
		return "success"
	case result.RequiresTwoFactor:
		return "two_factor_pending"
	default:
		return string(result.Failure.Reason)
	}
}

func chain(limit gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if limit == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{limit, handler}
}

func clientIP(c *gin.Context) *string {
	ip := c.ClientIP()
	if ip == "" {
		return nil
	}
	return &ip
}

func userAgent(c *gin.Context) *string {
	ua := c.Request.UserAgent()
	if ua == "" {
		return nil
	}
	return &ua
}
