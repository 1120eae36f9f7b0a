package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/access-platform-auth/internal/usecase"
)

// TwoFactorHandler exposes second-factor enrollment management.
type TwoFactorHandler struct {
	twoFactor *usecase.TwoFactorService
	log       *zap.Logger
}

// NewTwoFactorHandler constructs TwoFactorHandler.
func NewTwoFactorHandler(twoFactor *usecase.TwoFactorService, log *zap.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor, log: log}
}

// RegisterRoutes binds the authenticated 2FA management routes.
func (h *TwoFactorHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/setup", h.setup)
	r.POST("/enable", h.enable)
	r.POST("/disable", h.disable)
}

func (h *TwoFactorHandler) setup(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorSetupRequest
	_ = c.ShouldBindJSON(&req)

	setup, err := h.twoFactor.Setup(c.Request.Context(), userID, domain.TwoFactorMethod(req.Method))
	if err != nil {
		h.log.Warn("two-factor setup", zap.Error(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor already enabled"},
		}, http.StatusInternalServerError, "two-factor setup failed")
		return
	}

	c.JSON(http.StatusOK, TwoFactorSetupResponse{
		SecretKey:    setup.SecretKey,
		ProvisionURI: setup.ProvisionURI,
		Method:       string(setup.Method),
	})
}

func (h *TwoFactorHandler) enable(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "code is required"))
		return
	}

	recoveryCodes, err := h.twoFactor.Enable(c.Request.Context(), userID, req.Code)
	if err != nil {
		h.log.Warn("two-factor enable", zap.Error(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorNotConfigured, Status: http.StatusConflict, Message: "run setup first"},
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor already enabled"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusUnauthorized, Message: "invalid code"},
		}, http.StatusInternalServerError, "two-factor enable failed")
		return
	}

	c.JSON(http.StatusOK, RecoveryCodesResponse{RecoveryCodes: recoveryCodes})
}

func (h *TwoFactorHandler) disable(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password is required"))
		return
	}

	if err := h.twoFactor.Disable(c.Request.Context(), userID, req.Password); err != nil {
		h.log.Warn("two-factor disable", zap.Error(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidPassword, Status: http.StatusUnauthorized, Message: "invalid password"},
		}, http.StatusInternalServerError, "two-factor disable failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor disabled; all sessions revoked"})
}
