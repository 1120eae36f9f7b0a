package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/access-platform-auth/internal/usecase"
)

// SessionHandler lets an authenticated user inspect and terminate sessions.
type SessionHandler struct {
	sessions *usecase.SessionService
	log      *zap.Logger
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *usecase.SessionService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

// RegisterRoutes binds the authenticated session routes.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sessions", h.list)
	r.DELETE("/sessions/:id", h.revoke)
}

func (h *SessionHandler) list(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	currentID, _ := middleware.GetAuthenticatedSessionID(c)

	sessions, err := h.sessions.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, SessionResponse{
			ID:         s.ID,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			DeviceInfo: s.DeviceInfo,
			CreatedAt:  s.CreatedAt,
			LastSeen:   s.LastSeen,
			ExpiresAt:  s.ExpiresAt,
			Current:    s.ID == currentID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) revoke(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session id is required"))
		return
	}

	if err := h.sessions.RevokeOwn(c.Request.Context(), userID, sessionID, "revoked_by_user"); err != nil {
		h.log.Warn("revoke session", zap.String("session_id", sessionID), zap.Error(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
			{Err: usecase.ErrSessionOwnership, Status: http.StatusForbidden, Message: "session not owned by caller"},
		}, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "session revoked"})
}
