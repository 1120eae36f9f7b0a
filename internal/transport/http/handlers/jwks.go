package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-platform-auth/internal/infra/security"
)

const jwksCacheControl = "public, max-age=3600"

// JWKSHandler publishes the verification keys for offline token validation.
type JWKSHandler struct {
	provider security.KeyProvider
}

// NewJWKSHandler constructs a JWKS handler backed by the supplied key provider.
func NewJWKSHandler(provider security.KeyProvider) *JWKSHandler {
	return &JWKSHandler{provider: provider}
}

// Keys renders the JSON Web Key Set.
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "jwks not available"))
		return
	}

	payload, err := security.JWKS(h.provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to render jwks"))
		return
	}

	c.Header("Cache-Control", jwksCacheControl)
	c.Data(http.StatusOK, "application/json", payload)
}
