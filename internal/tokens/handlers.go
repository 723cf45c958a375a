package tokens

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wanderly/pushgate/internal/errors"
	"github.com/wanderly/pushgate/internal/logger"
)

type Handler struct {
	store  Store
	logger *logger.Logger
}

func NewHandler(store Store, logger *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// RegisterRequest is the request body for registering a device token.
type RegisterRequest struct {
	UserID   string `json:"user_id"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// UnregisterRequest is the request body for removing a device token.
type UnregisterRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Register handles device token registration.
// POST /api/v1/tokens/register.
func (h *Handler) Register(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("token-api")

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Token == "" {
		errors.AbortWithBadRequest(c, "Missing required fields: user_id, token", nil)
		return
	}

	if req.Platform != "" && req.Platform != PlatformIOS && req.Platform != PlatformAndroid {
		errors.AbortWithBadRequest(c, "Invalid platform, expected 'ios' or 'android'", nil)
		return
	}

	token := DeviceToken{Token: req.Token, Platform: req.Platform}
	if err := h.store.Register(c.Request.Context(), req.UserID, token); err != nil {
		log.LogError(c.Request.Context(), err, "failed to register device token")
		errors.AbortWithInternal(c, err.Error(), nil)
		return
	}

	c.Status(http.StatusNoContent)
}

// Unregister handles device token removal.
// POST /api/v1/tokens/unregister.
func (h *Handler) Unregister(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("token-api")

	var req UnregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Token == "" {
		errors.AbortWithBadRequest(c, "Missing required fields: user_id, token", nil)
		return
	}

	if err := h.store.Unregister(c.Request.Context(), req.UserID, req.Token); err != nil {
		log.LogError(c.Request.Context(), err, "failed to unregister device token")
		errors.AbortWithInternal(c, err.Error(), nil)
		return
	}

	c.Status(http.StatusNoContent)
}
