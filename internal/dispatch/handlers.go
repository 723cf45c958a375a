package dispatch

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wanderly/pushgate/internal/errors"
	"github.com/wanderly/pushgate/internal/logger"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Send handles a notification dispatch request.
// POST /api/v1/notifications/send.
func (h *Handler) Send(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Title == "" || req.Body == "" {
		errors.AbortWithBadRequest(c, "Missing required fields: user_id, title, body", nil)
		return
	}

	ctx := logger.WithOperation(logger.WithUserID(c.Request.Context(), req.UserID), "dispatch")

	summary, err := h.service.Send(ctx, req)
	if err != nil {
		h.logger.LogError(ctx, err, "dispatch failed")
		errors.AbortWithInternal(c, err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, summary)
}
