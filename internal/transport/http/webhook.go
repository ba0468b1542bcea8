package http

import (
	"errors"
	"net/http"

	"matrix-quest-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type webhookRequest struct {
	Username       string `json:"username" binding:"required"`
	QuestionNumber int    `json:"questionNumber"`
	Finished       bool   `json:"finished"`
}

// sendWebhook relays a progress notification to the configured webhook so the
// webhook URL never reaches the client.
func (h *Handler) sendWebhook(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}
	if h.webhook == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook URL not set"})
		return
	}

	err := h.webhook.Notify(c.Request.Context(), domain.Notification{
		Username:       req.Username,
		QuestionNumber: req.QuestionNumber,
		Finished:       req.Finished,
	})
	switch {
	case errors.Is(err, domain.ErrNotifierNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook URL not set"})
	case err != nil:
		h.logger.Warn("webhook relay failed", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send webhook"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
