package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler handles payment gateway webhook events.
type WebhookHandler struct {
	service *Service
	log     *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service *Service, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook handles incoming Stripe webhook events. Duplicates are
// acknowledged 200 without effect so the gateway stops redelivering.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	disposition, err := h.service.HandleStripeEvent(
		c.Request.Context(),
		payload,
		c.GetHeader("Stripe-Signature"),
	)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			h.log.Warn("invalid webhook signature", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		h.log.Error("failed to process webhook event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(disposition)})
}
