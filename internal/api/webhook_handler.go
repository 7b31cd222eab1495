package api

import (
	"errors"
	"log"
	"net/http"

	"trainwise/studio-backend/internal/billing"
	"trainwise/studio-backend/internal/billing/stripe"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives Stripe webhook deliveries and feeds them to the
// billing reconciler. After a delivery passes signature verification we
// always answer 200 so Stripe does not retry events we cannot act on;
// failures are logged for operators instead.
type WebhookHandler struct {
	stripeClient *stripe.Client
	reconciler   *billing.Reconciler
}

func NewWebhookHandler(stripeClient *stripe.Client, reconciler *billing.Reconciler) *WebhookHandler {
	return &WebhookHandler{stripeClient: stripeClient, reconciler: reconciler}
}

// HandleStripeWebhook godoc
// @Summary Stripe webhook endpoint
// @Description Verifies the Stripe-Signature header and reconciles billing events.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} gin.H "Delivery acknowledged"
// @Failure 400 {object} gin.H "Signature verification failed"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Unable to read request body.")
		return
	}

	webhookEvent, err := h.stripeClient.VerifyAndParse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, stripe.ErrSignatureInvalid) {
			abortWithError(c, http.StatusBadRequest, "Invalid webhook signature.")
		} else {
			abortWithError(c, http.StatusBadRequest, "Malformed webhook payload.")
		}
		return
	}

	event, err := billing.ParseEvent(webhookEvent.Type, webhookEvent.Data.Object)
	if err != nil {
		log.Printf("WARN: webhook %s (%s): failed to parse event object: %v", webhookEvent.ID, webhookEvent.Type, err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if event == nil {
		// Event type we don't act on.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.reconciler.Reconcile(c.Request.Context(), event); err != nil {
		log.Printf("ERROR: webhook %s (%s): reconcile failed: %v", webhookEvent.ID, webhookEvent.Type, err)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
