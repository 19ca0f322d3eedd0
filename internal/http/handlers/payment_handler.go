// README: Payment gateway webhook endpoint; raw body plus Stripe-Signature.
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

type WebhookDispatcher interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

type PaymentHandler struct {
	dispatcher WebhookDispatcher
}

func NewPaymentHandler(d WebhookDispatcher) *PaymentHandler {
	return &PaymentHandler{dispatcher: d}
}

// Webhook acknowledges with 200 once the event is applied or deliberately ignored. Signature
// failures are 400; storage failures are 500 so the gateway redelivers.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	if err := h.dispatcher.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"received": true})
}
