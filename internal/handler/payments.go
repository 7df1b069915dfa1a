package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/foodgram/api/internal/payment"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBody = 65536

// WebhookParser verifies and decodes a payment provider callback.
// Satisfied by payment.Provider implementations.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (payment.Event, error)
}

// PaymentEventApplier applies a verified payment event to its order.
// Satisfied by *service.OrderService.
type PaymentEventApplier interface {
	ApplyPaymentEvent(ctx context.Context, evt payment.Event) error
}

// PaymentHandler receives payment provider webhooks.
type PaymentHandler struct {
	parser WebhookParser
	svc    PaymentEventApplier
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(parser WebhookParser, svc PaymentEventApplier) *PaymentHandler {
	return &PaymentHandler{parser: parser, svc: svc}
}

// RegisterRoutes registers the public webhook endpoint.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payments/webhook", h.Webhook)
}

// Webhook handles POST /payments/webhook. Unknown or irrelevant events are
// acknowledged with 200 so the provider stops retrying them.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	evt, err := h.parser.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) || errors.Is(err, payment.ErrInvalidPayload) {
			zap.L().Warn("rejected payment webhook", zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternal(w, "parse payment webhook", err)
		return
	}

	if err := h.svc.ApplyPaymentEvent(r.Context(), evt); err != nil {
		writeInternal(w, "apply payment event", err)
		return
	}

	writeData(w, http.StatusOK, map[string]bool{"received": true})
}
