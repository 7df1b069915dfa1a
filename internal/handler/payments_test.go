package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foodgram/api/internal/handler"
	"github.com/foodgram/api/internal/payment"
	"github.com/go-chi/chi/v5"
)

type mockWebhookParser struct {
	gotPayload   []byte
	gotSignature string
	evt          payment.Event
	err          error
}

func (m *mockWebhookParser) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	m.gotPayload = payload
	m.gotSignature = signature
	return m.evt, m.err
}

type mockPaymentApplier struct {
	applied []payment.Event
	err     error
}

func (m *mockPaymentApplier) ApplyPaymentEvent(_ context.Context, evt payment.Event) error {
	m.applied = append(m.applied, evt)
	return m.err
}

func setupPaymentRouter(parser handler.WebhookParser, svc handler.PaymentEventApplier) *chi.Mux {
	h := handler.NewPaymentHandler(parser, svc)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postWebhook(router http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/payments/webhook", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhook_AppliesVerifiedEvent(t *testing.T) {
	parser := &mockWebhookParser{evt: payment.Event{
		Kind:     payment.EventSucceeded,
		Type:     "payment_intent.succeeded",
		IntentID: "pi_123",
	}}
	svc := &mockPaymentApplier{}
	router := setupPaymentRouter(parser, svc)

	rr := postWebhook(router, `{"id":"evt_1"}`, "t=1,v1=abc")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if string(parser.gotPayload) != `{"id":"evt_1"}` {
		t.Errorf("payload: got %q", parser.gotPayload)
	}
	if parser.gotSignature != "t=1,v1=abc" {
		t.Errorf("signature: got %q", parser.gotSignature)
	}
	if len(svc.applied) != 1 || svc.applied[0].IntentID != "pi_123" {
		t.Fatalf("applied: got %+v", svc.applied)
	}
	if data := decodeData(t, rr); data["received"] != true {
		t.Errorf("received: got %v, want true", data["received"])
	}
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"signature", payment.ErrInvalidSignature},
		{"payload", payment.ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentApplier{}
			router := setupPaymentRouter(&mockWebhookParser{err: tt.err}, svc)

			rr := postWebhook(router, `{}`, "forged")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if len(svc.applied) != 0 {
				t.Error("unverified events must not be applied")
			}
		})
	}
}

func TestWebhook_ApplyFailureIsRetried(t *testing.T) {
	svc := &mockPaymentApplier{err: errors.New("db down")}
	router := setupPaymentRouter(&mockWebhookParser{evt: payment.Event{Kind: payment.EventFailed, IntentID: "pi_9"}}, svc)

	rr := postWebhook(router, `{}`, "sig")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestWebhook_OfflineProviderRejectsEverything(t *testing.T) {
	svc := &mockPaymentApplier{}
	router := setupPaymentRouter(payment.Offline{}, svc)

	rr := postWebhook(router, `{"type":"payment_intent.succeeded"}`, "sig")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	if len(svc.applied) != 0 {
		t.Error("offline provider must not apply events")
	}
}
