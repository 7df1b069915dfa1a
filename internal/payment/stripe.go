package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe creates PaymentIntents through the Stripe API.
type Stripe struct {
	api           *client.API
	currency      string
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret, currency string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api, currency: currency, webhookSecret: webhookSecret}
}

func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(req.Amount, s.currency)),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("order_number", req.OrderNumber)
	params.AddMetadata("customer_id", req.CustomerID.String())
	params.SetIdempotencyKey("order-" + req.OrderID.String())

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	return parseStripeEvent(payload, signature, s.webhookSecret)
}

func parseStripeEvent(payload []byte, signature, secret string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{Type: string(evt.Type)}
	switch out.Type {
	case "payment_intent.succeeded":
		out.Kind = EventSucceeded
	case "payment_intent.payment_failed":
		out.Kind = EventFailed
	default:
		return out, nil
	}

	var pi stripe.PaymentIntent
	if evt.Data == nil {
		return Event{}, ErrInvalidPayload
	}
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if pi.ID == "" {
		return Event{}, ErrInvalidPayload
	}
	out.IntentID = pi.ID
	return out, nil
}
