// README: Stripe implementation of Gateway.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"staybook/internal/types"
)

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func gatewayErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrExternalService, op, err)
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       types.Money(pi.Amount),
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, amount types.Money, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, gatewayErr("create payment intent", err)
	}
	return fromStripe(pi), nil
}

func (s *Stripe) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, gatewayErr("retrieve payment intent", err)
	}
	return fromStripe(pi), nil
}

func (s *Stripe) Refund(ctx context.Context, intentID string) (string, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	r, err := s.api.Refunds.New(params)
	if err != nil {
		return "", gatewayErr("refund", err)
	}
	return r.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event object.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: webhook signature: %v", types.ErrValidation, err)
	}
	out := &Event{ID: ev.ID, Type: EventType(ev.Type)}

	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: decode payment intent: %v", types.ErrValidation, err)
		}
		out.Intent = *fromStripe(&pi)
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: decode charge: %v", types.ErrValidation, err)
		}
		if ch.PaymentIntent != nil {
			out.Intent.ID = ch.PaymentIntent.ID
		}
		out.Intent.Metadata = ch.Metadata
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
			out.RefundID = ch.Refunds.Data[0].ID
		}
	}
	return out, nil
}
