package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"food-ordering-api/money"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway implements Gateway on the Stripe API. Every call is bounded by
// timeout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
}

func NewStripeGateway(secretKey, webhookSecret string, timeout time.Duration) *StripeGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &StripeGateway{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount money.Amount, metadata map[string]string) (*Intent, error) {
	var pi *stripe.PaymentIntent
	err := WithTimeout(ctx, g.timeout, func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(int64(amount)),
			Currency: stripe.String(string(stripe.CurrencyCHF)),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		params.Context = ctx
		for k, v := range metadata {
			params.AddMetadata(k, v)
		}
		var err error
		pi, err = g.api.PaymentIntents.New(params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	var pi *stripe.PaymentIntent
	err := WithTimeout(ctx, g.timeout, func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		var err error
		pi, err = g.api.PaymentIntents.Get(intentID, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching payment intent %s: %w", intentID, err)
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       money.Amount(pi.Amount),
		Currency:     strings.ToUpper(string(pi.Currency)),
	}
}

func (g *StripeGateway) AttachOrder(ctx context.Context, intentID string, metadata map[string]string) error {
	return WithTimeout(ctx, g.timeout, func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		for k, v := range metadata {
			params.AddMetadata(k, v)
		}
		if _, err := g.api.PaymentIntents.Update(intentID, params); err != nil {
			return fmt.Errorf("updating payment intent %s: %w", intentID, err)
		}
		return nil
	})
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	return WithTimeout(ctx, g.timeout, func(ctx context.Context) error {
		params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
		params.Context = ctx
		if _, err := g.api.Refunds.New(params); err != nil {
			return fmt.Errorf("refunding payment intent %s: %w", intentID, err)
		}
		return nil
	})
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	we := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(we.Type, "payment_intent.") && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decoding payment intent from event %s: %w", event.ID, err)
		}
		we.IntentID = pi.ID
		we.Metadata = pi.Metadata
		if pi.LastPaymentError != nil {
			we.FailureCode = string(pi.LastPaymentError.Code)
			we.DeclineCode = string(pi.LastPaymentError.DeclineCode)
			we.FailureMessage = pi.LastPaymentError.Msg
		}
	}
	return we, nil
}
