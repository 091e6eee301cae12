// Package payment talks to the card payment gateway and classifies its
// failures for the client.
package payment

import (
	"context"
	"errors"

	"food-ordering-api/money"
)

// Webhook event types the API reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// IntentSucceeded is the gateway status of a captured intent.
const IntentSucceeded = "succeeded"

// ErrInvalidSignature is returned when a webhook payload cannot be verified.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// Intent is the subset of a gateway payment intent the API needs.
type Intent struct {
	ID           string       `json:"id"`
	ClientSecret string       `json:"clientSecret"`
	Status       string       `json:"status"`
	Amount       money.Amount `json:"amount"`
	Currency     string       `json:"currency"`
}

// WebhookEvent is a verified gateway notification.
type WebhookEvent struct {
	ID             string
	Type           string
	IntentID       string
	Metadata       map[string]string
	FailureCode    string
	DeclineCode    string
	FailureMessage string
}

// Gateway is implemented by StripeGateway and by fakes in tests.
type Gateway interface {
	CreateIntent(ctx context.Context, amount money.Amount, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	// AttachOrder merges metadata into an existing intent.
	AttachOrder(ctx context.Context, intentID string, metadata map[string]string) error
	Refund(ctx context.Context, intentID string) error
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
