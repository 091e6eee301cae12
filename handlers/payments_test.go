package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"food-ordering-api/apperr"
	"food-ordering-api/models"
	"food-ordering-api/money"
	"food-ordering-api/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) webhook(t *testing.T, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(`{"id":"evt_1"}`))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func TestCreatePaymentIntent(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/payments/intents", CreateIntentRequest{Amount: money.Amount(3513), RestaurantID: f.restaurant.ID}, f.customer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		PaymentIntent payment.Intent `json:"paymentIntent"`
	}
	decode(t, w, &res)
	assert.Equal(t, "pi_test", res.PaymentIntent.ID)
	require.Len(t, f.gw.created, 1)
	assert.Equal(t, itoa(f.restaurant.ID), f.gw.created[0]["restaurant_id"])
	assert.Equal(t, itoa(f.customer.ID), f.gw.created[0]["customer_id"])
}

func TestCreatePaymentIntentClassifiesFailure(t *testing.T) {
	f := newFixture(t)
	f.gw.intentErr = payment.ErrTimeout

	w := f.do(t, http.MethodPost, "/api/payments/intents", CreateIntentRequest{Amount: money.Amount(3513), RestaurantID: f.restaurant.ID}, nil)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	body := decodeError(t, w)
	assert.Equal(t, apperr.CodePaymentFailed, body.Error.Code)
	assert.Equal(t, "timeout", body.details(t)["kind"])
	assert.Equal(t, true, body.details(t)["retryable"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)

	w := f.webhook(t, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, apperr.CodeWebhookInvalid, decodeError(t, w).Error.Code)
}

func TestWebhookSucceededConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, models.StatusNew, func(o *models.Order) { o.PaymentReference = "pi_hook" })
	f.gw.event = &payment.WebhookEvent{ID: "evt_1", Type: payment.EventIntentSucceeded, IntentID: "pi_hook"}

	w := f.webhook(t, "t=1,v1=abc")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"handled":true`)

	fresh := f.reload(t, o)
	assert.Equal(t, models.PaymentCompleted, fresh.PaymentStatus)
	assert.Equal(t, models.StatusConfirmed, fresh.Status)
}

func TestWebhookFindsOrderByMetadata(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, models.StatusNew, nil)
	f.gw.event = &payment.WebhookEvent{
		Type:        payment.EventIntentFailed,
		IntentID:    "pi_declined",
		Metadata:    map[string]string{"order_id": itoa(o.ID)},
		FailureCode: "card_declined",
		DeclineCode: "insufficient_funds",
	}

	w := f.webhook(t, "t=1,v1=abc")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	fresh := f.reload(t, o)
	assert.Equal(t, models.PaymentFailed, fresh.PaymentStatus)
	assert.Equal(t, "pi_declined", fresh.PaymentReference)
	assert.Equal(t, models.StatusNew, fresh.Status)
}

func TestWebhookAcknowledgesUnknownOrders(t *testing.T) {
	f := newFixture(t)

	f.gw.event = &payment.WebhookEvent{Type: payment.EventIntentSucceeded, IntentID: "pi_nobody"}
	w := f.webhook(t, "t=1,v1=abc")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"handled":false`)

	f.gw.event = &payment.WebhookEvent{Type: "charge.refunded"}
	w = f.webhook(t, "t=1,v1=abc")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"handled":false`)
}
