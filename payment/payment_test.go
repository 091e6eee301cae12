package payment

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v76"
)

func TestRetryDelayBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		d1 := RetryDelay(1)
		assert.GreaterOrEqual(t, d1, 1000*time.Millisecond)
		assert.Less(t, d1, 2000*time.Millisecond)

		d3 := RetryDelay(3)
		assert.GreaterOrEqual(t, d3, 4000*time.Millisecond)
		assert.Less(t, d3, 5000*time.Millisecond)

		assert.LessOrEqual(t, RetryDelay(10), 16500*time.Millisecond)
		assert.GreaterOrEqual(t, RetryDelay(10), 16000*time.Millisecond)
	}
}

func TestClassifyStripeErrors(t *testing.T) {
	declined := &stripe.Error{Code: stripe.ErrorCode("card_declined"), DeclineCode: stripe.DeclineCode("insufficient_funds")}
	c := Classify(declined)
	assert.Equal(t, KindInsufficientFunds, c.Kind)
	assert.False(t, c.Retryable)

	generic := &stripe.Error{Code: stripe.ErrorCode("card_declined"), DeclineCode: stripe.DeclineCode("do_not_honor")}
	assert.Equal(t, KindCardDeclined, Classify(generic).Kind)

	expired := &stripe.Error{Code: stripe.ErrorCode("expired_card")}
	assert.Equal(t, KindExpiredCard, Classify(expired).Kind)

	throttled := &stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}
	assert.Equal(t, KindRateLimited, Classify(throttled).Kind)
	assert.True(t, Classify(throttled).Retryable)

	outage := &stripe.Error{HTTPStatusCode: http.StatusBadGateway}
	assert.Equal(t, KindProcessingError, Classify(outage).Kind)
}

type fakeNetErr struct{ timeout bool }

func (e fakeNetErr) Error() string   { return "dial tcp: connection refused" }
func (e fakeNetErr) Timeout() bool   { return e.timeout }
func (e fakeNetErr) Temporary() bool { return false }

var _ net.Error = fakeNetErr{}

func TestClassifyTransportErrors(t *testing.T) {
	assert.Equal(t, KindNetwork, Classify(fakeNetErr{}).Kind)
	assert.Equal(t, KindTimeout, Classify(fakeNetErr{timeout: true}).Kind)
	assert.Equal(t, KindTimeout, Classify(ErrTimeout).Kind)
	assert.Equal(t, KindUnknown, Classify(errors.New("boom")).Kind)
	assert.Equal(t, Classification{}, Classify(nil))
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout)

	err = WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)

	boom := errors.New("boom")
	err = WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRetryStopsOnPermanentFailure(t *testing.T) {
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error { return nil }
	defer func() { sleep = orig }()

	calls := 0
	err := Retry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return &stripe.Error{Code: stripe.ErrorCode("card_declined")}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Retry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fakeNetErr{}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestParseWebhookWithoutSecret(t *testing.T) {
	g := NewStripeGateway("sk_test_123", "", 0)
	_, err := g.ParseWebhook([]byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	g := NewStripeGateway("sk_test_123", "whsec_test", 0)
	_, err := g.ParseWebhook([]byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
