package payment

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
)

// Kind groups gateway failures by what the customer can do about them.
type Kind string

const (
	KindCardDeclined      Kind = "card_declined"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindExpiredCard       Kind = "expired_card"
	KindIncorrectCVC      Kind = "incorrect_cvc"
	KindProcessingError   Kind = "processing_error"
	KindNetwork           Kind = "network"
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindAuthentication    Kind = "authentication"
	KindUnknown           Kind = "unknown"
)

// Classification tells the client whether retrying makes sense.
type Classification struct {
	Kind       Kind   `json:"kind"`
	Retryable  bool   `json:"retryable"`
	UserAction string `json:"userAction"`
}

var classifications = map[Kind]Classification{
	KindCardDeclined:      {KindCardDeclined, false, "Your card was declined. Please use a different card."},
	KindInsufficientFunds: {KindInsufficientFunds, false, "Insufficient funds. Please use a different card."},
	KindExpiredCard:       {KindExpiredCard, false, "Your card has expired. Please use a different card."},
	KindIncorrectCVC:      {KindIncorrectCVC, false, "The security code is incorrect. Please check and try again."},
	KindProcessingError:   {KindProcessingError, true, "The payment could not be processed. Please try again."},
	KindNetwork:           {KindNetwork, true, "Connection problem. Please check your connection and try again."},
	KindTimeout:           {KindTimeout, true, "The payment provider did not respond in time. Please try again."},
	KindRateLimited:       {KindRateLimited, true, "Too many payment attempts. Please wait a moment and try again."},
	KindAuthentication:    {KindAuthentication, false, "Payment is temporarily unavailable. Please contact support."},
	KindUnknown:           {KindUnknown, false, "The payment failed. Please try again or contact support."},
}

// ClassifyCode maps gateway error and decline codes. The decline code wins
// when present because it is more specific.
func ClassifyCode(code, declineCode string) Classification {
	switch declineCode {
	case "insufficient_funds":
		return classifications[KindInsufficientFunds]
	case "expired_card":
		return classifications[KindExpiredCard]
	case "incorrect_cvc", "invalid_cvc":
		return classifications[KindIncorrectCVC]
	case "":
	default:
		return classifications[KindCardDeclined]
	}
	switch code {
	case "card_declined":
		return classifications[KindCardDeclined]
	case "insufficient_funds":
		return classifications[KindInsufficientFunds]
	case "expired_card":
		return classifications[KindExpiredCard]
	case "incorrect_cvc", "invalid_cvc":
		return classifications[KindIncorrectCVC]
	case "processing_error":
		return classifications[KindProcessingError]
	case "rate_limit":
		return classifications[KindRateLimited]
	}
	return classifications[KindUnknown]
}

// Classify inspects any error returned by a Gateway.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return classifications[KindTimeout]
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		c := ClassifyCode(string(se.Code), string(se.DeclineCode))
		if c.Kind != KindUnknown {
			return c
		}
		switch {
		case se.HTTPStatusCode == http.StatusTooManyRequests:
			return classifications[KindRateLimited]
		case se.HTTPStatusCode == http.StatusUnauthorized:
			return classifications[KindAuthentication]
		case se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI:
			return classifications[KindProcessingError]
		}
		return c
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return classifications[KindTimeout]
		}
		return classifications[KindNetwork]
	}
	return classifications[KindUnknown]
}

const (
	retryBase     = time.Second
	retryCap      = 16 * time.Second
	retryJitterMs = 500
)

// RetryDelay is exponential backoff (1s, 2s, 4s, 8s, capped at 16s) plus up
// to 500ms of jitter. attempt starts at 1.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := retryCap
	if attempt <= 5 {
		d = retryBase << uint(attempt-1)
		if d > retryCap {
			d = retryCap
		}
	}
	return d + time.Duration(rand.Int63n(retryJitterMs))*time.Millisecond
}

var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry calls fn up to attempts times, backing off between retryable failures.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Classify(err).Retryable || attempt == attempts {
			return err
		}
		if serr := sleep(ctx, RetryDelay(attempt)); serr != nil {
			return err
		}
	}
	return err
}
