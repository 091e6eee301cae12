// Package voucher decides whether a discount code applies to an order and how
// much it takes off.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/models"
	"food-ordering-api/money"

	"gorm.io/gorm"
)

// Reason explains why a voucher was refused.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInvalid          Reason = "invalid"
	ReasonInactive         Reason = "inactive"
	ReasonNotYetValid      Reason = "not_yet_valid"
	ReasonExpired          Reason = "expired"
	ReasonUsageLimit       Reason = "usage_limit"
	ReasonMinOrder         Reason = "min_order"
	ReasonPerCustomerLimit Reason = "per_customer_limit"
)

// ErrUsageLimitReached is returned by Redeem when another order consumed the
// last use between evaluation and redemption.
var ErrUsageLimitReached = errors.New("voucher usage limit reached")

// Result is the outcome of evaluating a voucher against an order subtotal.
type Result struct {
	Valid    bool         `json:"valid"`
	Discount money.Amount `json:"discountAmount"`
	Reason   Reason       `json:"reason,omitempty"`
	Message  string       `json:"message"`
}

func refuse(reason Reason, message string) Result {
	return Result{Reason: reason, Message: message}
}

// NormalizeCode upper-cases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate applies the business rules without touching storage. customerUses
// is how many non-cancelled orders the customer already placed with the code.
func Evaluate(v *models.Voucher, subtotal money.Amount, customerUses int, now time.Time) Result {
	if v == nil {
		return refuse(ReasonInvalid, "Voucher code is not valid")
	}
	if v.Status != models.VoucherActive {
		return refuse(ReasonInactive, "Voucher is no longer active")
	}
	if v.ValidFrom != nil && now.Before(*v.ValidFrom) {
		return refuse(ReasonNotYetValid, "Voucher is not valid yet")
	}
	if v.ValidUntil != nil && now.After(*v.ValidUntil) {
		return refuse(ReasonExpired, "Voucher has expired")
	}
	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return refuse(ReasonUsageLimit, "Voucher usage limit has been reached")
	}
	if v.PerCustomerLimit != nil && customerUses >= *v.PerCustomerLimit {
		return refuse(ReasonPerCustomerLimit, "You have already used this voucher")
	}
	if v.MinOrderAmount != nil && subtotal < *v.MinOrderAmount {
		return refuse(ReasonMinOrder, fmt.Sprintf("Minimum order amount for this voucher is %s", v.MinOrderAmount.String()))
	}

	var discount money.Amount
	switch v.DiscountType {
	case models.DiscountPercentage:
		discount = subtotal.Percent(v.DiscountValue)
		if v.MaxDiscountAmount != nil {
			discount = money.Min(discount, *v.MaxDiscountAmount)
		}
	case models.DiscountFixedAmount:
		discount = money.Min(money.Amount(v.DiscountValue), subtotal)
	default:
		return refuse(ReasonInvalid, "Voucher is misconfigured")
	}
	if discount < 0 {
		discount = 0
	}
	return Result{Valid: true, Discount: discount, Message: "Voucher applied"}
}

// Apply looks the code up and evaluates it. A missing code is a refusal, not
// an error; err is only set when storage fails.
func Apply(ctx context.Context, db *gorm.DB, code string, subtotal money.Amount, customerID *uint, now time.Time) (Result, *models.Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return refuse(ReasonInvalid, "Voucher code is not valid"), nil, nil
	}

	var v models.Voucher
	if err := db.WithContext(ctx).Where("code = ?", code).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return refuse(ReasonInvalid, "Voucher code is not valid"), nil, nil
		}
		return Result{}, nil, fmt.Errorf("loading voucher %s: %w", code, err)
	}

	uses := 0
	if v.PerCustomerLimit != nil && customerID != nil {
		var n int64
		err := db.WithContext(ctx).Model(&models.Order{}).
			Where("customer_id = ? AND voucher_code = ? AND status <> ?", *customerID, code, models.StatusCancelled).
			Count(&n).Error
		if err != nil {
			return Result{}, nil, fmt.Errorf("counting voucher uses: %w", err)
		}
		uses = int(n)
	}

	return Evaluate(&v, subtotal, uses, now), &v, nil
}

// Redeem increments usage_count unless the limit was reached concurrently.
func Redeem(tx *gorm.DB, v *models.Voucher) error {
	res := tx.Model(&models.Voucher{}).
		Where("id = ?", v.ID).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUsageLimitReached
	}
	return nil
}

// Release gives back the use an order consumed when the order is cancelled.
func Release(tx *gorm.DB, code string) error {
	if code == "" {
		return nil
	}
	return tx.Model(&models.Voucher{}).
		Where("code = ? AND usage_count > 0", code).
		UpdateColumn("usage_count", gorm.Expr("usage_count - 1")).Error
}

// AsError maps a refusal to the API error for the standalone validation route.
func (r Result) AsError() *apperr.Error {
	switch r.Reason {
	case ReasonExpired, ReasonNotYetValid:
		return apperr.New(apperr.CodeVoucherExpired, http.StatusUnprocessableEntity, r.Message)
	case ReasonUsageLimit, ReasonPerCustomerLimit:
		return apperr.New(apperr.CodeVoucherUsageLimit, http.StatusUnprocessableEntity, r.Message)
	default:
		return apperr.New(apperr.CodeVoucherInvalid, http.StatusUnprocessableEntity, r.Message)
	}
}
