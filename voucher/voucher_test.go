package voucher

import (
	"context"
	"testing"
	"time"

	"food-ordering-api/config"
	"food-ordering-api/models"
	"food-ordering-api/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func amountPtr(a money.Amount) *money.Amount { return &a }

var now = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func TestEvaluatePercentageWithCap(t *testing.T) {
	v := &models.Voucher{
		Status:            models.VoucherActive,
		DiscountType:      models.DiscountPercentage,
		DiscountValue:     2000, // 20%
		MaxDiscountAmount: amountPtr(money.Francs(5, 0)),
	}

	r := Evaluate(v, money.Francs(20, 0), 0, now)
	assert.True(t, r.Valid)
	assert.Equal(t, money.Francs(4, 0), r.Discount)

	r = Evaluate(v, money.Francs(50, 0), 0, now)
	assert.True(t, r.Valid)
	assert.Equal(t, money.Francs(5, 0), r.Discount)
}

func TestEvaluateFixedAmountCappedAtSubtotal(t *testing.T) {
	v := &models.Voucher{
		Status:        models.VoucherActive,
		DiscountType:  models.DiscountFixedAmount,
		DiscountValue: int64(money.Francs(10, 0)),
	}
	r := Evaluate(v, money.Francs(7, 50), 0, now)
	assert.True(t, r.Valid)
	assert.Equal(t, money.Francs(7, 50), r.Discount)
}

func TestEvaluateUsageLimitBoundary(t *testing.T) {
	v := &models.Voucher{
		Status:        models.VoucherActive,
		DiscountType:  models.DiscountFixedAmount,
		DiscountValue: 500,
		UsageLimit:    intPtr(10),
		UsageCount:    9,
	}
	assert.True(t, Evaluate(v, 2000, 0, now).Valid)

	v.UsageCount = 10
	r := Evaluate(v, 2000, 0, now)
	assert.False(t, r.Valid)
	assert.Equal(t, ReasonUsageLimit, r.Reason)
}

func TestEvaluateValidityWindow(t *testing.T) {
	from := now.Add(time.Hour)
	until := now.Add(-time.Hour)

	v := &models.Voucher{Status: models.VoucherActive, DiscountType: models.DiscountFixedAmount, DiscountValue: 100, ValidFrom: &from}
	assert.Equal(t, ReasonNotYetValid, Evaluate(v, 1000, 0, now).Reason)

	v = &models.Voucher{Status: models.VoucherActive, DiscountType: models.DiscountFixedAmount, DiscountValue: 100, ValidUntil: &until}
	assert.Equal(t, ReasonExpired, Evaluate(v, 1000, 0, now).Reason)
}

func TestEvaluateRefusals(t *testing.T) {
	assert.Equal(t, ReasonInvalid, Evaluate(nil, 1000, 0, now).Reason)

	inactive := &models.Voucher{Status: models.VoucherInactive, DiscountType: models.DiscountFixedAmount, DiscountValue: 100}
	assert.Equal(t, ReasonInactive, Evaluate(inactive, 1000, 0, now).Reason)

	minOrder := &models.Voucher{Status: models.VoucherActive, DiscountType: models.DiscountFixedAmount, DiscountValue: 100, MinOrderAmount: amountPtr(3000)}
	assert.Equal(t, ReasonMinOrder, Evaluate(minOrder, 2999, 0, now).Reason)
	assert.True(t, Evaluate(minOrder, 3000, 0, now).Valid)

	perCustomer := &models.Voucher{Status: models.VoucherActive, DiscountType: models.DiscountFixedAmount, DiscountValue: 100, PerCustomerLimit: intPtr(1)}
	assert.Equal(t, ReasonPerCustomerLimit, Evaluate(perCustomer, 1000, 1, now).Reason)
}

func TestResultAsError(t *testing.T) {
	assert.Equal(t, "VOUCHER_EXPIRED", string(Result{Reason: ReasonExpired}.AsError().Code))
	assert.Equal(t, "VOUCHER_USAGE_LIMIT", string(Result{Reason: ReasonUsageLimit}.AsError().Code))
	assert.Equal(t, "VOUCHER_INVALID", string(Result{Reason: ReasonMinOrder}.AsError().Code))
}

func TestApplyAndRedeem(t *testing.T) {
	db, err := config.OpenMemoryDB("voucher_apply")
	require.NoError(t, err)

	v := models.Voucher{
		Code:          "WELCOME10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 1000,
		UsageLimit:    intPtr(1),
		Status:        models.VoucherActive,
	}
	require.NoError(t, db.Create(&v).Error)

	r, found, err := Apply(context.Background(), db, " welcome10 ", money.Francs(30, 0), nil, now)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, r.Valid)
	assert.Equal(t, money.Francs(3, 0), r.Discount)

	require.NoError(t, Redeem(db, found))
	assert.ErrorIs(t, Redeem(db, found), ErrUsageLimitReached)

	r, _, err = Apply(context.Background(), db, "WELCOME10", money.Francs(30, 0), nil, now)
	require.NoError(t, err)
	assert.Equal(t, ReasonUsageLimit, r.Reason)

	r, found, err = Apply(context.Background(), db, "NOPE", money.Francs(30, 0), nil, now)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, ReasonInvalid, r.Reason)
}
