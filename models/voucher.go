package models

import (
	"time"

	"food-ordering-api/money"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "active"
	VoucherInactive VoucherStatus = "inactive"
)

// Voucher is a discount code shared across orders. DiscountValue is basis
// points for percentage vouchers (1000 = 10%) and Rappen for fixed ones.
type Voucher struct {
	ID                uint          `json:"id" gorm:"primaryKey"`
	Code              string        `json:"code" gorm:"uniqueIndex;not null"`
	Description       string        `json:"description"`
	DiscountType      DiscountType  `json:"discountType" gorm:"not null"`
	DiscountValue     int64         `json:"discountValue" gorm:"not null"`
	MinOrderAmount    *money.Amount `json:"minOrderAmount"`
	MaxDiscountAmount *money.Amount `json:"maxDiscountAmount"`
	UsageLimit        *int          `json:"usageLimit"`
	UsageCount        int           `json:"usageCount" gorm:"not null;default:0"`
	PerCustomerLimit  *int          `json:"perCustomerLimit"`
	ValidFrom         *time.Time    `json:"validFrom"`
	ValidUntil        *time.Time    `json:"validUntil"`
	Status            VoucherStatus `json:"status" gorm:"not null;default:'active'"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}
