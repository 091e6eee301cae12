package handlers

import (
	"errors"
	"net/http"
	"time"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/money"
	"food-ordering-api/voucher"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidateVoucherRequest struct {
	Code     string       `json:"code" binding:"required"`
	Subtotal money.Amount `json:"subtotal" binding:"required"`
}

// ValidateVoucher checks a code against a subtotal without redeeming it.
func (h *Handler) ValidateVoucher(c *gin.Context) {
	var req ValidateVoucherRequest
	if !bind(c, &req) {
		return
	}
	var customerID *uint
	if u, ok := middleware.CurrentUser(c); ok {
		customerID = &u.ID
	}
	res, _, err := voucher.Apply(c.Request.Context(), h.DB, req.Code, req.Subtotal, customerID, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	if !res.Valid {
		fail(c, res.AsError().WithDetails(map[string]interface{}{"reason": res.Reason}))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":          true,
		"code":           voucher.NormalizeCode(req.Code),
		"discountAmount": res.Discount,
		"message":        res.Message,
	})
}

type VoucherRequest struct {
	Code              string               `json:"code" binding:"omitempty,alphanum,min=3,max=32"`
	Description       *string              `json:"description"`
	DiscountType      models.DiscountType  `json:"discountType" binding:"omitempty,oneof=percentage fixed_amount"`
	DiscountValue     *int64               `json:"discountValue" binding:"omitempty,min=1"`
	MinOrderAmount    *money.Amount        `json:"minOrderAmount"`
	MaxDiscountAmount *money.Amount        `json:"maxDiscountAmount"`
	UsageLimit        *int                 `json:"usageLimit" binding:"omitempty,min=1"`
	PerCustomerLimit  *int                 `json:"perCustomerLimit" binding:"omitempty,min=1"`
	ValidFrom         *time.Time           `json:"validFrom"`
	ValidUntil        *time.Time           `json:"validUntil"`
	Status            models.VoucherStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}

func (req VoucherRequest) apply(v *models.Voucher) error {
	if req.Code != "" {
		v.Code = voucher.NormalizeCode(req.Code)
	}
	if req.Description != nil {
		v.Description = *req.Description
	}
	if req.DiscountType != "" {
		v.DiscountType = req.DiscountType
	}
	if req.DiscountValue != nil {
		v.DiscountValue = *req.DiscountValue
	}
	if req.MinOrderAmount != nil {
		v.MinOrderAmount = req.MinOrderAmount
	}
	if req.MaxDiscountAmount != nil {
		v.MaxDiscountAmount = req.MaxDiscountAmount
	}
	if req.UsageLimit != nil {
		v.UsageLimit = req.UsageLimit
	}
	if req.PerCustomerLimit != nil {
		v.PerCustomerLimit = req.PerCustomerLimit
	}
	if req.ValidFrom != nil {
		v.ValidFrom = req.ValidFrom
	}
	if req.ValidUntil != nil {
		v.ValidUntil = req.ValidUntil
	}
	if req.Status != "" {
		v.Status = req.Status
	}

	if v.DiscountType == models.DiscountPercentage && v.DiscountValue > 10000 {
		return apperr.Validation("Percentage discount cannot exceed 100%")
	}
	if v.ValidFrom != nil && v.ValidUntil != nil && v.ValidUntil.Before(*v.ValidFrom) {
		return apperr.Validation("validUntil must be after validFrom")
	}
	return nil
}

func (h *Handler) ListVouchers(c *gin.Context) {
	query := h.db(c).Model(&models.Voucher{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var vouchers []models.Voucher
	if err := pagination(c).apply(query).Order("created_at desc").Find(&vouchers).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(vouchers), "vouchers": vouchers})
}

func (h *Handler) CreateVoucher(c *gin.Context) {
	var req VoucherRequest
	if !bind(c, &req) {
		return
	}
	if req.Code == "" || req.DiscountType == "" || req.DiscountValue == nil {
		fail(c, apperr.Validation("code, discountType and discountValue are required").WithDetails([]middleware.FieldError{
			{Field: "code", Rule: "required"}, {Field: "discountType", Rule: "required"}, {Field: "discountValue", Rule: "required"},
		}))
		return
	}
	v := models.Voucher{Status: models.VoucherActive}
	if err := req.apply(&v); err != nil {
		fail(c, err)
		return
	}

	var n int64
	if err := h.db(c).Model(&models.Voucher{}).Where("code = ?", v.Code).Count(&n).Error; err != nil {
		fail(c, err)
		return
	}
	if n > 0 {
		fail(c, apperr.Duplicate("Voucher code already exists"))
		return
	}
	if err := h.db(c).Create(&v).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"voucher": v})
}

// UpdateVoucher edits a voucher. The code itself is immutable because orders
// refer to it.
func (h *Handler) UpdateVoucher(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req VoucherRequest
	if !bind(c, &req) {
		return
	}
	var v models.Voucher
	if err := h.db(c).First(&v, id).Error; err != nil {
		fail(c, notFoundOr(err, "Voucher"))
		return
	}
	if req.Code != "" && voucher.NormalizeCode(req.Code) != v.Code {
		fail(c, apperr.Validation("Voucher code cannot be changed"))
		return
	}
	if err := req.apply(&v); err != nil {
		fail(c, err)
		return
	}
	if err := h.db(c).Save(&v).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voucher": v})
}

func (h *Handler) GetVoucher(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var v models.Voucher
	err := h.db(c).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, apperr.NotFound("Voucher"))
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voucher": v})
}
