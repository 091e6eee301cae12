package handlers

import (
	"net/http"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/statemachine"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetMyOrders lists the signed-in customer's orders, newest first.
func (h *Handler) GetMyOrders(c *gin.Context) {
	customerID := middleware.GetUserID(c)
	query := h.db(c).Model(&models.Order{}).Where("customer_id = ?", customerID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		fail(c, err)
		return
	}
	var orders []models.Order
	if err := pagination(c).apply(query.Preload("Items").Preload("Restaurant")).
		Order("created_at desc").Find(&orders).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "orders": orders})
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CancelMyOrder lets a customer cancel before the kitchen starts.
func (h *Handler) CancelMyOrder(c *gin.Context) {
	order := middleware.GetOrder(c)
	customerID := middleware.GetUserID(c)
	if order.CustomerID == nil || *order.CustomerID != customerID {
		fail(c, apperr.Forbidden("This order does not belong to you"))
		return
	}
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}

	err := h.changeStatus(c.Request.Context(), order, statusChange{
		To:        models.StatusCancelled,
		Actor:     statemachine.ActorCustomer,
		ChangedBy: &customerID,
		Note:      "Cancelled by customer",
		Set:       map[string]interface{}{"cancellation_reason": req.Reason},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Order cancelled",
		"orderId":       order.ID,
		"paymentStatus": order.PaymentStatus,
	})
}

type RateDriverRequest struct {
	Rating int `json:"rating" binding:"required,min=1,max=5"`
}

// RateDriver records the customer's 1 to 5 rating of a delivered order's
// driver. Each order can be rated once.
func (h *Handler) RateDriver(c *gin.Context) {
	order := middleware.GetOrder(c)
	customerID := middleware.GetUserID(c)
	if order.CustomerID == nil || *order.CustomerID != customerID {
		fail(c, apperr.Forbidden("This order does not belong to you"))
		return
	}
	var req RateDriverRequest
	if !bind(c, &req) {
		return
	}
	if order.Status != models.StatusDelivered || order.DriverID == nil {
		fail(c, apperr.BusinessRule(apperr.CodeInvalidTransition, "Only delivered orders can be rated"))
		return
	}

	err := h.db(c).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).Where("id = ? AND driver_rating IS NULL", order.ID).
			Update("driver_rating", req.Rating)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Duplicate("This order has already been rated")
		}
		return tx.Model(&models.Driver{}).Where("id = ?", *order.DriverID).Updates(map[string]interface{}{
			"rating_sum":   gorm.Expr("rating_sum + ?", req.Rating),
			"rating_count": gorm.Expr("rating_count + 1"),
		}).Error
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Thanks for your rating", "rating": req.Rating})
}

// GetLoyalty returns the customer's balance and recent transactions.
func (h *Handler) GetLoyalty(c *gin.Context) {
	customerID := middleware.GetUserID(c)
	var lp models.LoyaltyPoints
	if err := h.db(c).Where("customer_id = ?", customerID).Limit(1).Find(&lp).Error; err != nil {
		fail(c, err)
		return
	}
	var txs []models.LoyaltyTransaction
	if err := pagination(c).apply(h.db(c).Where("customer_id = ?", customerID)).
		Order("created_at desc, id desc").Find(&txs).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pointsBalance":  lp.PointsBalance,
		"lifetimePoints": lp.LifetimePoints,
		"transactions":   txs,
	})
}
