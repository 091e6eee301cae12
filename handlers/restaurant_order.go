package handlers

import (
	"net/http"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/statemachine"

	"github.com/gin-gonic/gin"
)

// ListRestaurantOrders returns the caller's restaurant orders, newest first,
// with a per-status summary for the dashboard.
func (h *Handler) ListRestaurantOrders(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)

	query := h.db(c).Model(&models.Order{}).Where("restaurant_id = ?", restaurantID)
	if status := c.Query("status"); status != "" {
		if !models.OrderStatus(status).Valid() {
			fail(c, apperr.Validation("Invalid status filter"))
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		fail(c, err)
		return
	}
	var orders []models.Order
	if err := pagination(c).apply(query.Preload("Items")).Order("created_at desc").Find(&orders).Error; err != nil {
		fail(c, err)
		return
	}

	type statusCount struct {
		Status models.OrderStatus
		Count  int64
	}
	var counts []statusCount
	if err := h.db(c).Model(&models.Order{}).Select("status, count(*) as count").
		Where("restaurant_id = ?", restaurantID).Group("status").Scan(&counts).Error; err != nil {
		fail(c, err)
		return
	}
	summary := map[models.OrderStatus]int64{}
	for _, sc := range counts {
		summary[sc.Status] = sc.Count
	}

	c.JSON(http.StatusOK, gin.H{
		"orderSummary": summary,
		"total":        total,
		"orders":       orders,
	})
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Note   string             `json:"note" binding:"max=500"`
	Reason string             `json:"reason" binding:"max=500"`
}

// UpdateRestaurantOrderStatus moves one of the restaurant's orders along the
// kitchen part of the lifecycle.
func (h *Handler) UpdateRestaurantOrderStatus(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if !bind(c, &req) {
		return
	}

	var order models.Order
	if err := h.db(c).First(&order, orderID).Error; err != nil {
		fail(c, notFoundOr(err, "Order"))
		return
	}
	if order.RestaurantID != restaurantID {
		fail(c, apperr.Forbidden("This order does not belong to your restaurant"))
		return
	}

	prev := order.Status
	userID := middleware.GetUserID(c)
	sc := statusChange{
		To:        req.Status,
		Actor:     statemachine.ActorRestaurant,
		ChangedBy: &userID,
		Note:      req.Note,
	}
	if req.Status == models.StatusCancelled {
		sc.Set = map[string]interface{}{"cancellation_reason": req.Reason}
	}
	if err := h.changeStatus(c.Request.Context(), &order, sc); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Order status updated",
		"orderId":        order.ID,
		"previousStatus": prev,
		"currentStatus":  order.Status,
	})
}
