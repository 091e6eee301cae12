package handlers

import (
	"net/http"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/statemachine"

	"github.com/gin-gonic/gin"
)

// AdminListOrders returns all orders with optional status, customer_id and
// restaurant_id filters.
func (h *Handler) AdminListOrders(c *gin.Context) {
	query := h.db(c).Model(&models.Order{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if restaurantID := c.Query("restaurant_id"); restaurantID != "" {
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		fail(c, err)
		return
	}
	var orders []models.Order
	if err := pagination(c).apply(query.Preload("Restaurant")).Order("created_at desc").Find(&orders).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "orders": orders})
}

type ForceStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason" binding:"required,max=500"`
}

// AdminForceOrderStatus overrides an order's status for support cases.
func (h *Handler) AdminForceOrderStatus(c *gin.Context) {
	order, ok := h.loadOrderParam(c)
	if !ok {
		return
	}
	var req ForceStatusRequest
	if !bind(c, &req) {
		return
	}
	prev := order.Status
	adminID := middleware.GetUserID(c)
	sc := statusChange{
		To:        req.Status,
		Actor:     statemachine.ActorAdmin,
		ChangedBy: &adminID,
		Note:      "[ADMIN OVERRIDE] " + req.Reason,
	}
	if req.Status == models.StatusCancelled {
		sc.Set = map[string]interface{}{"cancellation_reason": req.Reason}
	}
	if err := h.changeStatus(c.Request.Context(), order, sc); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Order status force-updated by admin",
		"orderId":        order.ID,
		"previousStatus": prev,
		"newStatus":      order.Status,
	})
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	query := h.db(c).Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		fail(c, err)
		return
	}
	var users []models.User
	if err := pagination(c).apply(query).Order("id").Find(&users).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "users": users})
}

type UserStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required,oneof=active inactive suspended"`
}

func (h *Handler) AdminSetUserStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UserStatusRequest
	if !bind(c, &req) {
		return
	}
	if id == middleware.GetUserID(c) {
		fail(c, apperr.Validation("You cannot change your own status"))
		return
	}
	res := h.db(c).Model(&models.User{}).Where("id = ?", id).Update("status", req.Status)
	if res.Error != nil {
		fail(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, apperr.NotFound("User"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User status updated", "userId": id, "status": req.Status})
}

func (h *Handler) AdminListRestaurants(c *gin.Context) {
	query := h.db(c).Model(&models.Restaurant{}).Preload("Owner").Preload("City")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var restaurants []models.Restaurant
	if err := pagination(c).apply(query).Order("id").Find(&restaurants).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}

type RestaurantStatusRequest struct {
	Status models.RestaurantStatus `json:"status" binding:"required,oneof=pending active suspended"`
}

func (h *Handler) AdminSetRestaurantStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req RestaurantStatusRequest
	if !bind(c, &req) {
		return
	}
	res := h.db(c).Model(&models.Restaurant{}).Where("id = ?", id).Update("status", req.Status)
	if res.Error != nil {
		fail(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, apperr.NotFound("Restaurant"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant status updated", "restaurantId": id, "status": req.Status})
}

type VerifyDriverRequest struct {
	Verified bool                `json:"verified"`
	Status   models.DriverStatus `json:"status" binding:"omitempty,oneof=offline suspended"`
}

// AdminVerifyDriver records the document check and may suspend a driver.
func (h *Handler) AdminVerifyDriver(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req VerifyDriverRequest
	if !bind(c, &req) {
		return
	}
	updates := map[string]interface{}{"documents_verified": req.Verified}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	res := h.db(c).Model(&models.Driver{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		fail(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, apperr.NotFound("Driver"))
		return
	}
	var d models.Driver
	if err := h.db(c).Preload("User").First(&d, id).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": d})
}
