package handlers

import (
	"errors"
	"net/http"

	"food-ordering-api/apperr"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/statemachine"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DriverProfileRequest struct {
	PickupZone  string `json:"pickupZone" binding:"max=100"`
	VehicleType string `json:"vehicleType" binding:"omitempty,oneof=bicycle ebike scooter car"`
	Available   *bool  `json:"available"`
}

// UpsertDriverProfile creates or updates the caller's driver profile.
func (h *Handler) UpsertDriverProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req DriverProfileRequest
	if !bind(c, &req) {
		return
	}

	var d models.Driver
	err := h.db(c).Where("user_id = ?", userID).First(&d).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		fail(c, err)
		return
	}
	if d.Status == models.DriverSuspended && req.Available != nil {
		fail(c, apperr.Forbidden("Suspended drivers cannot change availability"))
		return
	}

	d.UserID = userID
	if req.PickupZone != "" {
		d.PickupZone = req.PickupZone
	}
	if req.VehicleType != "" {
		d.VehicleType = req.VehicleType
	}
	if d.Status == "" {
		d.Status = models.DriverOffline
	}
	if req.Available != nil {
		d.Status = models.DriverOffline
		if *req.Available {
			d.Status = models.DriverAvailable
		}
	}
	if err := h.db(c).Save(&d).Error; err != nil {
		fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"driver": d, "averageRating": d.AverageRating()})
}

func (h *Handler) GetDriverProfile(c *gin.Context) {
	driverID, _ := middleware.GetDriverID(c)
	var d models.Driver
	if err := h.db(c).First(&d, driverID).Error; err != nil {
		fail(c, notFoundOr(err, "Driver profile"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": d, "averageRating": d.AverageRating()})
}

// GetAvailableOrders lists unassigned orders waiting for pickup, oldest
// first. ?zone restricts to restaurants in that postal code prefix.
func (h *Handler) GetAvailableOrders(c *gin.Context) {
	query := h.db(c).Preload("Restaurant").
		Where("orders.status = ? AND orders.driver_id IS NULL", models.StatusReadyForPickup)
	if zone := c.Query("zone"); zone != "" {
		query = query.Joins("JOIN restaurants ON restaurants.id = orders.restaurant_id").
			Where("restaurants.postal_code LIKE ?", zone+"%")
	}
	var orders []models.Order
	if err := pagination(c).apply(query).Order("orders.created_at asc").Find(&orders).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

// GetMyDeliveries returns orders assigned to the caller.
func (h *Handler) GetMyDeliveries(c *gin.Context) {
	driverID, _ := middleware.GetDriverID(c)
	query := h.db(c).Preload("Items").Preload("Restaurant").Where("driver_id = ?", driverID)
	if c.Query("active") == "true" {
		query = query.Where("status IN ?", []models.OrderStatus{models.StatusAssigned, models.StatusInTransit})
	}
	var orders []models.Order
	if err := pagination(c).apply(query).Order("updated_at desc").Find(&orders).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

func (h *Handler) loadDriver(c *gin.Context) (*models.Driver, bool) {
	driverID, _ := middleware.GetDriverID(c)
	var d models.Driver
	if err := h.db(c).First(&d, driverID).Error; err != nil {
		fail(c, notFoundOr(err, "Driver profile"))
		return nil, false
	}
	return &d, true
}

func (h *Handler) loadOrderParam(c *gin.Context) (*models.Order, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var order models.Order
	if err := h.db(c).First(&order, id).Error; err != nil {
		fail(c, notFoundOr(err, "Order"))
		return nil, false
	}
	return &order, true
}

// AcceptOrder assigns a ready order to the caller. The guarded update makes
// the second of two concurrent accepts fail with 409.
func (h *Handler) AcceptOrder(c *gin.Context) {
	d, ok := h.loadDriver(c)
	if !ok {
		return
	}
	if !d.DocumentsVerified {
		fail(c, apperr.Forbidden("Your documents have not been verified yet"))
		return
	}
	if d.Status == models.DriverSuspended {
		fail(c, apperr.Forbidden("Your driver account is suspended"))
		return
	}
	order, ok := h.loadOrderParam(c)
	if !ok {
		return
	}
	if order.DriverID != nil {
		fail(c, apperr.Duplicate("Order has already been accepted by another driver"))
		return
	}

	userID := middleware.GetUserID(c)
	err := h.changeStatus(c.Request.Context(), order, statusChange{
		To:        models.StatusAssigned,
		Actor:     statemachine.ActorDriver,
		ChangedBy: &userID,
		Note:      "Accepted by driver",
		Set:       map[string]interface{}{"driver_id": d.ID},
		Guard:     "driver_id IS NULL",
		Conflict:  "Order has already been accepted by another driver",
		Within: func(tx *gorm.DB) error {
			return tx.Model(&models.Driver{}).Where("id = ?", d.ID).Update("status", models.DriverBusy).Error
		},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order accepted", "orderId": order.ID, "status": order.Status})
}

// PickupOrder marks an assigned order as collected from the restaurant.
func (h *Handler) PickupOrder(c *gin.Context) {
	h.driverStep(c, models.StatusInTransit, "Picked up from restaurant", nil)
}

// DeliverOrder completes the delivery and frees the driver.
func (h *Handler) DeliverOrder(c *gin.Context) {
	h.driverStep(c, models.StatusDelivered, "Delivered to customer", func(tx *gorm.DB, driverID uint) error {
		return tx.Model(&models.Driver{}).Where("id = ?", driverID).Updates(map[string]interface{}{
			"total_deliveries": gorm.Expr("total_deliveries + 1"),
			"status":           models.DriverAvailable,
		}).Error
	})
}

func (h *Handler) driverStep(c *gin.Context, to models.OrderStatus, note string, within func(tx *gorm.DB, driverID uint) error) {
	driverID, _ := middleware.GetDriverID(c)
	order, ok := h.loadOrderParam(c)
	if !ok {
		return
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		fail(c, apperr.Forbidden("You are not the assigned driver for this order"))
		return
	}

	userID := middleware.GetUserID(c)
	sc := statusChange{
		To:        to,
		Actor:     statemachine.ActorDriver,
		ChangedBy: &userID,
		Note:      note,
	}
	if within != nil {
		sc.Within = func(tx *gorm.DB) error { return within(tx, driverID) }
	}
	if err := h.changeStatus(c.Request.Context(), order, sc); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": note, "orderId": order.ID, "status": order.Status})
}
