package handlers

import (
	"net/http"

	"food-ordering-api/apperr"
	"food-ordering-api/models"

	"github.com/gin-gonic/gin"
)

// ListCities returns the cities with delivery enabled. Admins can pass
// all=true.
func (h *Handler) ListCities(c *gin.Context) {
	query := h.db(c).Order("name")
	if c.Query("all") != "true" {
		query = query.Where("delivery_enabled = ?", true)
	}
	var cities []models.City
	if err := query.Find(&cities).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(cities), "cities": cities})
}

type CityRequest struct {
	Name            string `json:"name" binding:"required,max=80"`
	Canton          string `json:"canton" binding:"required,len=2,alpha"`
	PostalCode      string `json:"postalCode" binding:"omitempty,numeric,len=4"`
	DeliveryEnabled *bool  `json:"deliveryEnabled"`
}

func (h *Handler) CreateCity(c *gin.Context) {
	var req CityRequest
	if !bind(c, &req) {
		return
	}
	var n int64
	if err := h.db(c).Model(&models.City{}).Where("name = ? AND canton = ?", req.Name, req.Canton).Count(&n).Error; err != nil {
		fail(c, err)
		return
	}
	if n > 0 {
		fail(c, apperr.Duplicate("City already exists"))
		return
	}
	city := models.City{Name: req.Name, Canton: req.Canton, PostalCode: req.PostalCode, DeliveryEnabled: true}
	if req.DeliveryEnabled != nil {
		city.DeliveryEnabled = *req.DeliveryEnabled
	}
	if err := h.db(c).Create(&city).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"city": city})
}

func (h *Handler) UpdateCity(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CityRequest
	if !bind(c, &req) {
		return
	}
	var city models.City
	if err := h.db(c).First(&city, id).Error; err != nil {
		fail(c, notFoundOr(err, "City"))
		return
	}
	city.Name, city.Canton, city.PostalCode = req.Name, req.Canton, req.PostalCode
	if req.DeliveryEnabled != nil {
		city.DeliveryEnabled = *req.DeliveryEnabled
	}
	if err := h.db(c).Save(&city).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"city": city})
}
