package handlers

import (
	"net/http"
	"sort"
	"strings"

	"food-ordering-api/apperr"
	"food-ordering-api/i18n"
	"food-ordering-api/middleware"
	"food-ordering-api/models"
	"food-ordering-api/money"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MenuItemRequest struct {
	Name         *string                       `json:"name" binding:"omitempty,min=1,max=120"`
	Description  *string                       `json:"description" binding:"omitempty,max=1000"`
	Translations map[string]models.Translation `json:"translations"`
	Price        *money.Amount                 `json:"price"`
	Category     *string                       `json:"category" binding:"omitempty,max=60"`
	DietaryTags  []string                      `json:"dietaryTags"`
	Quantity     *int                          `json:"quantity" binding:"omitempty,min=0"`
	TrackStock   *bool                         `json:"trackStock"`
	ImageURL     *string                       `json:"imageUrl" binding:"omitempty,url"`
	Status       *models.MenuItemStatus        `json:"status" binding:"omitempty,oneof=active inactive"`
}

func (req MenuItemRequest) validate() error {
	var bad []middleware.FieldError
	if req.Price != nil && *req.Price <= 0 {
		bad = append(bad, middleware.FieldError{Field: "price", Rule: "gt", Param: "0"})
	}
	for _, t := range req.DietaryTags {
		if !models.DietaryTags[t] {
			bad = append(bad, middleware.FieldError{Field: "dietaryTags", Rule: "oneof", Param: t})
		}
	}
	langs := make([]string, 0, len(req.Translations))
	for lang := range req.Translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if !i18n.IsSupported(lang) {
			bad = append(bad, middleware.FieldError{Field: "translations." + lang, Rule: "language", Param: strings.Join(i18n.Supported, " ")})
		}
	}
	if len(bad) > 0 {
		return apperr.Validation("Request validation failed").WithDetails(bad)
	}
	return nil
}

func (req MenuItemRequest) apply(m *models.MenuItem) {
	setString(&m.Name, req.Name)
	setString(&m.Description, req.Description)
	setString(&m.Category, req.Category)
	setString(&m.ImageURL, req.ImageURL)
	if req.Translations != nil {
		m.Translations = datatypes.NewJSONType(req.Translations)
	}
	if req.DietaryTags != nil {
		m.DietaryTags = datatypes.NewJSONType(dedupe(req.DietaryTags))
	}
	if req.Price != nil {
		m.Price = *req.Price
	}
	if req.Quantity != nil {
		q := *req.Quantity
		m.Quantity = &q
	}
	if req.TrackStock != nil && !*req.TrackStock {
		m.Quantity = nil
	}
	if req.Status != nil {
		m.Status = *req.Status
	}
}

func dedupe(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// ListMyMenu returns every item of the caller's restaurant, inactive ones
// included.
func (h *Handler) ListMyMenu(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	var items []models.MenuItem
	if err := h.db(c).Where("restaurant_id = ?", restaurantID).Order("category, name").Find(&items).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "items": items})
}

func (h *Handler) CreateMenuItem(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	var req MenuItemRequest
	if !bind(c, &req) {
		return
	}
	if req.Name == nil || req.Price == nil {
		fail(c, apperr.Validation("Name and price are required").WithDetails([]middleware.FieldError{
			{Field: "name", Rule: "required"}, {Field: "price", Rule: "required"},
		}))
		return
	}
	if err := req.validate(); err != nil {
		fail(c, err)
		return
	}

	item := models.MenuItem{
		RestaurantID: restaurantID,
		Status:       models.MenuItemActive,
		Translations: datatypes.NewJSONType(map[string]models.Translation{}),
		DietaryTags:  datatypes.NewJSONType([]string{}),
	}
	req.apply(&item)
	if err := h.db(c).Create(&item).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "item": item})
}

func (h *Handler) findMenuItem(c *gin.Context) (*models.MenuItem, bool) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	id, ok := paramID(c, "itemId")
	if !ok {
		return nil, false
	}
	var item models.MenuItem
	if err := h.db(c).Where("restaurant_id = ?", restaurantID).First(&item, id).Error; err != nil {
		fail(c, notFoundOr(err, "Menu item"))
		return nil, false
	}
	return &item, true
}

func (h *Handler) UpdateMenuItem(c *gin.Context) {
	item, ok := h.findMenuItem(c)
	if !ok {
		return
	}
	var req MenuItemRequest
	if !bind(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		fail(c, err)
		return
	}
	req.apply(item)
	if err := h.db(c).Save(item).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

// DeleteMenuItem removes the item. Past order lines keep their snapshot and
// lose the link.
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	item, ok := h.findMenuItem(c)
	if !ok {
		return
	}
	err := h.db(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OrderItem{}).Where("menu_item_id = ?", item.ID).
			Update("menu_item_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted", "itemId": item.ID})
}
