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
)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// ── Public ──────────────────────────────────────────────────────────────────

// ListRestaurants returns active restaurants. Filters: city_id, cuisine,
// search and open=true.
func (h *Handler) ListRestaurants(c *gin.Context) {
	query := h.db(c).Preload("City").Where("status = ?", models.RestaurantActive)
	if cityID := c.Query("city_id"); cityID != "" {
		query = query.Where("city_id = ?", cityID)
	}
	if cuisine := c.Query("cuisine"); cuisine != "" {
		query = query.Where("LOWER(cuisine) LIKE ?", "%"+strings.ToLower(cuisine)+"%")
	}
	if search := c.Query("search"); search != "" {
		s := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", s, s)
	}

	var restaurants []models.Restaurant
	if err := query.Order("rating desc, name").Find(&restaurants).Error; err != nil {
		fail(c, err)
		return
	}
	if c.Query("open") == "true" {
		now := h.now()
		open := restaurants[:0]
		for _, r := range restaurants {
			if r.OpeningHours.Data().IsOpenAt(now) {
				open = append(open, r)
			}
		}
		restaurants = open
	}
	c.JSON(http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}

func (h *Handler) GetRestaurant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var r models.Restaurant
	if err := h.db(c).Preload("City").Where("status = ?", models.RestaurantActive).First(&r, id).Error; err != nil {
		fail(c, notFoundOr(err, "Restaurant"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": r, "isOpen": r.OpeningHours.Data().IsOpenAt(h.now())})
}

// MenuItemView is a menu item rendered in one language.
type MenuItemView struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       money.Amount `json:"price"`
	Category    string       `json:"category"`
	DietaryTags []string     `json:"dietaryTags"`
	Available   bool         `json:"available"`
	ImageURL    string       `json:"imageUrl"`
}

func localizeItem(m models.MenuItem, lang string) MenuItemView {
	tr := map[string]map[string]string{}
	for l, t := range m.Translations.Data() {
		tr[l] = map[string]string{"name": t.Name, "description": t.Description}
	}
	name, ok := i18n.Localize(tr, "name", lang)
	if !ok {
		name = m.Name
	}
	desc, ok := i18n.Localize(tr, "description", lang)
	if !ok {
		desc = m.Description
	}
	tags := m.DietaryTags.Data()
	if tags == nil {
		tags = []string{}
	}
	return MenuItemView{
		ID:          m.ID,
		Name:        name,
		Description: desc,
		Price:       m.Price,
		Category:    m.Category,
		DietaryTags: tags,
		Available:   !m.OutOfStock(),
		ImageURL:    m.ImageURL,
	}
}

// requestLanguage prefers ?lang, then the caller's profile, then
// Accept-Language.
func requestLanguage(c *gin.Context) string {
	pref := c.Query("lang")
	if pref == "" {
		if u, ok := middleware.CurrentUser(c); ok {
			pref = u.Language
		}
	}
	return i18n.DetectLanguage(pref, c.GetHeader("Accept-Language"))
}

// GetMenu returns the active menu grouped by category in the caller's
// language. Filters: category and dietary (comma separated, all must match).
func (h *Handler) GetMenu(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var r models.Restaurant
	if err := h.db(c).Where("status = ?", models.RestaurantActive).First(&r, id).Error; err != nil {
		fail(c, notFoundOr(err, "Restaurant"))
		return
	}

	query := h.db(c).Where("restaurant_id = ? AND status = ?", r.ID, models.MenuItemActive)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	var items []models.MenuItem
	if err := query.Order("category, name").Find(&items).Error; err != nil {
		fail(c, err)
		return
	}

	var wanted []string
	if dietary := c.Query("dietary"); dietary != "" {
		wanted = strings.Split(dietary, ",")
	}
	lang := requestLanguage(c)
	categories := map[string][]MenuItemView{}
	count := 0
	for _, m := range items {
		if !hasAllTags(m, wanted) {
			continue
		}
		categories[m.Category] = append(categories[m.Category], localizeItem(m, lang))
		count++
	}

	c.JSON(http.StatusOK, gin.H{
		"restaurant": r.Name,
		"language":   lang,
		"count":      count,
		"categories": categories,
	})
}

func hasAllTags(m models.MenuItem, tags []string) bool {
	for _, t := range tags {
		if !m.HasTag(strings.TrimSpace(t)) {
			return false
		}
	}
	return true
}

// ── Owner ───────────────────────────────────────────────────────────────────

type RestaurantRequest struct {
	Name           *string              `json:"name" binding:"omitempty,min=2,max=120"`
	Description    *string              `json:"description" binding:"omitempty,max=2000"`
	Cuisine        *string              `json:"cuisine" binding:"omitempty,max=60"`
	CityID         *uint                `json:"cityId"`
	Street         *string              `json:"street"`
	PostalCode     *string              `json:"postalCode" binding:"omitempty,numeric,len=4"`
	CityName       *string              `json:"cityName"`
	Latitude       *float64             `json:"latitude" binding:"omitempty,latitude"`
	Longitude      *float64             `json:"longitude" binding:"omitempty,longitude"`
	Phone          *string              `json:"phone"`
	ImageURL       *string              `json:"imageUrl" binding:"omitempty,url"`
	MinOrderAmount *money.Amount        `json:"minOrderAmount"`
	OpeningHours   *models.OpeningHours `json:"openingHours"`
}

func validateHours(hours models.OpeningHours) error {
	var bad []map[string]string
	for day, dh := range hours {
		if !weekdays[day] {
			bad = append(bad, map[string]string{"field": "openingHours." + day, "rule": "weekday"})
			continue
		}
		if err := dh.Validate(); err != nil {
			bad = append(bad, map[string]string{"field": "openingHours." + day, "rule": "time", "param": err.Error()})
		}
	}
	if len(bad) > 0 {
		sort.Slice(bad, func(i, j int) bool { return bad[i]["field"] < bad[j]["field"] })
		return apperr.Validation("Invalid opening hours").WithDetails(bad)
	}
	return nil
}

func (req RestaurantRequest) apply(r *models.Restaurant) error {
	if req.MinOrderAmount != nil && *req.MinOrderAmount < 0 {
		return apperr.Validation("Minimum order amount cannot be negative")
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return apperr.Validation("Latitude and longitude must be set together")
	}
	if req.OpeningHours != nil {
		if err := validateHours(*req.OpeningHours); err != nil {
			return err
		}
		r.OpeningHours = datatypes.NewJSONType(*req.OpeningHours)
	}
	setString(&r.Name, req.Name)
	setString(&r.Description, req.Description)
	setString(&r.Cuisine, req.Cuisine)
	setString(&r.Street, req.Street)
	setString(&r.PostalCode, req.PostalCode)
	setString(&r.CityName, req.CityName)
	setString(&r.Phone, req.Phone)
	setString(&r.ImageURL, req.ImageURL)
	if req.CityID != nil {
		r.CityID = req.CityID
	}
	if req.Latitude != nil {
		r.Latitude, r.Longitude = req.Latitude, req.Longitude
	}
	if req.MinOrderAmount != nil {
		r.MinOrderAmount = *req.MinOrderAmount
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// CreateRestaurant registers the caller's restaurant. It stays pending until
// an admin activates it.
func (h *Handler) CreateRestaurant(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	var req RestaurantRequest
	if !bind(c, &req) {
		return
	}
	if req.Name == nil {
		fail(c, apperr.Validation("Name is required").
			WithDetails([]middleware.FieldError{{Field: "name", Rule: "required"}}))
		return
	}
	var existing int64
	if err := h.db(c).Model(&models.Restaurant{}).Where("owner_id = ?", ownerID).Count(&existing).Error; err != nil {
		fail(c, err)
		return
	}
	if existing > 0 {
		fail(c, apperr.Duplicate("You already own a restaurant"))
		return
	}

	r := models.Restaurant{
		OwnerID:      ownerID,
		Status:       models.RestaurantPending,
		OpeningHours: datatypes.NewJSONType(models.OpeningHours{}),
	}
	if err := req.apply(&r); err != nil {
		fail(c, err)
		return
	}
	if err := h.checkCity(c, r.CityID); err != nil {
		fail(c, err)
		return
	}
	if err := h.db(c).Create(&r).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Restaurant created, awaiting approval", "restaurant": r})
}

func (h *Handler) checkCity(c *gin.Context, cityID *uint) error {
	if cityID == nil {
		return nil
	}
	var city models.City
	if err := h.db(c).First(&city, *cityID).Error; err != nil {
		return notFoundOr(err, "City")
	}
	return nil
}

// GetMyRestaurant returns the restaurant the caller owns or works for.
func (h *Handler) GetMyRestaurant(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	var r models.Restaurant
	if err := h.db(c).Preload("City").Preload("MenuItems").First(&r, restaurantID).Error; err != nil {
		fail(c, notFoundOr(err, "Restaurant"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": r, "isOpen": r.OpeningHours.Data().IsOpenAt(h.now())})
}

// UpdateMyRestaurant changes the editable fields. Status and owner are not
// editable here.
func (h *Handler) UpdateMyRestaurant(c *gin.Context) {
	restaurantID, _ := middleware.GetRestaurantID(c)
	var req RestaurantRequest
	if !bind(c, &req) {
		return
	}
	var r models.Restaurant
	if err := h.db(c).First(&r, restaurantID).Error; err != nil {
		fail(c, notFoundOr(err, "Restaurant"))
		return
	}
	if err := req.apply(&r); err != nil {
		fail(c, err)
		return
	}
	if err := h.checkCity(c, r.CityID); err != nil {
		fail(c, err)
		return
	}
	if err := h.db(c).Save(&r).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant updated", "restaurant": r})
}
