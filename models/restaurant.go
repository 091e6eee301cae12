package models

import (
	"fmt"
	"strings"
	"time"

	"food-ordering-api/money"

	"gorm.io/datatypes"
)

type RestaurantStatus string

const (
	RestaurantPending   RestaurantStatus = "pending"
	RestaurantActive    RestaurantStatus = "active"
	RestaurantSuspended RestaurantStatus = "suspended"
)

func (s RestaurantStatus) Valid() bool {
	return s == RestaurantPending || s == RestaurantActive || s == RestaurantSuspended
}

// DayHours is one weekday's window as "HH:MM" strings. A close before open
// means the window runs past midnight.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed,omitempty"`
}

// OpeningHours is keyed by lower-case English weekday ("monday", ...).
type OpeningHours map[string]DayHours

// For returns the window configured for t's weekday.
func (h OpeningHours) For(t time.Time) (DayHours, bool) {
	d, ok := h[strings.ToLower(t.Weekday().String())]
	return d, ok
}

// IsOpenAt reports whether t falls inside an opening window. No configured
// hours means always open. A window spanning midnight also covers the early
// hours of the following day.
func (h OpeningHours) IsOpenAt(t time.Time) bool {
	if len(h) == 0 {
		return true
	}
	now := t.Hour()*60 + t.Minute()

	if today, ok := h.For(t); ok && !today.Closed {
		from, until, err := today.minutes()
		if err == nil {
			if until > from && now >= from && now < until {
				return true
			}
			if until <= from && now >= from {
				return true
			}
		}
	}
	if yesterday, ok := h.For(t.AddDate(0, 0, -1)); ok && !yesterday.Closed {
		from, until, err := yesterday.minutes()
		if err == nil && until <= from && now < until {
			return true
		}
	}
	return false
}

func (d DayHours) String() string {
	if d.Closed {
		return "closed"
	}
	return d.Open + "-" + d.Close
}

// Validate checks both times are HH:MM.
func (d DayHours) Validate() error {
	if d.Closed {
		return nil
	}
	_, _, err := d.minutes()
	return err
}

func (d DayHours) minutes() (int, int, error) {
	from, err := parseClock(d.Open)
	if err != nil {
		return 0, 0, err
	}
	until, err := parseClock(d.Close)
	if err != nil {
		return 0, 0, err
	}
	return from, until, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type Restaurant struct {
	ID             uint                             `json:"id" gorm:"primaryKey"`
	OwnerID        uint                             `json:"ownerId" gorm:"not null;index"`
	Owner          *User                            `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	CityID         *uint                            `json:"cityId" gorm:"index"`
	City           *City                            `json:"city,omitempty" gorm:"foreignKey:CityID"`
	Name           string                           `json:"name" gorm:"not null"`
	Description    string                           `json:"description"`
	Cuisine        string                           `json:"cuisine"`
	Street         string                           `json:"street"`
	PostalCode     string                           `json:"postalCode"`
	CityName       string                           `json:"cityName"`
	Latitude       *float64                         `json:"latitude"`
	Longitude      *float64                         `json:"longitude"`
	Phone          string                           `json:"phone"`
	ImageURL       string                           `json:"imageUrl"`
	MinOrderAmount money.Amount                     `json:"minOrderAmount" gorm:"not null;default:0"`
	Status         RestaurantStatus                 `json:"status" gorm:"not null;default:'pending';index"`
	OpeningHours   datatypes.JSONType[OpeningHours] `json:"openingHours"`
	Rating         float64                          `json:"rating" gorm:"default:0"`
	MenuItems      []MenuItem                       `json:"menuItems,omitempty" gorm:"foreignKey:RestaurantID"`
	CreatedAt      time.Time                        `json:"createdAt"`
	UpdatedAt      time.Time                        `json:"updatedAt"`
}

func (r Restaurant) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

type TeamRole string

const (
	TeamManager TeamRole = "manager"
	TeamStaff   TeamRole = "staff"
)

type TeamStatus string

const (
	TeamPending  TeamStatus = "pending"
	TeamActive   TeamStatus = "active"
	TeamInactive TeamStatus = "inactive"
)

// TeamMember delegates restaurant access to a user other than the owner.
type TeamMember struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	RestaurantID uint       `json:"restaurantId" gorm:"not null;uniqueIndex:idx_team_member"`
	UserID       uint       `json:"userId" gorm:"not null;uniqueIndex:idx_team_member"`
	User         *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Role         TeamRole   `json:"role" gorm:"not null"`
	Status       TeamStatus `json:"status" gorm:"not null;default:'pending'"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type MenuItemStatus string

const (
	MenuItemActive   MenuItemStatus = "active"
	MenuItemInactive MenuItemStatus = "inactive"
)

// DietaryTags is the closed set of dietary labels a menu item may carry.
var DietaryTags = map[string]bool{
	"vegetarian":    true,
	"vegan":         true,
	"gluten_free":   true,
	"lactose_free":  true,
	"halal":         true,
	"spicy":         true,
	"contains_nuts": true,
}

// Translation holds per-language overrides for a menu item's texts.
type Translation struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type MenuItem struct {
	ID           uint                                       `json:"id" gorm:"primaryKey"`
	RestaurantID uint                                       `json:"restaurantId" gorm:"not null;index"`
	Name         string                                     `json:"name" gorm:"not null"`
	Description  string                                     `json:"description"`
	Translations datatypes.JSONType[map[string]Translation] `json:"translations"`
	Price        money.Amount                               `json:"price" gorm:"not null"`
	Category     string                                     `json:"category" gorm:"index"`
	DietaryTags  datatypes.JSONType[[]string]               `json:"dietaryTags"`
	Quantity     *int                                       `json:"quantity"`
	ImageURL     string                                     `json:"imageUrl"`
	Status       MenuItemStatus                             `json:"status" gorm:"not null;default:'active'"`
	CreatedAt    time.Time                                  `json:"createdAt"`
	UpdatedAt    time.Time                                  `json:"updatedAt"`
}

// OutOfStock reports a tracked quantity of zero. A nil quantity is untracked.
func (m MenuItem) OutOfStock() bool {
	return m.Quantity != nil && *m.Quantity <= 0
}

func (m MenuItem) HasTag(tag string) bool {
	for _, t := range m.DietaryTags.Data() {
		if t == tag {
			return true
		}
	}
	return false
}
