package models

import "time"

// City is a delivery area restaurants are grouped by.
type City struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"not null;uniqueIndex:idx_city_name_canton"`
	Canton          string    `json:"canton" gorm:"uniqueIndex:idx_city_name_canton"`
	PostalCode      string    `json:"postalCode"`
	DeliveryEnabled bool      `json:"deliveryEnabled" gorm:"not null"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
