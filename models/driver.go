package models

import "time"

type DriverStatus string

const (
	DriverOffline   DriverStatus = "offline"
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverSuspended DriverStatus = "suspended"
)

type Driver struct {
	ID                uint         `json:"id" gorm:"primaryKey"`
	UserID            uint         `json:"userId" gorm:"uniqueIndex;not null"`
	User              *User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	PickupZone        string       `json:"pickupZone" gorm:"index"`
	VehicleType       string       `json:"vehicleType"`
	Status            DriverStatus `json:"status" gorm:"not null;default:'offline'"`
	RatingSum         int64        `json:"-" gorm:"not null;default:0"`
	RatingCount       int64        `json:"ratingCount" gorm:"not null;default:0"`
	TotalDeliveries   int64        `json:"totalDeliveries" gorm:"not null;default:0"`
	DocumentsVerified bool         `json:"documentsVerified" gorm:"not null;default:false"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// AverageRating is 0 until the first rating arrives.
func (d Driver) AverageRating() float64 {
	if d.RatingCount == 0 {
		return 0
	}
	return float64(d.RatingSum) / float64(d.RatingCount)
}
