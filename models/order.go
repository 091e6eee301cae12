package models

import (
	"time"

	"food-ordering-api/money"
)

// OrderStatus represents all possible states of a food delivery order
type OrderStatus string

const (
	StatusNew            OrderStatus = "new"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusAssigned       OrderStatus = "assigned"
	StatusInTransit      OrderStatus = "in_transit"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// AllOrderStatuses lists statuses in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	StatusNew, StatusConfirmed, StatusPreparing, StatusReadyForPickup,
	StatusAssigned, StatusInTransit, StatusDelivered, StatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range AllOrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type Order struct {
	ID                    uint                 `json:"id" gorm:"primaryKey"`
	OrderNumber           string               `json:"orderNumber" gorm:"uniqueIndex;not null"`
	CustomerID            *uint                `json:"customerId" gorm:"index"`
	Customer              *User                `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	GuestName             string               `json:"guestName,omitempty"`
	GuestEmail            string               `json:"guestEmail,omitempty"`
	GuestPhone            string               `json:"guestPhone,omitempty"`
	RestaurantID          uint                 `json:"restaurantId" gorm:"not null;index"`
	Restaurant            *Restaurant          `json:"restaurant,omitempty" gorm:"foreignKey:RestaurantID"`
	DriverID              *uint                `json:"driverId" gorm:"index"`
	Driver                *Driver              `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Status                OrderStatus          `json:"status" gorm:"not null;default:'new';index"`
	DeliveryStreet        string               `json:"deliveryStreet"`
	DeliveryPostalCode    string               `json:"deliveryPostalCode"`
	DeliveryCity          string               `json:"deliveryCity"`
	DeliveryLatitude      *float64             `json:"deliveryLatitude"`
	DeliveryLongitude     *float64             `json:"deliveryLongitude"`
	DeliveryInstructions  string               `json:"deliveryInstructions"`
	DeliveryDistanceKm    *float64             `json:"deliveryDistanceKm"`
	ScheduledDeliveryTime *time.Time           `json:"scheduledDeliveryTime"`
	Subtotal              money.Amount         `json:"subtotal" gorm:"not null"`
	DeliveryFee           money.Amount         `json:"deliveryFee" gorm:"not null"`
	DiscountAmount        money.Amount         `json:"discountAmount" gorm:"not null;default:0"`
	TaxAmount             money.Amount         `json:"taxAmount" gorm:"not null"`
	TotalAmount           money.Amount         `json:"totalAmount" gorm:"not null"`
	PaymentStatus         PaymentStatus        `json:"paymentStatus" gorm:"not null;default:'pending'"`
	PaymentReference      string               `json:"paymentReference" gorm:"index"`
	VoucherCode           string               `json:"voucherCode"`
	CancellationReason    string               `json:"cancellationReason,omitempty"`
	DriverRating          *int                 `json:"driverRating,omitempty"`
	Items                 []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory         []OrderStatusHistory `json:"statusHistory,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
}

// OrderItem is a snapshot of a menu item at order time and never changes.
type OrderItem struct {
	ID                  uint         `json:"id" gorm:"primaryKey"`
	OrderID             uint         `json:"orderId" gorm:"not null;index"`
	MenuItemID          *uint        `json:"menuItemId"`
	MenuItem            *MenuItem    `json:"-" gorm:"foreignKey:MenuItemID;constraint:OnDelete:SET NULL"`
	Name                string       `json:"name" gorm:"not null"`
	Price               money.Amount `json:"price" gorm:"not null"`
	Quantity            int          `json:"quantity" gorm:"not null"`
	Subtotal            money.Amount `json:"subtotal" gorm:"not null"`
	SpecialInstructions string       `json:"specialInstructions,omitempty"`
}

// OrderStatusHistory tracks every status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"orderId" gorm:"not null;index"`
	FromStatus OrderStatus `json:"fromStatus"`
	ToStatus   OrderStatus `json:"toStatus" gorm:"not null"`
	ChangedBy  *uint       `json:"changedBy"`
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"createdAt"`
}
