package models

import "time"

type LoyaltyTransactionType string

const (
	LoyaltyEarned        LoyaltyTransactionType = "earned"
	LoyaltyRedeemed      LoyaltyTransactionType = "redeemed"
	LoyaltyReferralBonus LoyaltyTransactionType = "referral_bonus"
	// LoyaltyReversed takes back the points of a cancelled order.
	LoyaltyReversed LoyaltyTransactionType = "reversed"
)

// LoyaltyPoints is the single balance row per customer.
type LoyaltyPoints struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CustomerID     uint      `json:"customerId" gorm:"uniqueIndex;not null"`
	PointsBalance  int64     `json:"pointsBalance" gorm:"not null;default:0"`
	LifetimePoints int64     `json:"lifetimePoints" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// LoyaltyTransaction is append-only; balances must equal the sum of entries.
type LoyaltyTransaction struct {
	ID          uint                   `json:"id" gorm:"primaryKey"`
	CustomerID  uint                   `json:"customerId" gorm:"not null;index"`
	OrderID     *uint                  `json:"orderId"`
	Type        LoyaltyTransactionType `json:"type" gorm:"not null"`
	Points      int64                  `json:"points" gorm:"not null"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"createdAt"`
}
