package models

import "time"

// Earning is written once per delivered order.
type Earning struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RiderID     uint      `gorm:"not null;index" json:"rider_id"`
	OrderID     string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"order_id"`
	BasePay     float64   `gorm:"type:decimal(12,2);not null" json:"base_pay"`
	DistanceKm  float64   `gorm:"not null" json:"distance_km"`
	PerKm       float64   `gorm:"type:decimal(12,2);not null" json:"per_km"`
	DistancePay float64   `gorm:"type:decimal(12,2);not null" json:"distance_pay"`
	Amount      float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// Payout statuses.
const (
	PayoutPending = "pending"
	PayoutPaid    = "paid"
	PayoutFailed  = "failed"
)

// Payout moves wallet balance out to the rider. Only paid and pending payouts
// reduce the balance.
type Payout struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RiderID   uint      `gorm:"not null;index" json:"rider_id"`
	Amount    float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Reference string    `gorm:"type:varchar(100)" json:"reference"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Restaurant{},
		&Dish{},
		&Voucher{},
		&Order{},
		&OrderItem{},
		&ChatMessage{},
		&Notification{},
		&Earning{},
		&Payout{},
	}
}
