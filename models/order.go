package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/pricing"
	"gorm.io/gorm"
)

// Payment methods accepted at checkout.
const (
	PaymentCard    = "card"
	PaymentCOD     = "cod"
	PaymentWalletA = "wallet_a"
	PaymentWalletB = "wallet_b"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCard, PaymentCOD, PaymentWalletA, PaymentWalletB:
		return true
	}
	return false
}

type Order struct {
	ID            string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CustomerID    uint             `gorm:"not null;index" json:"customer_id"`
	Customer      User             `gorm:"foreignKey:CustomerID" json:"-"`
	RestaurantID  uint             `gorm:"not null;index" json:"restaurant_id"`
	Restaurant    Restaurant       `gorm:"foreignKey:RestaurantID" json:"-"`
	RiderID       *uint            `gorm:"index" json:"rider_id,omitempty"`
	Rider         *User            `gorm:"foreignKey:RiderID" json:"-"`
	Status        lifecycle.Status `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	Items         []OrderItem      `gorm:"foreignKey:OrderID" json:"items"`
	Subtotal      float64          `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DeliveryFee   float64          `gorm:"type:decimal(12,2);not null;default:0" json:"delivery_fee"`
	ServiceFee    float64          `gorm:"type:decimal(12,2);not null;default:0" json:"service_fee"`
	Tax           float64          `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`
	Discount      float64          `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Total         float64          `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	VoucherCode   string           `gorm:"type:varchar(50)" json:"voucher_code,omitempty"`
	PaymentMethod string           `gorm:"type:varchar(20);not null" json:"payment_method"`
	Address       string           `gorm:"type:text;not null" json:"address"`
	Lat           *float64         `json:"lat,omitempty"`
	Lng           *float64         `json:"lng,omitempty"`
	DistanceKm    *float64         `json:"distance_km,omitempty"`
	TraveledKm    float64          `gorm:"not null;default:0" json:"traveled_km"`
	CancelReason  string           `gorm:"type:text" json:"cancel_reason,omitempty"`
	Rating        *int             `json:"rating,omitempty"`
	RatingComment string           `gorm:"type:text" json:"rating_comment,omitempty"`
	AcceptedAt    *time.Time       `json:"accepted_at,omitempty"`
	PickedUpAt    *time.Time       `json:"picked_up_at,omitempty"`
	DeliveredAt   *time.Time       `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns the opaque order id.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = lifecycle.StatusPending
	}
	return nil
}

// DropOff is the delivery location; unset when the customer gave no coordinates.
func (o Order) DropOff() pricing.Point {
	if o.Lat == nil || o.Lng == nil {
		return pricing.Point{}
	}
	return pricing.Point{Lat: *o.Lat, Lng: *o.Lng}
}

// HasRider reports whether riderID is the assigned rider.
func (o Order) HasRider(riderID uint) bool {
	return o.RiderID != nil && *o.RiderID == riderID
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   string  `gorm:"type:varchar(36);not null;index" json:"order_id"`
	DishID    uint    `gorm:"not null" json:"dish_id"`
	Name      string  `gorm:"type:varchar(255);not null" json:"name"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	UnitPrice float64 `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Notes     string  `gorm:"type:text" json:"notes,omitempty"`
}

// ChatMessage is a message between the customer and the rider of an order.
type ChatMessage struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID     string    `gorm:"type:varchar(36);not null;index" json:"order_id"`
	SenderID    uint      `gorm:"not null" json:"sender_id"`
	RecipientID uint      `gorm:"not null" json:"recipient_id"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
