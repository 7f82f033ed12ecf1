package client

import (
	"time"

	"github.com/yeremiapane/delivery-app/pricing"
	"github.com/yeremiapane/delivery-app/realtime"
)

// Order is the wire order shared with realtime pushes.
type Order = realtime.Order

type Restaurant struct {
	ID       uint    `json:"id" validate:"required"`
	OwnerID  uint    `json:"owner_id"`
	Name     string  `json:"name" validate:"required"`
	Address  string  `json:"address"`
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" validate:"gte=-180,lte=180"`
	IsOpen   bool    `json:"is_open"`
	ImageURL string  `json:"image_url"`
}

func (r Restaurant) Location() pricing.Point {
	return pricing.Point{Lat: r.Lat, Lng: r.Lng}
}

type RestaurantStats struct {
	RestaurantID  uint             `json:"restaurant_id" validate:"required"`
	TotalOrders   int64            `json:"total_orders" validate:"gte=0"`
	TodayOrders   int64            `json:"today_orders" validate:"gte=0"`
	ByStatus      map[string]int64 `json:"by_status"`
	Revenue       float64          `json:"revenue" validate:"gte=0"`
	TodayRevenue  float64          `json:"today_revenue" validate:"gte=0"`
	AverageRating float64          `json:"average_rating" validate:"gte=0,lte=5"`
	Ratings       int64            `json:"ratings" validate:"gte=0"`
}

type Voucher struct {
	ID            uint      `json:"id"`
	RestaurantID  uint      `json:"restaurant_id"`
	Code          string    `json:"code" validate:"required"`
	Percentage    float64   `json:"percentage" validate:"gte=0,lte=100"`
	MinimumAmount float64   `json:"minimum_amount" validate:"gte=0"`
	ExpiresAt     time.Time `json:"expires_at"`
	Active        bool      `json:"active"`
}

func (v Voucher) Pricing() pricing.Voucher {
	return pricing.Voucher{
		Code:          v.Code,
		Percentage:    v.Percentage,
		MinimumAmount: v.MinimumAmount,
		ExpiresAt:     v.ExpiresAt,
		Active:        v.Active,
	}
}

type VoucherCheck struct {
	Voucher  Voucher `json:"voucher"`
	Discount float64 `json:"discount" validate:"gte=0"`
}

// Earning is the server's record of a rider's pay for one delivery.
type Earning struct {
	OrderID     string  `json:"order_id"`
	BasePay     float64 `json:"base_pay" validate:"gte=0"`
	DistanceKm  float64 `json:"distance_km" validate:"gte=0"`
	PerKm       float64 `json:"per_km" validate:"gte=0"`
	DistancePay float64 `json:"distance_pay" validate:"gte=0"`
	Amount      float64 `json:"amount" validate:"gte=0"`
}

type Wallet struct {
	RiderID       uint    `json:"rider_id"`
	Deliveries    int64   `json:"deliveries" validate:"gte=0"`
	TotalEarned   float64 `json:"total_earned"`
	PaidOut       float64 `json:"paid_out"`
	PendingPayout float64 `json:"pending_payout"`
	Balance       float64 `json:"balance"`
}

// TransitionResult is the answer to a status change.
type TransitionResult struct {
	Order   Order    `json:"order"`
	Earning *Earning `json:"earning,omitempty"`
}

// ServerNotification is a notification as stored by the server.
type ServerNotification struct {
	ID        uint      `json:"id" validate:"required"`
	Type      string    `json:"type" validate:"oneof=order status chat"`
	Title     string    `json:"title"`
	Message   string    `json:"message" validate:"required"`
	OrderID   string    `json:"order_id"`
	Key       string    `json:"key"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
}

type notificationPage struct {
	Notifications []ServerNotification `json:"notifications" validate:"dive"`
	Unread        int64                `json:"unread"`
}

type ChatMessage struct {
	ID          string    `json:"id" validate:"required"`
	OrderID     string    `json:"order_id" validate:"required"`
	SenderID    uint      `json:"sender_id"`
	RecipientID uint      `json:"recipient_id"`
	Body        string    `json:"body" validate:"required"`
	CreatedAt   time.Time `json:"created_at"`
}

type loginResult struct {
	Token        string `json:"token" validate:"required"`
	UserID       uint   `json:"user_id" validate:"required"`
	Name         string `json:"name"`
	Role         string `json:"role" validate:"oneof=customer restaurant rider admin"`
	RestaurantID uint   `json:"restaurant_id"`
}
