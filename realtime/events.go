package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/yeremiapane/delivery-app/lifecycle"
)

// OrderItem is the wire shape of an order line.
type OrderItem struct {
	DishID    uint    `json:"dish_id"`
	Name      string  `json:"name" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// Order is the wire shape of an order shared by REST responses and pushes.
type Order struct {
	ID            string           `json:"id" validate:"required"`
	CustomerID    uint             `json:"customer_id" validate:"required"`
	RestaurantID  uint             `json:"restaurant_id" validate:"required"`
	RiderID       *uint            `json:"rider_id,omitempty"`
	Status        lifecycle.Status `json:"status" validate:"order_status"`
	Items         []OrderItem      `json:"items" validate:"dive"`
	Subtotal      float64          `json:"subtotal" validate:"gte=0"`
	DeliveryFee   float64          `json:"delivery_fee" validate:"gte=0"`
	ServiceFee    float64          `json:"service_fee" validate:"gte=0"`
	Tax           float64          `json:"tax" validate:"gte=0"`
	Discount      float64          `json:"discount" validate:"gte=0"`
	Total         float64          `json:"total" validate:"gte=0"`
	VoucherCode   string           `json:"voucher_code,omitempty"`
	PaymentMethod string           `json:"payment_method"`
	Address       string           `json:"address"`
	Lat           *float64         `json:"lat,omitempty"`
	Lng           *float64         `json:"lng,omitempty"`
	DistanceKm    *float64         `json:"distance_km,omitempty"`
	TraveledKm    float64          `json:"traveled_km"`
	CancelReason  string           `json:"cancel_reason,omitempty"`
	Rating        *int             `json:"rating,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type NewOrderEvent struct {
	Order Order `json:"order"`
}

type StatusEvent struct {
	OrderID      string           `json:"order_id" validate:"required"`
	RestaurantID uint             `json:"restaurant_id"`
	CustomerID   uint             `json:"customer_id"`
	Status       lifecycle.Status `json:"status" validate:"order_status"`
	Previous     lifecycle.Status `json:"previous,omitempty"`
	RiderID      *uint            `json:"rider_id,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at" validate:"required"`
}

type ChatEvent struct {
	MessageID string    `json:"message_id" validate:"required"`
	OrderID   string    `json:"order_id" validate:"required"`
	SenderID  uint      `json:"sender_id" validate:"required"`
	Body      string    `json:"body" validate:"required"`
	SentAt    time.Time `json:"sent_at" validate:"required"`
}

type NotificationEvent struct {
	ID        uint      `json:"id" validate:"required"`
	Type      string    `json:"type" validate:"oneof=order status chat"`
	Title     string    `json:"title"`
	Message   string    `json:"message" validate:"required"`
	OrderID   string    `json:"order_id,omitempty"`
	Key       string    `json:"key,omitempty"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
}

type RatingRequestEvent struct {
	OrderID      string `json:"order_id" validate:"required"`
	RestaurantID uint   `json:"restaurant_id"`
}

type DishEvent struct {
	DishID       uint    `json:"dish_id" validate:"required"`
	RestaurantID uint    `json:"restaurant_id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Price        float64 `json:"price" validate:"gte=0"`
	Available    bool    `json:"available"`
}

// Notification keys identify the occurrence a notification reports, so a
// record synthesized from a push and the stored copy merge into one.
func NewOrderKey(orderID string) string { return orderID + ":new" }

func StatusKey(orderID string, status lifecycle.Status) string {
	return orderID + ":" + string(status)
}

func ChatKey(messageID string) string { return "chat:" + messageID }

var validate = func() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(lifecycle.Status)
		return ok && s.Valid()
	})
	return v
}()

// Validate runs the payload schema checks on any event or order value.
func Validate(v interface{}) error {
	return validate.Struct(v)
}

// Decode unmarshals and validates an event payload. Nothing reaches client
// state without passing through here.
func Decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("decode %T: empty payload", v)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	if err := validate.Struct(&v); err != nil {
		return v, fmt.Errorf("validate %T: %w", v, err)
	}
	return v, nil
}

func DecodeStatus(data json.RawMessage) (StatusEvent, error) { return Decode[StatusEvent](data) }

func DecodeNewOrder(data json.RawMessage) (NewOrderEvent, error) { return Decode[NewOrderEvent](data) }

func DecodeChat(data json.RawMessage) (ChatEvent, error) { return Decode[ChatEvent](data) }

func DecodeNotification(data json.RawMessage) (NotificationEvent, error) {
	return Decode[NotificationEvent](data)
}

func DecodeRatingRequest(data json.RawMessage) (RatingRequestEvent, error) {
	return Decode[RatingRequestEvent](data)
}

func DecodeDish(data json.RawMessage) (DishEvent, error) { return Decode[DishEvent](data) }
