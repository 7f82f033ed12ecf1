package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/utils"
	"gorm.io/gorm"
)

// List returns the orders visible to the caller, newest first. Riders see
// their own deliveries and every Accepted order still waiting for a rider.
func (s *OrderService) List(ctx context.Context, userID uint, role string) ([]models.Order, error) {
	q := s.DB.WithContext(ctx).Preload("Items").Order("created_at DESC").Limit(orderPageSize)
	switch role {
	case models.RoleCustomer:
		q = q.Where("customer_id = ?", userID)
	case models.RoleRestaurant:
		q = q.Where("restaurant_id IN (?)", s.DB.Model(&models.Restaurant{}).Select("id").Where("owner_id = ?", userID))
	case models.RoleRider:
		q = q.Where("rider_id = ? OR (status = ? AND rider_id IS NULL)", userID, lifecycle.StatusAccepted)
	case models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Get loads one order the caller is a party to.
func (s *OrderService) Get(ctx context.Context, id string, userID uint, role string) (*models.Order, error) {
	order, restaurant, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(*order, restaurant, userID, role) {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) load(ctx context.Context, id string) (*models.Order, models.Restaurant, error) {
	var (
		order      models.Order
		restaurant models.Restaurant
	)
	db := s.DB.WithContext(ctx)
	if err := db.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, restaurant, ErrNotFound
		}
		return nil, restaurant, err
	}
	if err := db.First(&restaurant, order.RestaurantID).Error; err != nil {
		return nil, restaurant, err
	}
	return &order, restaurant, nil
}

func canView(o models.Order, r models.Restaurant, userID uint, role string) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return o.CustomerID == userID
	case models.RoleRestaurant:
		return r.OwnerID == userID
	case models.RoleRider:
		if o.RiderID == nil {
			return o.Status == lifecycle.StatusAccepted
		}
		return *o.RiderID == userID
	}
	return false
}

// SendMessage posts a chat message between the customer and the assigned
// rider of an order.
func (s *OrderService) SendMessage(ctx context.Context, orderID string, senderID uint, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalid("message body is required")
	}
	order, _, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RiderID == nil {
		return nil, invalid("no rider is assigned to this order yet")
	}

	var recipient uint
	switch senderID {
	case order.CustomerID:
		recipient = *order.RiderID
	case *order.RiderID:
		recipient = order.CustomerID
	default:
		return nil, ErrForbidden
	}

	msg := models.ChatMessage{OrderID: order.ID, SenderID: senderID, RecipientID: recipient, Body: body}
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("store chat message: %w", err)
	}

	if err := s.Hub.Publish(ctx, realtime.UserChannel(recipient), realtime.EventChatMessage, realtime.ChatEvent{
		MessageID: msg.ID,
		OrderID:   msg.OrderID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		SentAt:    msg.CreatedAt,
	}); err != nil {
		utils.ErrorLogger.WithError(err).WithField("order_id", order.ID).Warn("chat-message broadcast failed")
	}
	if _, err := s.Notifications.Notify(ctx, recipient, models.NotificationChat, "New message", body, order.ID, realtime.ChatKey(msg.ID)); err != nil {
		utils.ErrorLogger.WithError(err).WithField("order_id", order.ID).Warn("Chat notification failed")
	}
	return &msg, nil
}

// Messages lists an order's chat in send order.
func (s *OrderService) Messages(ctx context.Context, orderID string, userID uint, role string) ([]models.ChatMessage, error) {
	if _, err := s.Get(ctx, orderID, userID, role); err != nil {
		return nil, err
	}
	var out []models.ChatMessage
	err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&out).Error
	return out, err
}

// Rate records the customer's rating of a delivered order. An order is
// rated once.
func (s *OrderService) Rate(ctx context.Context, orderID string, customerID uint, stars int, comment string) (*models.Order, error) {
	if stars < 1 || stars > 5 {
		return nil, invalid("rating must be between 1 and 5")
	}
	order, _, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, ErrForbidden
	}
	if order.Status != lifecycle.StatusDelivered {
		return nil, invalid("only delivered orders can be rated")
	}
	if order.Rating != nil {
		return nil, &ConflictError{Reason: "order has already been rated", Order: *order}
	}

	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND rating IS NULL", order.ID).
		Updates(map[string]interface{}{"rating": stars, "rating_comment": strings.TrimSpace(comment)})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &ConflictError{Reason: "order has already been rated", Order: *order}
	}
	order.Rating = &stars
	order.RatingComment = strings.TrimSpace(comment)
	return order, nil
}
