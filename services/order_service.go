package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/pricing"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const orderPageSize = 100

var openStatuses = []lifecycle.Status{
	lifecycle.StatusOnTheWay,
	lifecycle.StatusArrived,
	lifecycle.StatusPickedUp,
	lifecycle.StatusArrivedAtCustomer,
}

// OrderConfig carries the pricing rules applied at placement and delivery.
type OrderConfig struct {
	Fees     pricing.FeeConfig
	Checkout pricing.CheckoutConfig
	Earnings pricing.EarningConfig
}

type OrderService struct {
	DB            *gorm.DB
	Hub           Broadcaster
	Events        EventPublisher
	Notifications *NotificationService
	Vouchers      *VoucherService
	Config        OrderConfig
	Now           func() time.Time
}

func NewOrderService(db *gorm.DB, hub Broadcaster, events EventPublisher, cfg OrderConfig) *OrderService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if events == nil {
		events = NopEventPublisher{}
	}
	return &OrderService{
		DB:            db,
		Hub:           hub,
		Events:        events,
		Notifications: NewNotificationService(db, hub),
		Vouchers:      NewVoucherService(db),
		Config:        cfg,
		Now:           time.Now,
	}
}

type PlaceItem struct {
	DishID   uint   `json:"dish_id"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

// PlaceOrder is a customer's checkout request.
type PlaceOrder struct {
	RestaurantID  uint        `json:"restaurant_id"`
	Items         []PlaceItem `json:"items"`
	Address       string      `json:"address"`
	Lat           *float64    `json:"lat"`
	Lng           *float64    `json:"lng"`
	PaymentMethod string      `json:"payment_method"`
	VoucherCode   string      `json:"voucher_code"`
}

// Place prices and stores a new Pending order, then tells the restaurant.
// Prices and the voucher are re-validated here regardless of what the
// client computed.
func (s *OrderService) Place(ctx context.Context, customerID uint, in PlaceOrder) (*models.Order, error) {
	if in.RestaurantID == 0 {
		return nil, invalid("restaurant_id is required")
	}
	if len(in.Items) == 0 {
		return nil, invalid("order has no items")
	}
	if strings.TrimSpace(in.Address) == "" {
		return nil, invalid("delivery address is required")
	}
	if !models.ValidPaymentMethod(in.PaymentMethod) {
		return nil, invalid(fmt.Sprintf("unknown payment method %q", in.PaymentMethod))
	}

	db := s.DB.WithContext(ctx)

	var restaurant models.Restaurant
	if err := db.First(&restaurant, in.RestaurantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !restaurant.IsOpen {
		return nil, invalid("restaurant is closed")
	}

	ids := make([]uint, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, invalid("item quantity must be positive")
		}
		ids = append(ids, it.DishID)
	}
	var dishes []models.Dish
	if err := db.Where("restaurant_id = ? AND id IN ?", restaurant.ID, ids).Find(&dishes).Error; err != nil {
		return nil, err
	}
	menu := make(map[uint]models.Dish, len(dishes))
	for _, d := range dishes {
		menu[d.ID] = d
	}

	lines := make([]pricing.Line, 0, len(in.Items))
	items := make([]models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		dish, ok := menu[it.DishID]
		if !ok {
			return nil, invalid(fmt.Sprintf("dish %d is not on this menu", it.DishID))
		}
		if !dish.Available {
			return nil, invalid(fmt.Sprintf("%s is not available", dish.Name))
		}
		lines = append(lines, pricing.Line{Name: dish.Name, Quantity: it.Quantity, UnitPrice: dish.Price})
		items = append(items, models.OrderItem{
			DishID:    dish.ID,
			Name:      dish.Name,
			Quantity:  it.Quantity,
			UnitPrice: dish.Price,
			Notes:     it.Notes,
		})
	}

	var dropOff pricing.Point
	if in.Lat != nil && in.Lng != nil {
		dropOff = pricing.Point{Lat: *in.Lat, Lng: *in.Lng}
	}
	quote := pricing.QuoteDelivery(s.Config.Fees, restaurant.Location(), dropOff)

	var voucher *pricing.Voucher
	if code := strings.TrimSpace(in.VoucherCode); code != "" {
		v, err := s.Vouchers.Find(ctx, restaurant.ID, code)
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("voucher not found")
		}
		if err != nil {
			return nil, err
		}
		pv := v.Pricing()
		voucher = &pv
	}

	totals, err := pricing.Totals(lines, quote.Fee, s.Config.Checkout, voucher, s.Now())
	if err != nil {
		return nil, invalid(err.Error())
	}

	order := models.Order{
		CustomerID:    customerID,
		RestaurantID:  restaurant.ID,
		Status:        lifecycle.StatusPending,
		Items:         items,
		Subtotal:      totals.Subtotal,
		DeliveryFee:   totals.DeliveryFee,
		ServiceFee:    totals.ServiceFee,
		Tax:           totals.Tax,
		Discount:      totals.Discount,
		Total:         totals.Total,
		VoucherCode:   totals.VoucherCode,
		PaymentMethod: in.PaymentMethod,
		Address:       strings.TrimSpace(in.Address),
		Lat:           in.Lat,
		Lng:           in.Lng,
	}
	if quote.HasDistance() {
		km := quote.DistanceKm
		order.DistanceKm = &km
	}

	if err := db.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.afterPlace(ctx, order, restaurant)
	return &order, nil
}

func (s *OrderService) afterPlace(ctx context.Context, order models.Order, restaurant models.Restaurant) {
	log := utils.InfoLogger.WithFields(logrus.Fields{"order_id": order.ID, "restaurant_id": restaurant.ID})
	log.Info("Order placed")

	if err := s.Hub.Publish(ctx, realtime.RestaurantChannel(restaurant.ID), realtime.EventNewOrder,
		realtime.NewOrderEvent{Order: WireOrder(order)}); err != nil {
		log.WithError(err).Warn("new-order broadcast failed")
	}
	if _, err := s.Notifications.Notify(ctx, restaurant.OwnerID, models.NotificationOrder, "New order",
		fmt.Sprintf("New order #%s, total %.2f", shortID(order.ID), order.Total), order.ID, realtime.NewOrderKey(order.ID)); err != nil {
		log.WithError(err).Warn("Owner notification failed")
	}
	s.publish(ctx, OrderEvent{
		Type:       OrderPlaced,
		OrderID:    order.ID,
		Status:     order.Status,
		Actor:      lifecycle.ActorCustomer,
		ActorID:    order.CustomerID,
		Total:      order.Total,
		OccurredAt: order.CreatedAt,
	})
}

// TransitionRequest is one status change command.
type TransitionRequest struct {
	OrderID        string
	ActorID        uint
	Role           string
	Status         string
	Reason         string
	TraveledKm     *float64
	ExpectedStatus string
}

type TransitionResult struct {
	Order   models.Order    `json:"order"`
	Earning *models.Earning `json:"earning,omitempty"`
}

// Transition moves an order along the lifecycle. The update is conditional
// on the status read inside the transaction, so two concurrent commands on
// one order cannot both succeed.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	to, err := lifecycle.Parse(req.Status)
	if err != nil {
		return nil, invalid(err.Error())
	}
	actor, ok := lifecycle.ActorForRole(req.Role)
	if !ok {
		return nil, ErrForbidden
	}
	reason := strings.TrimSpace(req.Reason)
	if to == lifecycle.StatusCancelled && reason == "" {
		return nil, invalid("a reason is required to cancel an order")
	}
	var expected lifecycle.Status
	if req.ExpectedStatus != "" {
		if expected, err = lifecycle.Parse(req.ExpectedStatus); err != nil {
			return nil, invalid(err.Error())
		}
	}
	if req.TraveledKm != nil && *req.TraveledKm < 0 {
		return nil, invalid("traveled distance cannot be negative")
	}

	var (
		result     TransitionResult
		from       lifecycle.Status
		restaurant models.Restaurant
	)
	claim := actor == lifecycle.ActorRider && to == lifecycle.StatusOnTheWay
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claims by one rider are serialized on the rider's row so the
		// open-delivery count below cannot race.
		if claim {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&models.User{}, req.ActorID).Error; err != nil {
				return fmt.Errorf("lock rider %d: %w", req.ActorID, err)
			}
		}

		var order models.Order
		if err := tx.Preload("Items").First(&order, "id = ?", req.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.First(&restaurant, order.RestaurantID).Error; err != nil {
			return err
		}
		from = order.Status

		if claim && order.RiderID != nil && *order.RiderID != req.ActorID {
			return &ConflictError{Reason: "order was taken by another rider", Order: order}
		}
		// An unassigned order past Accepted was once claimable, so the rider
		// is looking at a stale list.
		if claim && order.RiderID == nil && from.Rank() > lifecycle.StatusAccepted.Rank() {
			return &ConflictError{Reason: fmt.Sprintf("order is %s and can no longer be claimed", from), Order: order}
		}
		if !isParty(order, restaurant, actor, req.ActorID, to) {
			return ErrForbidden
		}
		if expected != "" && expected != from {
			return &ConflictError{Reason: fmt.Sprintf("order is %s, not %s", from, expected), Order: order}
		}
		if err := lifecycle.Check(from, to, actor); err != nil {
			if reachable(to, actor) {
				return &ConflictError{Reason: err.Error(), Order: order}
			}
			return err
		}

		now := s.Now()
		updates := map[string]interface{}{"status": to, "updated_at": now}
		var traveled float64
		switch to {
		case lifecycle.StatusAccepted:
			updates["accepted_at"] = now
		case lifecycle.StatusOnTheWay:
			var open int64
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Model(&models.Order{}).
				Where("rider_id = ? AND status IN ?", req.ActorID, openStatuses).
				Count(&open).Error; err != nil {
				return err
			}
			if open > 0 {
				return &ConflictError{Reason: "rider already has an active delivery", Order: order}
			}
			updates["rider_id"] = req.ActorID
		case lifecycle.StatusPickedUp:
			updates["picked_up_at"] = now
		case lifecycle.StatusDelivered:
			traveled = traveledKm(order, req.TraveledKm)
			updates["delivered_at"] = now
			updates["traveled_km"] = traveled
		case lifecycle.StatusCancelled:
			updates["cancelled_at"] = now
			updates["cancel_reason"] = reason
		}

		res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, from).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update order %s: %w", order.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			var fresh models.Order
			if err := tx.Preload("Items").First(&fresh, "id = ?", order.ID).Error; err != nil {
				return err
			}
			return &ConflictError{Reason: "order was updated by someone else", Order: fresh}
		}

		if to == lifecycle.StatusDelivered {
			pay := pricing.Earn(s.Config.Earnings, traveled)
			earning := models.Earning{
				RiderID:     *order.RiderID,
				OrderID:     order.ID,
				BasePay:     pay.BasePay,
				DistanceKm:  pay.DistanceKm,
				PerKm:       pay.PerKm,
				DistancePay: pay.DistancePay,
				Amount:      pay.Amount,
			}
			if err := tx.Create(&earning).Error; err != nil {
				return fmt.Errorf("record earning: %w", err)
			}
			result.Earning = &earning
		}

		return tx.Preload("Items").First(&result.Order, "id = ?", order.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, from, result, restaurant, actor, req.ActorID)
	return &result, nil
}

func (s *OrderService) afterTransition(ctx context.Context, from lifecycle.Status, res TransitionResult, restaurant models.Restaurant, actor lifecycle.Actor, actorID uint) {
	o := res.Order
	log := utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": o.ID,
		"from":     from,
		"to":       o.Status,
		"actor":    actor,
	})
	log.Info("Order status changed")

	ev := realtime.StatusEvent{
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		CustomerID:   o.CustomerID,
		Status:       o.Status,
		Previous:     from,
		RiderID:      o.RiderID,
		Reason:       o.CancelReason,
		UpdatedAt:    o.UpdatedAt,
	}
	channels := []string{realtime.UserChannel(o.CustomerID), realtime.RestaurantChannel(o.RestaurantID)}
	if o.RiderID != nil {
		channels = append(channels, realtime.UserChannel(*o.RiderID))
	}
	if from == lifecycle.StatusAccepted {
		channels = append(channels, realtime.ChannelRiders)
	}
	for _, ch := range channels {
		if err := s.Hub.Publish(ctx, ch, realtime.EventOrderStatus, ev); err != nil {
			log.WithError(err).WithField("channel", ch).Warn("order-status broadcast failed")
		}
	}

	switch o.Status {
	case lifecycle.StatusAccepted:
		if err := s.Hub.Publish(ctx, realtime.ChannelRiders, realtime.EventOrderAvailable,
			realtime.NewOrderEvent{Order: WireOrder(o)}); err != nil {
			log.WithError(err).Warn("order-available broadcast failed")
		}
	case lifecycle.StatusDelivered:
		if err := s.Hub.Publish(ctx, realtime.UserChannel(o.CustomerID), realtime.EventRatingRequest,
			realtime.RatingRequestEvent{OrderID: o.ID, RestaurantID: o.RestaurantID}); err != nil {
			log.WithError(err).Warn("rating-request broadcast failed")
		}
	}

	notify := func(userID uint, msg string) {
		if _, err := s.Notifications.Notify(ctx, userID, models.NotificationStatus, "Order update", msg, o.ID, realtime.StatusKey(o.ID, o.Status)); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("Status notification failed")
		}
	}
	if actor != lifecycle.ActorCustomer {
		notify(o.CustomerID, statusMessage(o))
	}
	if o.Status == lifecycle.StatusCancelled {
		msg := fmt.Sprintf("Order #%s was cancelled: %s", shortID(o.ID), o.CancelReason)
		if actor != lifecycle.ActorRestaurant {
			notify(restaurant.OwnerID, msg)
		}
		if o.RiderID != nil && actor != lifecycle.ActorRider {
			notify(*o.RiderID, msg)
		}
	}

	s.publish(ctx, OrderEvent{
		Type:       OrderStatusChanged,
		OrderID:    o.ID,
		Status:     o.Status,
		Previous:   from,
		Actor:      actor,
		ActorID:    actorID,
		Total:      o.Total,
		OccurredAt: o.UpdatedAt,
	})
}

func (s *OrderService) publish(ctx context.Context, ev OrderEvent) {
	if err := s.Events.PublishOrderEvent(ctx, ev); err != nil {
		utils.ErrorLogger.WithError(err).WithField("order_id", ev.OrderID).Warn("Order event not published")
	}
}

// isParty reports whether actorID may act on the order at all. An
// unassigned rider is a party only to the claim of an Accepted order.
func isParty(o models.Order, r models.Restaurant, actor lifecycle.Actor, actorID uint, to lifecycle.Status) bool {
	switch actor {
	case lifecycle.ActorSystem:
		return true
	case lifecycle.ActorCustomer:
		return o.CustomerID == actorID
	case lifecycle.ActorRestaurant:
		return r.OwnerID == actorID
	case lifecycle.ActorRider:
		if o.RiderID == nil {
			return o.Status == lifecycle.StatusAccepted && to == lifecycle.StatusOnTheWay
		}
		return *o.RiderID == actorID
	}
	return false
}

// reachable reports whether actor could ever move an order into to. A
// refused transition the actor could take from another status means the
// caller's view is stale.
func reachable(to lifecycle.Status, actor lifecycle.Actor) bool {
	for _, t := range lifecycle.Transitions() {
		if t.To == to && t.Actor == actor {
			return true
		}
	}
	return false
}

func traveledKm(o models.Order, reported *float64) float64 {
	if reported != nil {
		return *reported
	}
	if o.DistanceKm != nil {
		return *o.DistanceKm
	}
	return 0
}

func statusMessage(o models.Order) string {
	return lifecycle.Describe(o.Status, o.CancelReason)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
