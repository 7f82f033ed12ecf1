package services

import (
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/realtime"
)

// WireOrder converts a stored order to the shape pushed over realtime
// channels.
func WireOrder(o models.Order) realtime.Order {
	items := make([]realtime.OrderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = realtime.OrderItem{
			DishID:    it.DishID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return realtime.Order{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		RestaurantID:  o.RestaurantID,
		RiderID:       o.RiderID,
		Status:        o.Status,
		Items:         items,
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		ServiceFee:    o.ServiceFee,
		Tax:           o.Tax,
		Discount:      o.Discount,
		Total:         o.Total,
		VoucherCode:   o.VoucherCode,
		PaymentMethod: o.PaymentMethod,
		Address:       o.Address,
		Lat:           o.Lat,
		Lng:           o.Lng,
		DistanceKm:    o.DistanceKm,
		TraveledKm:    o.TraveledKm,
		CancelReason:  o.CancelReason,
		Rating:        o.Rating,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
