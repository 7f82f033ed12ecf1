package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/realtime"
)

func TestNotificationLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := NewNotificationService(f.db, f.hub)
	ctx := context.Background()

	first, err := svc.Notify(ctx, f.customer.ID, models.NotificationStatus, "Order update", "accepted", "o-1", "o-1:Accepted")
	require.NoError(t, err)
	second, err := svc.Notify(ctx, f.customer.ID, models.NotificationChat, "New message", "hi", "o-1", "chat:m-1")
	require.NoError(t, err)
	f.hub.AssertCalled(t, "Publish", mock.Anything, realtime.UserChannel(f.customer.ID), realtime.EventNotification, mock.Anything)

	list, err := svc.List(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recent first")

	unread, err := svc.UnreadCount(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, svc.MarkRead(ctx, f.customer.ID, first.ID))
	require.NoError(t, svc.MarkRead(ctx, f.customer.ID, first.ID), "marking twice is fine")
	unread, _ = svc.UnreadCount(ctx, f.customer.ID)
	assert.Equal(t, int64(1), unread)

	assert.ErrorIs(t, svc.MarkRead(ctx, f.other.ID, first.ID), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, f.other.ID, second.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, f.customer.ID, second.ID))

	list, _ = svc.List(ctx, f.customer.ID)
	assert.Len(t, list, 1)
}

func TestWalletBalance(t *testing.T) {
	f := newFixture(t)
	svc := NewEarningService(f.db)
	ctx := context.Background()

	for i, amount := range []float64{110, 50} {
		require.NoError(t, f.db.Create(&models.Earning{
			RiderID: f.rider.ID, OrderID: []string{"o-1", "o-2"}[i], BasePay: 40, Amount: amount,
		}).Error)
	}
	for _, p := range []models.Payout{
		{RiderID: f.rider.ID, Amount: 60, Status: models.PayoutPaid},
		{RiderID: f.rider.ID, Amount: 20, Status: models.PayoutPending},
		{RiderID: f.rider.ID, Amount: 100, Status: models.PayoutFailed},
		{RiderID: f.rider2.ID, Amount: 5, Status: models.PayoutPaid},
	} {
		p := p
		require.NoError(t, f.db.Create(&p).Error)
	}

	w, err := svc.Wallet(ctx, f.rider.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Deliveries)
	assert.Equal(t, 160.0, w.TotalEarned)
	assert.Equal(t, 60.0, w.PaidOut)
	assert.Equal(t, 20.0, w.PendingPayout)
	assert.Equal(t, 80.0, w.Balance)

	earnings, err := svc.Earnings(ctx, f.rider.ID)
	require.NoError(t, err)
	assert.Len(t, earnings, 2)

	payouts, err := svc.Payouts(ctx, f.rider.ID)
	require.NoError(t, err)
	assert.Len(t, payouts, 3)

	empty, err := svc.Wallet(ctx, f.rider2.ID)
	require.NoError(t, err)
	assert.Equal(t, -5.0, empty.Balance)
}

func TestVoucherValidateAndBest(t *testing.T) {
	f := newFixture(t)
	svc := NewVoucherService(f.db)
	ctx := context.Background()

	f.voucher(t, "TEN", 10, 500, time.Now().Add(time.Hour))
	f.voucher(t, "TWENTY", 20, 2000, time.Now().Add(time.Hour))
	f.voucher(t, "OLD", 50, 0, time.Now().Add(-time.Hour))
	f.voucher(t, "FOREVER", 5, 0, time.Time{})

	active, err := svc.Active(ctx, f.restaurant.ID)
	require.NoError(t, err)
	codes := make([]string, len(active))
	for i, v := range active {
		codes[i] = v.Code
	}
	assert.ElementsMatch(t, []string{"TEN", "TWENTY", "FOREVER"}, codes)

	check, err := svc.Validate(ctx, f.restaurant.ID, "ten", 1000)
	require.NoError(t, err)
	assert.Equal(t, 100.0, check.Discount)

	_, err = svc.Validate(ctx, f.restaurant.ID, "TWENTY", 1000)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "minimum")

	_, err = svc.Validate(ctx, f.restaurant.ID, "OLD", 1000)
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Validate(ctx, f.restaurant.ID, "NOPE", 1000)
	assert.ErrorAs(t, err, &verr)

	best, err := svc.Best(ctx, f.restaurant.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, "TEN", best.Voucher.Code)

	best, err = svc.Best(ctx, f.restaurant.ID, 3000)
	require.NoError(t, err)
	assert.Equal(t, "TWENTY", best.Voucher.Code)
}

func TestRestaurantStats(t *testing.T) {
	f := newFixture(t)
	delivered := f.place(t, PlaceItem{DishID: f.soup.ID, Quantity: 2})
	for _, step := range []struct {
		who    models.User
		status string
	}{
		{f.owner, "Accepted"}, {f.rider, "OnTheWay"}, {f.rider, "Arrived"},
		{f.rider, "Picked Up"}, {f.rider, "ArrivedAtCustomer"}, {f.rider, "Delivered"},
	} {
		f.move(t, delivered.ID, step.who, step.status)
	}
	_, err := f.orders.Rate(context.Background(), delivered.ID, f.customer.ID, 4, "")
	require.NoError(t, err)
	f.place(t)

	stats, err := NewStatsService(f.db).Restaurant(context.Background(), f.restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, int64(2), stats.TodayOrders)
	assert.Equal(t, int64(1), stats.ByStatus[lifecycle.StatusDelivered])
	assert.Equal(t, int64(1), stats.ByStatus[lifecycle.StatusPending])
	assert.Equal(t, delivered.Total, stats.Revenue)
	assert.Equal(t, delivered.Total, stats.TodayRevenue)
	assert.Equal(t, int64(1), stats.Ratings)
	assert.Equal(t, 4.0, stats.AverageRating)
}
