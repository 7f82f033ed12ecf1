package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/pricing"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Publish(ctx context.Context, channel, event string, data interface{}) error {
	args := m.Called(ctx, channel, event, data)
	return args.Error(0)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishOrderEvent(ctx context.Context, ev OrderEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type fixture struct {
	db     *gorm.DB
	hub    *mockBroadcaster
	events *mockEventPublisher
	orders *OrderService

	customer   models.User
	other      models.User
	owner      models.User
	rider      models.User
	rider2     models.User
	restaurant models.Restaurant
	soup       models.Dish
	noodles    models.Dish
	sold       models.Dish
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	f := &fixture{db: db, hub: &mockBroadcaster{}, events: &mockEventPublisher{}}
	f.hub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)

	users := []*models.User{&f.customer, &f.other, &f.owner, &f.rider, &f.rider2}
	roles := []string{models.RoleCustomer, models.RoleCustomer, models.RoleRestaurant, models.RoleRider, models.RoleRider}
	for i, u := range users {
		*u = models.User{Name: roles[i], Email: uuid.NewString() + "@example.com", Password: "x", Role: roles[i]}
		require.NoError(t, db.Create(u).Error)
	}

	f.restaurant = models.Restaurant{OwnerID: f.owner.ID, Name: "Lola's Kitchen", Lat: 14.5995, Lng: 120.9842, IsOpen: true}
	require.NoError(t, db.Create(&f.restaurant).Error)

	f.soup = models.Dish{RestaurantID: f.restaurant.ID, Name: "Sinigang", Price: 500, Available: true}
	f.noodles = models.Dish{RestaurantID: f.restaurant.ID, Name: "Pancit", Price: 120, Available: true}
	f.sold = models.Dish{RestaurantID: f.restaurant.ID, Name: "Lechon", Price: 900, Available: true}
	for _, d := range []*models.Dish{&f.soup, &f.noodles, &f.sold} {
		require.NoError(t, db.Create(d).Error)
	}
	require.NoError(t, db.Model(&f.sold).Update("available", false).Error)

	f.orders = NewOrderService(db, f.hub, f.events, OrderConfig{
		Fees:     pricing.DefaultFeeConfig(),
		Earnings: pricing.DefaultEarningConfig(),
	})
	return f
}

func (f *fixture) place(t *testing.T, items ...PlaceItem) *models.Order {
	t.Helper()
	if len(items) == 0 {
		items = []PlaceItem{{DishID: f.soup.ID, Quantity: 1}}
	}
	order, err := f.orders.Place(context.Background(), f.customer.ID, PlaceOrder{
		RestaurantID:  f.restaurant.ID,
		Items:         items,
		Address:       "12 Mabini St",
		PaymentMethod: models.PaymentCOD,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) move(t *testing.T, orderID string, actor models.User, status string) *TransitionResult {
	t.Helper()
	res, err := f.orders.Transition(context.Background(), TransitionRequest{
		OrderID: orderID,
		ActorID: actor.ID,
		Role:    actor.Role,
		Status:  status,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) voucher(t *testing.T, code string, pct, minimum float64, expires time.Time) models.Voucher {
	t.Helper()
	v := models.Voucher{RestaurantID: f.restaurant.ID, Code: code, Percentage: pct, MinimumAmount: minimum, ExpiresAt: expires, Active: true}
	require.NoError(t, f.db.Create(&v).Error)
	return v
}
