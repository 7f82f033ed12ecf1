package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/pricing"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/router"
	"github.com/yeremiapane/delivery-app/services"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "secret123"

// backend is the real HTTP API over an in-memory database.
type backend struct {
	db     *gorm.DB
	hub    *realtime.Hub
	server *httptest.Server

	customer   models.User
	owner      models.User
	rider      models.User
	rider2     models.User
	restaurant models.Restaurant
	dish       models.Dish
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	b := &backend{db: db, hub: realtime.NewHub(nil)}
	require.NoError(t, b.hub.Run(context.Background()))

	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	users := []*models.User{&b.customer, &b.owner, &b.rider, &b.rider2}
	names := []string{"customer", "owner", "rider", "rider2"}
	roles := []string{models.RoleCustomer, models.RoleRestaurant, models.RoleRider, models.RoleRider}
	for i, u := range users {
		*u = models.User{Name: names[i], Email: names[i] + "@example.com", Password: string(hashed), Role: roles[i]}
		require.NoError(t, db.Create(u).Error)
	}
	b.restaurant = models.Restaurant{OwnerID: b.owner.ID, Name: "Lola's Kitchen", Lat: 14.5995, Lng: 120.9842, IsOpen: true}
	require.NoError(t, db.Create(&b.restaurant).Error)
	b.dish = models.Dish{RestaurantID: b.restaurant.ID, Name: "Sinigang", Price: 500, Available: true}
	require.NoError(t, db.Create(&b.dish).Error)

	orders := services.NewOrderService(db, b.hub, nil, services.OrderConfig{
		Fees:     pricing.DefaultFeeConfig(),
		Earnings: pricing.DefaultEarningConfig(),
	})
	b.server = httptest.NewServer(router.SetupRouter(router.Deps{
		DB:        db,
		Hub:       b.hub,
		Orders:    orders,
		UploadDir: t.TempDir(),
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws"
}

// countingTransport counts requests that reach the network.
type countingTransport struct {
	n atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.n.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

// actor is one signed-in app instance.
type actor struct {
	api        *API
	board      *Board
	dispatcher *Dispatcher
	transport  *countingTransport
}

func (b *backend) signIn(t *testing.T, u models.User) *actor {
	t.Helper()
	tr := &countingTransport{}
	api := NewAPI(b.server.URL, NewSession(nil),
		WithHTTPClient(&http.Client{Transport: tr}),
		WithLogger(quietLogger()))
	profile, err := api.Login(context.Background(), u.Email, testPassword)
	require.NoError(t, err)

	board := NewBoard(api, profile, quietLogger())
	require.NoError(t, board.Refresh(context.Background()))
	return &actor{
		api:        api,
		board:      board,
		dispatcher: NewDispatcher(api, board, WithDispatcherLogger(quietLogger())),
		transport:  tr,
	}
}

func (b *backend) checkout() Checkout {
	return Checkout{
		Restaurant:    Restaurant{ID: b.restaurant.ID, Name: b.restaurant.Name, Lat: b.restaurant.Lat, Lng: b.restaurant.Lng},
		Items:         []CartItem{{DishID: b.dish.ID, Name: b.dish.Name, Quantity: 2, UnitPrice: b.dish.Price}},
		Address:       "12 Mabini St",
		PaymentMethod: models.PaymentCOD,
	}
}
