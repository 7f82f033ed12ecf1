package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/controllers"
	"github.com/yeremiapane/delivery-app/middlewares"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/pricing"
	"github.com/yeremiapane/delivery-app/services"
	"github.com/yeremiapane/delivery-app/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type published struct {
	Channel string
	Event   string
	Data    interface{}
}

// recordingHub keeps every broadcast for assertions.
type recordingHub struct {
	sent []published
}

func (h *recordingHub) Publish(_ context.Context, channel, event string, data interface{}) error {
	h.sent = append(h.sent, published{Channel: channel, Event: event, Data: data})
	return nil
}

func (h *recordingHub) events(name string) []published {
	var out []published
	for _, p := range h.sent {
		if p.Event == name {
			out = append(out, p)
		}
	}
	return out
}

type env struct {
	db     *gorm.DB
	hub    *recordingHub
	router *gin.Engine

	customer   models.User
	owner      models.User
	rider      models.User
	restaurant models.Restaurant
	dish       models.Dish
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// newEnv wires the controllers onto a bare engine the way the router does.
func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{db: setupTestDB(t), hub: &recordingHub{}}
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	users := []*models.User{&e.customer, &e.owner, &e.rider}
	roles := []string{models.RoleCustomer, models.RoleRestaurant, models.RoleRider}
	for i, u := range users {
		*u = models.User{Name: roles[i], Email: roles[i] + "@example.com", Password: string(hashed), Role: roles[i]}
		require.NoError(t, e.db.Create(u).Error)
	}
	e.restaurant = models.Restaurant{OwnerID: e.owner.ID, Name: "Lola's Kitchen", Lat: 14.5995, Lng: 120.9842, IsOpen: true}
	require.NoError(t, e.db.Create(&e.restaurant).Error)
	e.dish = models.Dish{RestaurantID: e.restaurant.ID, Name: "Sinigang", Price: 500, Available: true}
	require.NoError(t, e.db.Create(&e.dish).Error)

	orders := services.NewOrderService(e.db, e.hub, nil, services.OrderConfig{
		Fees:     pricing.DefaultFeeConfig(),
		Earnings: pricing.DefaultEarningConfig(),
	})

	userCtrl := controllers.NewUserController(e.db)
	restaurantCtrl := controllers.NewRestaurantController(e.db, e.hub)
	orderCtrl := controllers.NewOrderController(orders)
	notificationCtrl := controllers.NewNotificationController(orders.Notifications)
	voucherCtrl := controllers.NewVoucherController(orders.Vouchers)
	earningCtrl := controllers.NewEarningController(services.NewEarningService(e.db))
	uploadCtrl := controllers.NewUploadController(t.TempDir())

	r := gin.New()
	r.POST("/register", userCtrl.Register)
	r.POST("/login", userCtrl.Login)
	r.GET("/restaurants/:id/dishes", restaurantCtrl.GetDishes)

	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	auth.GET("/profile", userCtrl.GetProfile)
	auth.PATCH("/profile", userCtrl.UpdateProfile)
	auth.POST("/logout", userCtrl.Logout)
	auth.POST("/uploads", uploadCtrl.Upload)
	auth.POST("/orders", middlewares.RoleCheck(models.RoleCustomer), orderCtrl.CreateOrder)
	auth.GET("/orders", orderCtrl.GetAllOrders)
	auth.GET("/orders/:id", orderCtrl.GetOrderByID)
	auth.PUT("/orders/:id/status", orderCtrl.UpdateOrderStatus)
	auth.POST("/orders/:id/rating", orderCtrl.RateOrder)
	auth.POST("/vouchers/validate", voucherCtrl.ValidateVoucher)
	auth.GET("/notifications", notificationCtrl.GetNotifications)
	auth.PATCH("/notifications/:id/read", notificationCtrl.MarkRead)
	auth.DELETE("/notifications/:id", notificationCtrl.DeleteNotification)
	auth.GET("/riders/me/wallet", middlewares.RoleCheck(models.RoleRider), earningCtrl.GetWallet)
	auth.GET("/restaurants/:id/stats", middlewares.RoleCheck(models.RoleRestaurant), restaurantCtrl.GetStats)
	auth.POST("/restaurants/:id/dishes", middlewares.RoleCheck(models.RoleRestaurant), restaurantCtrl.CreateDish)
	auth.PATCH("/dishes/:id", middlewares.RoleCheck(models.RoleRestaurant), restaurantCtrl.UpdateDish)
	e.router = r
	return e
}

func (e *env) token(t *testing.T, u models.User) string {
	t.Helper()
	var rid uint
	if u.Role == models.RoleRestaurant {
		rid = e.restaurant.ID
	}
	tok, err := utils.GenerateToken(u.ID, u.Role, rid)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request as u (or anonymously when u is nil) and decodes
// the response envelope.
func (e *env) do(t *testing.T, method, path string, u *models.User, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *u))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (e *env) placeOrder(t *testing.T) models.Order {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, "/orders", &e.customer, map[string]interface{}{
		"restaurant_id":  e.restaurant.ID,
		"items":          []map[string]interface{}{{"dish_id": e.dish.ID, "quantity": 1}},
		"address":        "12 Mabini St",
		"payment_method": models.PaymentCOD,
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	return decode[models.Order](t, resp.Data)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
