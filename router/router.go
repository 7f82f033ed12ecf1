package router

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/controllers"
	"github.com/yeremiapane/delivery-app/middlewares"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/services"
	"gorm.io/gorm"
)

// Deps are the long-lived components the routes are built from.
type Deps struct {
	DB          *gorm.DB
	Hub         *realtime.Hub
	Orders      *services.OrderService
	CORSOrigins []string
	UploadDir   string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.NewRateLimiter(50, time.Second, 100).RateLimit())

	// Only image files are served from the upload directory.
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/uploads/") {
			ext := strings.ToLower(filepath.Ext(c.Request.URL.Path))
			if ext != ".jpg" && ext != ".jpeg" && ext != ".png" && ext != ".gif" && ext != ".webp" {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		c.Next()
	})
	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}

	userCtrl := controllers.NewUserController(d.DB)
	restaurantCtrl := controllers.NewRestaurantController(d.DB, d.Hub)
	orderCtrl := controllers.NewOrderController(d.Orders)
	notificationCtrl := controllers.NewNotificationController(d.Orders.Notifications)
	voucherCtrl := controllers.NewVoucherController(d.Orders.Vouchers)
	earningCtrl := controllers.NewEarningController(services.NewEarningService(d.DB))
	realtimeCtrl := controllers.NewRealtimeController(d.Hub, d.CORSOrigins)
	uploadCtrl := controllers.NewUploadController(d.UploadDir)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	r.GET("/restaurants", restaurantCtrl.GetAllRestaurants)
	r.GET("/restaurants/:id", restaurantCtrl.GetRestaurantByID)
	r.GET("/restaurants/:id/dishes", restaurantCtrl.GetDishes)
	r.GET("/restaurants/:id/vouchers", restaurantCtrl.GetVouchers)

	r.GET("/ws", middlewares.WebSocketAuthMiddleware(), realtimeCtrl.Connect)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", userCtrl.GetProfile)
	auth.PATCH("/profile", userCtrl.UpdateProfile)
	auth.POST("/logout", userCtrl.Logout)
	auth.POST("/uploads", uploadCtrl.Upload)

	// ORDERS
	auth.POST("/orders", middlewares.RoleCheck(models.RoleCustomer), orderCtrl.CreateOrder)
	auth.GET("/orders", orderCtrl.GetAllOrders)
	auth.GET("/orders/:id", orderCtrl.GetOrderByID)
	auth.PUT("/orders/:id/status", orderCtrl.UpdateOrderStatus)
	auth.POST("/orders/:id/messages", orderCtrl.SendMessage)
	auth.GET("/orders/:id/messages", orderCtrl.GetMessages)
	auth.POST("/orders/:id/rating", middlewares.RoleCheck(models.RoleCustomer), orderCtrl.RateOrder)

	auth.POST("/vouchers/validate", voucherCtrl.ValidateVoucher)

	// NOTIFICATIONS
	auth.GET("/notifications", notificationCtrl.GetNotifications)
	auth.PATCH("/notifications/:id/read", notificationCtrl.MarkRead)
	auth.DELETE("/notifications/:id", notificationCtrl.DeleteNotification)

	// RIDERS
	riders := auth.Group("/riders/me")
	riders.Use(middlewares.RoleCheck(models.RoleRider))
	{
		riders.GET("/earnings", earningCtrl.GetEarnings)
		riders.GET("/wallet", earningCtrl.GetWallet)
		riders.GET("/payouts", earningCtrl.GetPayouts)
	}

	// RESTAURANT OWNERS
	owner := auth.Group("/")
	owner.Use(middlewares.RoleCheck(models.RoleRestaurant))
	{
		owner.GET("/restaurants/:id/stats", restaurantCtrl.GetStats)
		owner.PATCH("/restaurants/:id", restaurantCtrl.UpdateRestaurant)
		owner.POST("/restaurants/:id/dishes", restaurantCtrl.CreateDish)
		owner.PATCH("/dishes/:id", restaurantCtrl.UpdateDish)
	}

	return r
}
