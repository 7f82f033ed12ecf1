package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/services"
	"github.com/yeremiapane/delivery-app/utils"
	"gorm.io/gorm"
)

type RestaurantController struct {
	DB       *gorm.DB
	Hub      services.Broadcaster
	Vouchers *services.VoucherService
	Stats    *services.StatsService
}

func NewRestaurantController(db *gorm.DB, hub services.Broadcaster) *RestaurantController {
	return &RestaurantController{
		DB:       db,
		Hub:      hub,
		Vouchers: services.NewVoucherService(db),
		Stats:    services.NewStatsService(db),
	}
}

// GetAllRestaurants lists restaurants, open ones first. ?q filters by name.
func (rc *RestaurantController) GetAllRestaurants(c *gin.Context) {
	query := rc.DB.Order("is_open DESC, name ASC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	var restaurants []models.Restaurant
	if err := query.Find(&restaurants).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of restaurants", restaurants)
}

func (rc *RestaurantController) GetRestaurantByID(c *gin.Context) {
	restaurant, ok := rc.findRestaurant(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant detail", restaurant)
}

// GetDishes returns the menu. Owners also see unavailable dishes.
func (rc *RestaurantController) GetDishes(c *gin.Context) {
	restaurant, ok := rc.findRestaurant(c)
	if !ok {
		return
	}
	query := rc.DB.Where("restaurant_id = ?", restaurant.ID).Order("name ASC")
	if c.Query("all") != "true" {
		query = query.Where("available = ?", true)
	}
	var dishes []models.Dish
	if err := query.Find(&dishes).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of dishes", dishes)
}

func (rc *RestaurantController) GetVouchers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	vouchers, err := rc.Vouchers.Active(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active vouchers", vouchers)
}

// GetStats is the owner dashboard.
func (rc *RestaurantController) GetStats(c *gin.Context) {
	restaurant, ok := rc.ownedRestaurant(c)
	if !ok {
		return
	}
	stats, err := rc.Stats.Restaurant(c.Request.Context(), restaurant.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant stats", stats)
}

// UpdateRestaurant lets the owner open or close the restaurant and edit its
// details.
func (rc *RestaurantController) UpdateRestaurant(c *gin.Context) {
	restaurant, ok := rc.ownedRestaurant(c)
	if !ok {
		return
	}
	var req struct {
		Name     *string  `json:"name"`
		Address  *string  `json:"address"`
		Lat      *float64 `json:"lat"`
		Lng      *float64 `json:"lng"`
		IsOpen   *bool    `json:"is_open"`
		ImageURL *string  `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	updates := map[string]interface{}{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Lat != nil {
		updates["lat"] = *req.Lat
	}
	if req.Lng != nil {
		updates["lng"] = *req.Lng
	}
	if req.IsOpen != nil {
		updates["is_open"] = *req.IsOpen
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if len(updates) > 0 {
		if err := rc.DB.Model(&restaurant).Updates(updates).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		rc.DB.First(&restaurant, restaurant.ID)
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant updated", restaurant)
}

// CreateDish adds a dish and announces it on the public feed.
func (rc *RestaurantController) CreateDish(c *gin.Context) {
	restaurant, ok := rc.ownedRestaurant(c)
	if !ok {
		return
	}
	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description string  `json:"description"`
		Price       float64 `json:"price" binding:"gt=0"`
		ImagePath   string  `json:"image_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	dish := models.Dish{
		RestaurantID: restaurant.ID,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Price:        req.Price,
		ImagePath:    req.ImagePath,
		Available:    true,
	}
	if err := rc.DB.Create(&dish).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	rc.announce(c.Request.Context(), realtime.EventDishPublished, dish)
	utils.RespondJSON(c, http.StatusCreated, "Dish created", dish)
}

// UpdateDish edits a dish. Only the owning restaurant may change it.
func (rc *RestaurantController) UpdateDish(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var dish models.Dish
	if err := rc.DB.Preload("Restaurant").First(&dish, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("dish not found"))
		return
	}
	if dish.Restaurant.OwnerID != me.UserID && me.Role != models.RoleAdmin {
		utils.RespondError(c, http.StatusForbidden, errors.New("dish belongs to another restaurant"))
		return
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		ImagePath   *string  `json:"image_path"`
		Available   *bool    `json:"available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	updates := map[string]interface{}{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("price must be positive"))
			return
		}
		updates["price"] = *req.Price
	}
	if req.ImagePath != nil {
		updates["image_path"] = *req.ImagePath
	}
	if req.Available != nil {
		updates["available"] = *req.Available
	}
	if len(updates) > 0 {
		if err := rc.DB.Model(&dish).Updates(updates).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if err := rc.DB.First(&dish, dish.ID).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}

	rc.announce(c.Request.Context(), realtime.EventDishUpdated, dish)
	utils.RespondJSON(c, http.StatusOK, "Dish updated", dish)
}

func (rc *RestaurantController) announce(ctx context.Context, event string, dish models.Dish) {
	payload := realtime.DishEvent{
		DishID:       dish.ID,
		RestaurantID: dish.RestaurantID,
		Name:         dish.Name,
		Price:        dish.Price,
		Available:    dish.Available,
	}
	if err := rc.Hub.Publish(ctx, realtime.ChannelPublicFeed, event, payload); err != nil {
		utils.ErrorLogger.WithError(err).WithField("dish_id", dish.ID).Warn("Dish broadcast failed")
	}
}

func (rc *RestaurantController) findRestaurant(c *gin.Context) (models.Restaurant, bool) {
	var restaurant models.Restaurant
	id, ok := paramID(c, "id")
	if !ok {
		return restaurant, false
	}
	if err := rc.DB.First(&restaurant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("restaurant not found"))
		} else {
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return restaurant, false
	}
	return restaurant, true
}

func (rc *RestaurantController) ownedRestaurant(c *gin.Context) (models.Restaurant, bool) {
	me, ok := currentUser(c)
	if !ok {
		return models.Restaurant{}, false
	}
	restaurant, ok := rc.findRestaurant(c)
	if !ok {
		return restaurant, false
	}
	if restaurant.OwnerID != me.UserID && me.Role != models.RoleAdmin {
		utils.RespondError(c, http.StatusForbidden, errors.New("you do not own this restaurant"))
		return restaurant, false
	}
	return restaurant, true
}
