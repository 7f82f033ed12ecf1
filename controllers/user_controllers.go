package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/middlewares"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB *gorm.DB
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{DB: db}
}

// Register creates an account. Restaurant owners register their restaurant
// in the same request.
func (uc *UserController) Register(c *gin.Context) {
	type request struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Role     string `json:"role" binding:"required"` // customer, restaurant, rider
		Phone    string `json:"phone"`

		RestaurantName    string  `json:"restaurant_name"`
		RestaurantAddress string  `json:"restaurant_address"`
		Lat               float64 `json:"lat"`
		Lng               float64 `json:"lng"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	req.Role = strings.ToLower(req.Role)
	if !models.ValidRole(req.Role) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("role must be customer, restaurant or rider"))
		return
	}
	if req.Role == models.RoleRestaurant && strings.TrimSpace(req.RestaurantName) == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("restaurant_name is required"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	user := models.User{
		Name:     req.Name,
		Email:    strings.ToLower(req.Email),
		Password: string(hashed),
		Role:     req.Role,
		Phone:    req.Phone,
	}

	var exists int64
	if err := uc.DB.Model(&models.User{}).Where("email = ?", user.Email).Count(&exists).Error; err != nil {
		utils.ErrorLogger.WithError(err).Error("Failed to check existing email")
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if exists > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("email already registered"))
		return
	}

	var restaurantID uint
	err = uc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if user.Role != models.RoleRestaurant {
			return nil
		}
		restaurant := models.Restaurant{
			OwnerID: user.ID,
			Name:    req.RestaurantName,
			Address: req.RestaurantAddress,
			Lat:     req.Lat,
			Lng:     req.Lng,
			IsOpen:  true,
		}
		if err := tx.Create(&restaurant).Error; err != nil {
			return err
		}
		restaurantID = restaurant.ID
		return nil
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.WithField("role", user.Role).Infof("New user registered: %s", user.Email)

	data := gin.H{"user_id": user.ID}
	if restaurantID != 0 {
		data["restaurant_id"] = restaurantID
	}
	utils.RespondJSON(c, http.StatusCreated, "User registered", data)
}

// Login checks credentials and returns a bearer token.
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := uc.DB.Where("email = ?", strings.ToLower(input.Email)).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	var restaurantID uint
	if user.Role == models.RoleRestaurant {
		var r models.Restaurant
		if err := uc.DB.Select("id").Where("owner_id = ?", user.ID).First(&r).Error; err == nil {
			restaurantID = r.ID
		}
	}

	token, err := utils.GenerateToken(user.ID, user.Role, restaurantID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.WithField("role", user.Role).Infof("Login successful for user: %s", user.Email)

	data := gin.H{
		"token":   token,
		"user_id": user.ID,
		"name":    user.Name,
		"role":    user.Role,
	}
	if restaurantID != 0 {
		data["restaurant_id"] = restaurantID
	}
	utils.RespondJSON(c, http.StatusOK, "Login successful", data)
}

func (uc *UserController) GetProfile(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	var user models.User
	if err := uc.DB.First(&user, me.UserID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("user not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Profile data retrieved successfully", user)
}

// UpdateProfile changes the caller's name, phone or avatar.
func (uc *UserController) UpdateProfile(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Name      *string `json:"name"`
		Phone     *string `json:"phone"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			utils.RespondError(c, http.StatusBadRequest, errors.New("name cannot be empty"))
			return
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}

	var user models.User
	if err := uc.DB.First(&user, me.UserID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("user not found"))
		return
	}
	if len(updates) > 0 {
		if err := uc.DB.Model(&user).Updates(updates).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		uc.DB.First(&user, user.ID)
	}
	utils.RespondJSON(c, http.StatusOK, "Profile updated", user)
}

// Logout revokes the token the request was made with.
func (uc *UserController) Logout(c *gin.Context) {
	utils.BlacklistToken(c.GetString(middlewares.CtxToken))
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}
