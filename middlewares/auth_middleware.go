package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/utils"
)

// Context keys set by AuthMiddleware.
const (
	CtxUserID       = "user_id"
	CtxRole         = "role"
	CtxRestaurantID = "restaurant_id"
	CtxToken        = "token"
)

// AuthMiddleware requires a valid bearer token and stores its claims in the
// gin context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization header missing"))
			c.Abort()
			return
		}
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization header must use the Bearer scheme"))
			c.Abort()
			return
		}
		if !authenticate(c, tokenString) {
			return
		}
		c.Next()
	}
}

// WebSocketAuthMiddleware accepts the token as a query parameter, since
// browsers cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if !authenticate(c, token) {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, token string) bool {
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		c.Abort()
		return false
	}
	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxRole, claims.Role)
	c.Set(CtxRestaurantID, claims.RestaurantID)
	c.Set(CtxToken, token)
	return true
}
