package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/utils"
)

// RoleCheck lets the request through when the caller has one of roles.
// Admins always pass.
func RoleCheck(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(CtxRole)
		if userRole == "" {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}
		if userRole == models.RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if userRole == r {
				c.Next()
				return
			}
		}
		utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access required", strings.Join(roles, " or ")))
		c.Abort()
	}
}
