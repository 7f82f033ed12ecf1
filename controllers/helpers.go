package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/middlewares"
	"github.com/yeremiapane/delivery-app/services"
	"github.com/yeremiapane/delivery-app/utils"
)

// caller is the authenticated user behind a request.
type caller struct {
	UserID       uint
	Role         string
	RestaurantID uint
}

func currentUser(c *gin.Context) (caller, bool) {
	id, ok := c.Get(middlewares.CtxUserID)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return caller{}, false
	}
	userID, ok := id.(uint)
	if !ok {
		utils.RespondError(c, http.StatusInternalServerError, errors.New("invalid user id type"))
		return caller{}, false
	}
	rid, _ := c.Get(middlewares.CtxRestaurantID)
	restaurantID, _ := rid.(uint)
	return caller{UserID: userID, Role: c.GetString(middlewares.CtxRole), RestaurantID: restaurantID}, true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid "+name))
		return 0, false
	}
	return uint(id), true
}

// respondServiceError maps service errors onto HTTP status codes.
func respondServiceError(c *gin.Context, err error) {
	var (
		verr     *services.ValidationError
		conflict *services.ConflictError
		terr     *lifecycle.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.As(err, &conflict):
		utils.RespondErrorData(c, http.StatusConflict, err, services.WireOrder(conflict.Order))
	case errors.As(err, &terr), errors.Is(err, services.ErrForbidden):
		utils.RespondError(c, http.StatusForbidden, err)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	default:
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
