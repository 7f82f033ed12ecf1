package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/services"
	"github.com/yeremiapane/delivery-app/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateOrder places a customer's checkout.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.PlaceOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	order, err := oc.Orders.Place(c.Request.Context(), me.UserID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed", order)
}

// GetAllOrders lists the orders visible to the caller's role.
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	orders, err := oc.Orders.List(c.Request.Context(), me.UserID, me.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	order, err := oc.Orders.Get(c.Request.Context(), c.Param("id"), me.UserID, me.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// UpdateOrderStatus applies a lifecycle transition. A rejected transition on
// a stale view answers 409 with the current order.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Status         string   `json:"status" binding:"required"`
		Reason         string   `json:"reason"`
		TraveledKm     *float64 `json:"traveled_km"`
		ExpectedStatus string   `json:"expected_status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := oc.Orders.Transition(c.Request.Context(), services.TransitionRequest{
		OrderID:        c.Param("id"),
		ActorID:        me.UserID,
		Role:           me.Role,
		Status:         req.Status,
		Reason:         req.Reason,
		TraveledKm:     req.TraveledKm,
		ExpectedStatus: req.ExpectedStatus,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", res)
}

func (oc *OrderController) SendMessage(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("body is required"))
		return
	}
	msg, err := oc.Orders.SendMessage(c.Request.Context(), c.Param("id"), me.UserID, req.Body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Message sent", msg)
}

func (oc *OrderController) GetMessages(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := oc.Orders.Messages(c.Request.Context(), c.Param("id"), me.UserID, me.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order messages", msgs)
}

func (oc *OrderController) RateOrder(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Rating  int    `json:"rating" binding:"required"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("rating is required"))
		return
	}
	order, err := oc.Orders.Rate(c.Request.Context(), c.Param("id"), me.UserID, req.Rating, req.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Thanks for rating", order)
}
