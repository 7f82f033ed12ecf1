package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/services"
	"github.com/yeremiapane/delivery-app/utils"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(n *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: n}
}

// GetNotifications returns the caller's notifications, newest first, with
// the unread count.
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	list, err := nc.Notifications.List(ctx, me.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	unread, err := nc.Notifications.UnreadCount(ctx, me.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", gin.H{
		"notifications": list,
		"unread":        unread,
	})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := nc.Notifications.MarkRead(c.Request.Context(), me.UserID, id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", nil)
}

func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := nc.Notifications.Delete(c.Request.Context(), me.UserID, id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification deleted", nil)
}

type VoucherController struct {
	Vouchers *services.VoucherService
}

func NewVoucherController(v *services.VoucherService) *VoucherController {
	return &VoucherController{Vouchers: v}
}

// ValidateVoucher checks a code against a cart subtotal. Without a code it
// returns the best voucher that applies.
func (vc *VoucherController) ValidateVoucher(c *gin.Context) {
	var req struct {
		RestaurantID uint    `json:"restaurant_id" binding:"required"`
		Code         string  `json:"code"`
		Subtotal     float64 `json:"subtotal" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var (
		check *services.VoucherCheck
		err   error
	)
	if req.Code == "" {
		check, err = vc.Vouchers.Best(c.Request.Context(), req.RestaurantID, req.Subtotal)
	} else {
		check, err = vc.Vouchers.Validate(c.Request.Context(), req.RestaurantID, req.Code, req.Subtotal)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Voucher applies", check)
}

type EarningController struct {
	Earnings *services.EarningService
}

func NewEarningController(e *services.EarningService) *EarningController {
	return &EarningController{Earnings: e}
}

func (ec *EarningController) GetEarnings(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	earnings, err := ec.Earnings.Earnings(c.Request.Context(), me.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Rider earnings", earnings)
}

func (ec *EarningController) GetWallet(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	wallet, err := ec.Earnings.Wallet(c.Request.Context(), me.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Rider wallet", wallet)
}

func (ec *EarningController) GetPayouts(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	payouts, err := ec.Earnings.Payouts(c.Request.Context(), me.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Rider payouts", payouts)
}
