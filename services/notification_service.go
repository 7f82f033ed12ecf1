package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/utils"
	"gorm.io/gorm"
)

const notificationPageSize = 100

type NotificationService struct {
	DB  *gorm.DB
	Hub Broadcaster
}

func NewNotificationService(db *gorm.DB, hub Broadcaster) *NotificationService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &NotificationService{DB: db, Hub: hub}
}

// Notify stores a notification for userID and pushes it on the user's
// channel. A failed push is logged; the stored record is still returned.
// key names the occurrence, see realtime.StatusKey.
func (s *NotificationService) Notify(ctx context.Context, userID uint, kind, title, message, orderID, key string) (*models.Notification, error) {
	n := models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		OrderID: orderID,
		Key:     key,
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	err := s.Hub.Publish(ctx, realtime.UserChannel(userID), realtime.EventNotification, realtime.NotificationEvent{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		OrderID:   n.OrderID,
		Key:       n.Key,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("user_id", userID).Warn("Notification push failed")
	}
	return &n, nil
}

// List returns the user's notifications, most recent first.
func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	var out []models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(notificationPageSize).
		Find(&out).Error
	return out, err
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.ownedOrMissing(ctx, userID, id)
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ownedOrMissing resolves a zero-row update. Marking an already read
// notification is not an error.
func (s *NotificationService) ownedOrMissing(ctx context.Context, userID, id uint) error {
	var n models.Notification
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
