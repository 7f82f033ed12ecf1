package models

import (
	"time"
)

// Notification types.
const (
	NotificationOrder  = "order"
	NotificationStatus = "status"
	NotificationChat   = "chat"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Type      string    `gorm:"type:varchar(20);not null" json:"type"`
	Title     string    `gorm:"type:varchar(100)" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	OrderID   string    `gorm:"type:varchar(36);index" json:"order_id,omitempty"`
	Key       string    `gorm:"type:varchar(80);index" json:"key,omitempty"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
