package models

import (
	"time"

	"github.com/yeremiapane/delivery-app/pricing"
)

type Voucher struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RestaurantID  uint      `gorm:"not null;index" json:"restaurant_id"`
	Code          string    `gorm:"type:varchar(50);not null;index" json:"code"`
	Percentage    float64   `gorm:"not null" json:"percentage"`
	MinimumAmount float64   `gorm:"type:decimal(12,2);not null;default:0" json:"minimum_amount"`
	ExpiresAt     time.Time `json:"expires_at"`
	Active        bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (v Voucher) Pricing() pricing.Voucher {
	return pricing.Voucher{
		Code:          v.Code,
		Percentage:    v.Percentage,
		MinimumAmount: v.MinimumAmount,
		ExpiresAt:     v.ExpiresAt,
		Active:        v.Active,
	}
}
