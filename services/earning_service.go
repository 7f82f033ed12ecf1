package services

import (
	"context"
	"math"

	"github.com/yeremiapane/delivery-app/models"
	"gorm.io/gorm"
)

// Wallet is a rider's balance derived from earnings and payouts.
type Wallet struct {
	RiderID       uint    `json:"rider_id"`
	Deliveries    int64   `json:"deliveries"`
	TotalEarned   float64 `json:"total_earned"`
	PaidOut       float64 `json:"paid_out"`
	PendingPayout float64 `json:"pending_payout"`
	Balance       float64 `json:"balance"`
}

type EarningService struct {
	DB *gorm.DB
}

func NewEarningService(db *gorm.DB) *EarningService {
	return &EarningService{DB: db}
}

// Earnings lists the rider's per-delivery earnings, newest first.
func (s *EarningService) Earnings(ctx context.Context, riderID uint) ([]models.Earning, error) {
	var out []models.Earning
	err := s.DB.WithContext(ctx).Where("rider_id = ?", riderID).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *EarningService) Payouts(ctx context.Context, riderID uint) ([]models.Payout, error) {
	var out []models.Payout
	err := s.DB.WithContext(ctx).Where("rider_id = ?", riderID).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// Wallet sums earnings and subtracts paid and pending payouts.
func (s *EarningService) Wallet(ctx context.Context, riderID uint) (*Wallet, error) {
	db := s.DB.WithContext(ctx)
	w := &Wallet{RiderID: riderID}

	var earned struct {
		Count int64
		Total float64
	}
	if err := db.Model(&models.Earning{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("rider_id = ?", riderID).
		Scan(&earned).Error; err != nil {
		return nil, err
	}
	w.Deliveries = earned.Count
	w.TotalEarned = earned.Total

	var payouts []struct {
		Status string
		Total  float64
	}
	if err := db.Model(&models.Payout{}).
		Select("status, COALESCE(SUM(amount), 0) AS total").
		Where("rider_id = ?", riderID).
		Group("status").
		Scan(&payouts).Error; err != nil {
		return nil, err
	}
	for _, p := range payouts {
		switch p.Status {
		case models.PayoutPaid:
			w.PaidOut += p.Total
		case models.PayoutPending:
			w.PendingPayout += p.Total
		}
	}
	w.Balance = math.Round((w.TotalEarned-w.PaidOut-w.PendingPayout)*100) / 100
	return w, nil
}
