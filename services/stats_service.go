package services

import (
	"context"
	"time"

	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/models"
	"gorm.io/gorm"
)

// RestaurantStats is the owner dashboard summary.
type RestaurantStats struct {
	RestaurantID  uint                       `json:"restaurant_id"`
	TotalOrders   int64                      `json:"total_orders"`
	TodayOrders   int64                      `json:"today_orders"`
	ByStatus      map[lifecycle.Status]int64 `json:"by_status"`
	Revenue       float64                    `json:"revenue"`
	TodayRevenue  float64                    `json:"today_revenue"`
	AverageRating float64                    `json:"average_rating"`
	Ratings       int64                      `json:"ratings"`
}

type StatsService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db, Now: time.Now}
}

// Restaurant aggregates a restaurant's orders. Revenue counts delivered
// orders only.
func (s *StatsService) Restaurant(ctx context.Context, restaurantID uint) (*RestaurantStats, error) {
	db := s.DB.WithContext(ctx)
	stats := &RestaurantStats{RestaurantID: restaurantID, ByStatus: make(map[lifecycle.Status]int64)}

	var rows []struct {
		Status lifecycle.Status
		Count  int64
	}
	if err := db.Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Where("restaurant_id = ?", restaurantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.TotalOrders += r.Count
	}

	now := s.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if err := db.Model(&models.Order{}).
		Where("restaurant_id = ? AND created_at >= ?", restaurantID, startOfDay).
		Count(&stats.TodayOrders).Error; err != nil {
		return nil, err
	}

	delivered := db.Model(&models.Order{}).
		Where("restaurant_id = ? AND status = ?", restaurantID, lifecycle.StatusDelivered).
		Session(&gorm.Session{})
	if err := delivered.
		Select("COALESCE(SUM(total), 0)").
		Scan(&stats.Revenue).Error; err != nil {
		return nil, err
	}
	if err := delivered.
		Where("delivered_at >= ?", startOfDay).
		Select("COALESCE(SUM(total), 0)").
		Scan(&stats.TodayRevenue).Error; err != nil {
		return nil, err
	}

	var rating struct {
		Count   int64
		Average float64
	}
	if err := db.Model(&models.Order{}).
		Select("COUNT(rating) AS count, COALESCE(AVG(rating), 0) AS average").
		Where("restaurant_id = ? AND rating IS NOT NULL", restaurantID).
		Scan(&rating).Error; err != nil {
		return nil, err
	}
	stats.Ratings = rating.Count
	stats.AverageRating = rating.Average
	return stats, nil
}
