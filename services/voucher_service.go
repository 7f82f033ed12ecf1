package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/pricing"
	"gorm.io/gorm"
)

type VoucherService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewVoucherService(db *gorm.DB) *VoucherService {
	return &VoucherService{DB: db, Now: time.Now}
}

// Active lists a restaurant's vouchers that are switched on and unexpired.
func (s *VoucherService) Active(ctx context.Context, restaurantID uint) ([]models.Voucher, error) {
	var all []models.Voucher
	err := s.DB.WithContext(ctx).
		Where("restaurant_id = ? AND active = ?", restaurantID, true).
		Order("percentage DESC").
		Find(&all).Error
	if err != nil {
		return nil, err
	}
	now := s.Now()
	out := all[:0]
	for _, v := range all {
		if v.ExpiresAt.IsZero() || now.Before(v.ExpiresAt) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *VoucherService) Find(ctx context.Context, restaurantID uint, code string) (*models.Voucher, error) {
	var v models.Voucher
	err := s.DB.WithContext(ctx).
		Where("restaurant_id = ? AND UPPER(code) = ?", restaurantID, strings.ToUpper(strings.TrimSpace(code))).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// VoucherCheck is the outcome of validating a code against a subtotal.
type VoucherCheck struct {
	Voucher  models.Voucher `json:"voucher"`
	Discount float64        `json:"discount"`
}

// Validate re-checks a voucher the way order placement will. Eligibility
// failures are returned as *ValidationError.
func (s *VoucherService) Validate(ctx context.Context, restaurantID uint, code string, subtotal float64) (*VoucherCheck, error) {
	v, err := s.Find(ctx, restaurantID, code)
	if errors.Is(err, ErrNotFound) {
		return nil, invalid("voucher not found")
	}
	if err != nil {
		return nil, err
	}
	pv := v.Pricing()
	if err := pv.Eligible(subtotal, s.Now()); err != nil {
		return nil, invalid(err.Error())
	}
	return &VoucherCheck{Voucher: *v, Discount: pv.Discount(subtotal)}, nil
}

// Best picks the voucher giving the largest discount on subtotal.
func (s *VoucherService) Best(ctx context.Context, restaurantID uint, subtotal float64) (*VoucherCheck, error) {
	vouchers, err := s.Active(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	candidates := make([]pricing.Voucher, len(vouchers))
	for i, v := range vouchers {
		candidates[i] = v.Pricing()
	}
	best, ok := pricing.BestVoucher(candidates, subtotal, s.Now())
	if !ok {
		return nil, ErrNotFound
	}
	for _, v := range vouchers {
		if v.Code == best.Code {
			return &VoucherCheck{Voucher: v, Discount: best.Discount(subtotal)}, nil
		}
	}
	return nil, ErrNotFound
}
