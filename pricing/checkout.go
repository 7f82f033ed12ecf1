package pricing

import (
	"errors"
	"math"
	"strings"
	"time"
)

var (
	ErrVoucherInactive = errors.New("voucher is not active")
	ErrVoucherExpired  = errors.New("voucher has expired")
	ErrVoucherMinimum  = errors.New("order does not reach the voucher minimum amount")
)

// Line is one order line as priced at checkout.
type Line struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Voucher is the pricing view of a discount code.
type Voucher struct {
	Code          string    `json:"code"`
	Percentage    float64   `json:"percentage"`
	MinimumAmount float64   `json:"minimum_amount"`
	ExpiresAt     time.Time `json:"expires_at"`
	Active        bool      `json:"active"`
}

// Eligible checks the voucher against a subtotal at the given time.
func (v Voucher) Eligible(subtotal float64, now time.Time) error {
	if !v.Active {
		return ErrVoucherInactive
	}
	if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
		return ErrVoucherExpired
	}
	if subtotal < v.MinimumAmount {
		return ErrVoucherMinimum
	}
	return nil
}

// Discount is the amount the voucher takes off the subtotal.
func (v Voucher) Discount(subtotal float64) float64 {
	pct := math.Min(100, math.Max(0, v.Percentage))
	return roundCents(subtotal * pct / 100)
}

// BestVoucher returns the eligible voucher with the largest discount, or false
// when none applies.
func BestVoucher(vouchers []Voucher, subtotal float64, now time.Time) (Voucher, bool) {
	var (
		best  Voucher
		found bool
	)
	for _, v := range vouchers {
		if v.Eligible(subtotal, now) != nil {
			continue
		}
		if !found || v.Discount(subtotal) > best.Discount(subtotal) {
			best, found = v, true
		}
	}
	return best, found
}

// FindVoucher looks a code up case-insensitively.
func FindVoucher(vouchers []Voucher, code string) (Voucher, bool) {
	for _, v := range vouchers {
		if strings.EqualFold(v.Code, strings.TrimSpace(code)) {
			return v, true
		}
	}
	return Voucher{}, false
}

// CheckoutConfig holds the order-level charges beside delivery.
type CheckoutConfig struct {
	ServiceFee float64 `json:"service_fee"`
	TaxEnabled bool    `json:"tax_enabled"`
	TaxRate    float64 `json:"tax_rate"`
}

// Breakdown is the priced order.
type Breakdown struct {
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"delivery_fee"`
	ServiceFee  float64 `json:"service_fee"`
	Tax         float64 `json:"tax"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
	VoucherCode string  `json:"voucher_code,omitempty"`
}

// Subtotal sums quantity times unit price.
func Subtotal(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum += float64(l.Quantity) * l.UnitPrice
	}
	return roundCents(sum)
}

// Totals prices a checkout. A non-nil voucher must be eligible; otherwise the
// eligibility error is returned together with the undiscounted breakdown so
// the total is never silently reduced.
func Totals(lines []Line, deliveryFee float64, cfg CheckoutConfig, voucher *Voucher, now time.Time) (Breakdown, error) {
	b := Breakdown{
		Subtotal:    Subtotal(lines),
		DeliveryFee: roundCents(deliveryFee),
		ServiceFee:  roundCents(cfg.ServiceFee),
	}
	if cfg.TaxEnabled {
		b.Tax = roundCents(b.Subtotal * cfg.TaxRate)
	}

	var err error
	if voucher != nil {
		if err = voucher.Eligible(b.Subtotal, now); err == nil {
			b.Discount = voucher.Discount(b.Subtotal)
			b.VoucherCode = voucher.Code
		}
	}

	b.Total = roundCents(math.Max(0, b.Subtotal+b.DeliveryFee+b.ServiceFee+b.Tax-b.Discount))
	return b, err
}
