package client

import (
	"errors"
	"strings"
	"time"

	"github.com/yeremiapane/delivery-app/pricing"
)

// CartItem is one dish in the customer's cart.
type CartItem struct {
	DishID    uint
	Name      string
	Quantity  int
	UnitPrice float64
	Notes     string
}

// Checkout is what the customer is about to order. VoucherCode is the code
// the customer picked; empty means none was chosen.
type Checkout struct {
	Restaurant    Restaurant
	Items         []CartItem
	Address       string
	Location      pricing.Point
	PaymentMethod string
	VoucherCode   string
}

func (c Checkout) lines() []pricing.Line {
	out := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, pricing.Line{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
}

// CheckoutQuote is the priced checkout shown before placing the order.
type CheckoutQuote struct {
	Delivery    pricing.Quote
	Breakdown   pricing.Breakdown
	Voucher     *Voucher
	AutoApplied bool
}

// Pricer prices a checkout locally with the same rules the server applies
// when the order is placed.
type Pricer struct {
	Fees     pricing.FeeConfig
	Checkout pricing.CheckoutConfig
	Now      func() time.Time
}

func NewPricer(fees pricing.FeeConfig, checkout pricing.CheckoutConfig) Pricer {
	return Pricer{Fees: fees, Checkout: checkout, Now: time.Now}
}

// Quote prices c against the restaurant's vouchers. With no code chosen the
// best eligible voucher is applied automatically. A chosen code that does
// not apply yields a ValidationError next to the undiscounted quote.
func (p Pricer) Quote(c Checkout, vouchers []Voucher) (CheckoutQuote, error) {
	now := p.Now()
	q := CheckoutQuote{Delivery: pricing.QuoteDelivery(p.Fees, c.Restaurant.Location(), c.Location)}
	lines := c.lines()
	subtotal := pricing.Subtotal(lines)

	pv := make([]pricing.Voucher, len(vouchers))
	for i, v := range vouchers {
		pv[i] = v.Pricing()
	}

	var (
		chosen *pricing.Voucher
		picked = -1
	)
	if code := strings.TrimSpace(c.VoucherCode); code != "" {
		for i, v := range vouchers {
			if strings.EqualFold(v.Code, code) {
				picked = i
				break
			}
		}
		if picked < 0 {
			q.Breakdown, _ = pricing.Totals(lines, q.Delivery.Fee, p.Checkout, nil, now)
			return q, invalid("voucher", "voucher not found")
		}
		chosen = &pv[picked]
	} else if best, ok := pricing.BestVoucher(pv, subtotal, now); ok {
		for i := range pv {
			if pv[i].Code == best.Code {
				picked = i
				break
			}
		}
		chosen = &best
		q.AutoApplied = true
	}

	b, err := pricing.Totals(lines, q.Delivery.Fee, p.Checkout, chosen, now)
	q.Breakdown = b
	if err != nil {
		return q, invalid("voucher", voucherMessage(err))
	}
	if picked >= 0 {
		v := vouchers[picked]
		q.Voucher = &v
	}
	return q, nil
}

func voucherMessage(err error) string {
	switch {
	case errors.Is(err, pricing.ErrVoucherMinimum):
		return "your order does not reach this voucher's minimum amount"
	case errors.Is(err, pricing.ErrVoucherExpired):
		return "this voucher has expired"
	case errors.Is(err, pricing.ErrVoucherInactive):
		return "this voucher is no longer active"
	}
	return err.Error()
}

// Validate runs the checks done before an order is sent.
func (c Checkout) Validate() error {
	if c.Restaurant.ID == 0 {
		return invalid("restaurant", "choose a restaurant first")
	}
	if len(c.Items) == 0 {
		return invalid("items", "your cart is empty")
	}
	for _, it := range c.Items {
		if it.Quantity <= 0 {
			return invalid("items", "quantity must be at least 1")
		}
	}
	if strings.TrimSpace(c.Address) == "" {
		return invalid("address", "please enter a delivery address")
	}
	return nil
}

func (c Checkout) request(voucherCode string) PlaceOrderRequest {
	req := PlaceOrderRequest{
		RestaurantID:  c.Restaurant.ID,
		Address:       strings.TrimSpace(c.Address),
		PaymentMethod: c.PaymentMethod,
		VoucherCode:   voucherCode,
	}
	if c.Location.IsSet() {
		lat, lng := c.Location.Lat, c.Location.Lng
		req.Lat, req.Lng = &lat, &lng
	}
	for _, it := range c.Items {
		req.Items = append(req.Items, OrderLine{DishID: it.DishID, Quantity: it.Quantity, Notes: it.Notes})
	}
	return req
}

// Applying returns c set to send the voucher q picked, if any.
func (c Checkout) Applying(q CheckoutQuote) Checkout {
	c.VoucherCode = ""
	if q.Voucher != nil {
		c.VoucherCode = q.Voucher.Code
	}
	return c
}
