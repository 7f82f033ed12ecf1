package pricing

import (
	"fmt"
	"math"
)

// FeeConfig holds the delivery fee parameters. Units are currency agnostic.
type FeeConfig struct {
	Base  float64 `json:"base"`
	PerKm float64 `json:"per_km"`
	Max   float64 `json:"max"`
}

// DefaultFeeConfig is base 40, 20 per km, capped at 100.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{Base: 40, PerKm: 20, Max: 100}
}

// QuoteStatus says whether a quote carries a usable distance.
type QuoteStatus string

const (
	QuoteOK                  QuoteStatus = "ok"
	QuoteLocationNotSet      QuoteStatus = "location_not_set"
	QuoteDistanceUnavailable QuoteStatus = "distance_unavailable"
)

// Quote is the outcome of a delivery fee calculation. DistanceKm is only
// meaningful when Status is QuoteOK.
type Quote struct {
	Status     QuoteStatus `json:"status"`
	DistanceKm float64     `json:"distance_km"`
	Fee        float64     `json:"fee"`
}

// HasDistance reports whether DistanceKm holds a real value.
func (q Quote) HasDistance() bool { return q.Status == QuoteOK }

// Label renders the distance part of a quote for display.
func (q Quote) Label() string {
	switch q.Status {
	case QuoteLocationNotSet:
		return "location not set"
	case QuoteDistanceUnavailable:
		return "distance unavailable"
	}
	return fmt.Sprintf("%.1f km", q.DistanceKm)
}

// Fee is min(Max, Base + km*PerKm). A zero Max disables the cap.
func (c FeeConfig) Fee(km float64) float64 {
	fee := c.Base + math.Max(0, km)*c.PerKm
	if c.Max > 0 {
		fee = math.Min(c.Max, fee)
	}
	return roundCents(fee)
}

// QuoteDelivery computes the fee for delivering from one point to another.
// Unset coordinates and implausible distances fall back to the base fee.
func QuoteDelivery(cfg FeeConfig, from, to Point) Quote {
	if !from.IsSet() || !to.IsSet() {
		return Quote{Status: QuoteLocationNotSet, Fee: cfg.Base}
	}
	km := Distance(from, to)
	if km > MaxSaneDistanceKm {
		return Quote{Status: QuoteDistanceUnavailable, Fee: cfg.Base}
	}
	return Quote{Status: QuoteOK, DistanceKm: km, Fee: cfg.Fee(km)}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
