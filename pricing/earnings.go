package pricing

import "math"

// EarningConfig is the rider pay formula. No platform fee is subtracted.
type EarningConfig struct {
	BasePay float64 `json:"base_pay"`
	PerKm   float64 `json:"per_km"`
}

func DefaultEarningConfig() EarningConfig {
	return EarningConfig{BasePay: 40, PerKm: 20}
}

// Earning is the breakdown shown to a rider after a delivery.
type Earning struct {
	BasePay     float64 `json:"base_pay"`
	DistanceKm  float64 `json:"distance_km"`
	PerKm       float64 `json:"per_km"`
	DistancePay float64 `json:"distance_pay"`
	Amount      float64 `json:"amount"`
}

// Earn computes base pay plus distance times the per-km rate.
func Earn(cfg EarningConfig, km float64) Earning {
	km = math.Max(0, km)
	distancePay := roundCents(km * cfg.PerKm)
	return Earning{
		BasePay:     cfg.BasePay,
		DistanceKm:  km,
		PerKm:       cfg.PerKm,
		DistancePay: distancePay,
		Amount:      roundCents(cfg.BasePay + distancePay),
	}
}
