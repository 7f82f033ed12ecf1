package client

import (
	"fmt"

	"github.com/yeremiapane/delivery-app/pricing"
)

// EarningsSummary is shown to the rider once a delivery is completed.
type EarningsSummary struct {
	OrderID string
	pricing.Earning
	// Estimated is set when the server did not report the earning and the
	// figures come from the local formula.
	Estimated bool
	// Wallet is the refreshed wallet, nil when it could not be fetched.
	Wallet *Wallet
}

func summarize(orderID string, server *Earning, cfg pricing.EarningConfig, traveledKm float64) *EarningsSummary {
	if server == nil {
		return &EarningsSummary{OrderID: orderID, Earning: pricing.Earn(cfg, traveledKm), Estimated: true}
	}
	return &EarningsSummary{
		OrderID: orderID,
		Earning: pricing.Earning{
			BasePay:     server.BasePay,
			DistanceKm:  server.DistanceKm,
			PerKm:       server.PerKm,
			DistancePay: server.DistancePay,
			Amount:      server.Amount,
		},
	}
}

// Lines renders the breakdown the way the rider sees it.
func (s EarningsSummary) Lines() []string {
	return []string{
		fmt.Sprintf("Base pay: %.2f", s.BasePay),
		fmt.Sprintf("Distance: %.1f km x %.2f = %.2f", s.DistanceKm, s.PerKm, s.DistancePay),
		fmt.Sprintf("Total: %.2f", s.Amount),
	}
}
