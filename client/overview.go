package client

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DashboardOverview is the restaurant dashboard header. Each part carries
// its own error; a failed part leaves the other one usable.
type DashboardOverview struct {
	Restaurant    *Restaurant
	RestaurantErr error
	Stats         *RestaurantStats
	StatsErr      error
}

// Ok reports whether both parts loaded.
func (o DashboardOverview) Ok() bool {
	return o.RestaurantErr == nil && o.StatsErr == nil
}

// Overview fetches the restaurant profile and its stats concurrently.
func (a *API) Overview(ctx context.Context, restaurantID uint) DashboardOverview {
	var out DashboardOverview
	var g errgroup.Group

	g.Go(func() error {
		r, err := a.Restaurant(ctx, restaurantID)
		if err != nil {
			out.RestaurantErr = err
			return nil
		}
		out.Restaurant = &r
		return nil
	})
	g.Go(func() error {
		s, err := a.RestaurantStats(ctx, restaurantID)
		if err != nil {
			out.StatsErr = err
			return nil
		}
		out.Stats = &s
		return nil
	})
	_ = g.Wait()
	return out
}
