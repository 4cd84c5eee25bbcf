package goHMS

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DashboardStats are the headline counts of the admin dashboard.
type DashboardStats struct {
	Properties    int `json:"properties"`
	Units         int `json:"units"`
	OccupiedUnits int `json:"occupiedUnits"`
	Leases        int `json:"leases"`
	ActiveLeases  int `json:"activeLeases"`
	Tenants       int `json:"tenants"`
}

// OccupancyRate is occupied units over all units, 0 when there are none.
func (s *DashboardStats) OccupancyRate() float64 {
	if s.Units == 0 {
		return 0
	}
	return float64(s.OccupiedUnits) / float64(s.Units)
}

// Dashboard fetches every count concurrently through the cache. The first
// failure cancels the rest and is returned.
func (c *Client) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(countInto(ctx, c.properties, nil, &stats.Properties))
	g.Go(countInto(ctx, c.units, nil, &stats.Units))
	g.Go(countInto(ctx, c.units, map[string]any{"status": UnitOccupied}, &stats.OccupiedUnits))
	g.Go(countInto(ctx, c.leases, nil, &stats.Leases))
	g.Go(countInto(ctx, c.leases, map[string]any{"status": LeaseActive}, &stats.ActiveLeases))
	g.Go(countInto(ctx, c.tenants, nil, &stats.Tenants))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

func countInto[T any, In any](ctx context.Context, col *Collection[T, In], filters map[string]any, dst *int) func() error {
	return func() error {
		page, err := col.List(ctx, ListParams{Page: 1, Limit: 1, Filters: filters})
		if err != nil {
			return err
		}
		*dst = page.Total
		return nil
	}
}
