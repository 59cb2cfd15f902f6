package projections

import (
	"context"
	"log/slog"

	"storefinder/internal/domain/geo"
	"storefinder/internal/domain/store"
	"storefinder/internal/observability"
)

var tracer = observability.NewTracer()

// NearbyStoresQuery carries the search origin in degrees.
type NearbyStoresQuery struct {
	Latitude  float64
	Longitude float64
}

// NearbyStoreLister loads the full store collection for the scan.
type NearbyStoreLister interface {
	List(ctx context.Context) ([]store.Store, error)
}

// NearbyStoresDeps holds dependencies for QueryNearbyStores.
type NearbyStoresDeps struct {
	StoreStore NearbyStoreLister
	Metrics    *observability.Metrics
}

// QueryNearbyStores returns stores strictly within geo.DefaultRadiusMiles of the origin.
// PRE: none; coordinates are not range-checked here
// POST: Returns matches in repository order; no matches is an empty, non-nil slice
// INVARIANT: every store is scanned; there is no spatial index
func QueryNearbyStores(ctx context.Context, query NearbyStoresQuery, deps NearbyStoresDeps) (nearby []store.Store, err error) {
	ctx, span := tracer.StartNearbySpan(ctx, query.Latitude, query.Longitude, geo.DefaultRadiusMiles)
	defer func() { observability.End(span, err) }()

	all, err := deps.StoreStore.List(ctx)
	if err != nil {
		return nil, err
	}
	deps.Metrics.RecordNearbyScan(len(all))

	origin := geo.Point{Lat: query.Latitude, Lon: query.Longitude}
	nearby = geo.Nearby(origin, all, geo.DefaultRadiusMiles, func(s store.Store) geo.Point {
		return geo.Point{Lat: s.Latitude, Lon: s.Longitude}
	})
	slog.Debug("nearby_scan", "scanned", len(all), "matched", len(nearby))
	return nearby, nil
}
