package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefinder/internal/domain/geo"
)

var (
	newYork    = geo.Point{Lat: 40.7128, Lon: -74.0060}
	losAngeles = geo.Point{Lat: 34.0522, Lon: -118.2437}
	london     = geo.Point{Lat: 51.5074, Lon: -0.1278}
	sydney     = geo.Point{Lat: -33.8688, Lon: 151.2093}
)

// earthRadiusMiles is the sphere radius the distance formula effectively uses.
const earthRadiusMiles = geo.EarthRadiusKm * 1000 * geo.MilesPerMeter

// pointNorthOf returns a point due north of p at the given distance.
// Along a meridian the haversine distance is exactly R·Δlat.
func pointNorthOf(p geo.Point, miles float64) geo.Point {
	return geo.Point{Lat: p.Lat + miles/earthRadiusMiles*180/math.Pi, Lon: p.Lon}
}

func TestDistanceMiles_SamePointIsZero(t *testing.T) {
	for _, p := range []geo.Point{newYork, sydney, {Lat: 0, Lon: 0}, {Lat: 90, Lon: 180}} {
		assert.Zero(t, geo.DistanceMiles(p, p), "point %+v", p)
	}
}

func TestDistanceMiles_Symmetric(t *testing.T) {
	pairs := [][2]geo.Point{{newYork, losAngeles}, {london, sydney}, {{Lat: 55, Lon: -5}, {Lat: 55.1, Lon: -5.1}}}
	for _, pr := range pairs {
		assert.InDelta(t, geo.DistanceMiles(pr[0], pr[1]), geo.DistanceMiles(pr[1], pr[0]), 1e-9)
	}
}

func TestDistanceMiles_KnownCities(t *testing.T) {
	assert.InDelta(t, 2445, geo.DistanceMiles(newYork, losAngeles), 50)
	assert.InDelta(t, 10500, geo.DistanceMiles(london, sydney), 100)
}

func TestDistanceMiles_OutOfRangeInputIsFinite(t *testing.T) {
	d := geo.DistanceMiles(geo.Point{Lat: 200, Lon: -500}, geo.Point{Lat: -95, Lon: 720})
	assert.False(t, math.IsNaN(d))
	assert.False(t, math.IsInf(d, 0))
}

func TestWithinRadius_StrictBoundary(t *testing.T) {
	assert.False(t, geo.WithinRadius(10.0, geo.DefaultRadiusMiles))
	assert.True(t, geo.WithinRadius(9.999, geo.DefaultRadiusMiles))
	assert.True(t, geo.WithinRadius(0, geo.DefaultRadiusMiles))
}

type site struct {
	name string
	pos  geo.Point
}

func position(s site) geo.Point { return s.pos }

func TestNearby_ScenarioFromStoreAtFiftyFiveNorth(t *testing.T) {
	stores := []site{{name: "S", pos: geo.Point{Lat: 55.0, Lon: -5.0}}}

	got := geo.Nearby(geo.Point{Lat: 55.1, Lon: -5.1}, stores, geo.DefaultRadiusMiles, position)
	require.Len(t, got, 1)
	assert.Equal(t, "S", got[0].name)

	got = geo.Nearby(geo.Point{Lat: 60.0, Lon: -10.0}, stores, geo.DefaultRadiusMiles, position)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNearby_BoundaryAgainstComputedDistance(t *testing.T) {
	origin := geo.Point{Lat: 53.3498, Lon: -6.2603}
	s := site{name: "edge", pos: pointNorthOf(origin, 7.5)}
	d := geo.DistanceMiles(s.pos, origin)

	assert.Empty(t, geo.Nearby(origin, []site{s}, d, position), "store exactly on the radius must be excluded")
	assert.Len(t, geo.Nearby(origin, []site{s}, math.Nextafter(d, math.Inf(1)), position), 1)
}

func TestNearby_JustInsideDefaultRadius(t *testing.T) {
	origin := geo.Point{Lat: 53.3498, Lon: -6.2603}
	inside := site{name: "inside", pos: pointNorthOf(origin, 9.999)}
	outside := site{name: "outside", pos: pointNorthOf(origin, 10.001)}

	got := geo.Nearby(origin, []site{outside, inside}, geo.DefaultRadiusMiles, position)
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].name)
}

func TestNearby_PreservesCandidateOrder(t *testing.T) {
	origin := geo.Point{Lat: 10, Lon: 10}
	cands := []site{
		{name: "far-first", pos: pointNorthOf(origin, 8)},
		{name: "remote", pos: newYork},
		{name: "same", pos: origin},
		{name: "mid", pos: pointNorthOf(origin, 3)},
	}

	got := geo.Nearby(origin, cands, geo.DefaultRadiusMiles, position)
	names := make([]string, 0, len(got))
	for _, s := range got {
		names = append(names, s.name)
	}
	assert.Equal(t, []string{"far-first", "same", "mid"}, names)
}

func TestNearby_EmptyCandidates(t *testing.T) {
	got := geo.Nearby(newYork, nil, geo.DefaultRadiusMiles, position)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
