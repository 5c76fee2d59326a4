package coverage

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/pkg/geospatial"
)

// Tolerance widens the radius check used when a tower has no boundary.
type Tolerance struct {
	FloorMeters float64
	Ratio       float64
}

// DefaultTolerance is a 15% band with a 150 m floor.
var DefaultTolerance = Tolerance{FloorMeters: 150, Ratio: 0.15}

// Meters returns the tolerance band for a radius.
func (t Tolerance) Meters(radiusKm float64) float64 {
	return math.Max(t.FloorMeters, radiusKm*1000*t.Ratio)
}

// WithinRadius is the fallback containment check.
func (t Tolerance) WithinRadius(distanceKm, radiusKm float64) bool {
	return distanceKm*1000 <= radiusKm*1000+t.Meters(radiusKm)
}

// InBoundary runs point-in-polygon for p against a ring already projected into
// the local plane of center.
func InBoundary(center domain.GeoPoint, local orb.Ring, p domain.GeoPoint) bool {
	q := geospatial.ToLocal(orb.Point{center.Lon, center.Lat}, orb.Point{p.Lon, p.Lat})
	return planar.RingContains(local, q)
}

// Covers reports whether t covers p: exact polygon test when t has a boundary,
// otherwise the tolerant radius check.
func Covers(t *domain.Tower, p domain.GeoPoint, tol Tolerance) bool {
	if len(t.CoverageBoundary) > 0 {
		return InBoundary(t.Center, LocalRing(t.Center, t.CoverageBoundary), p)
	}
	d := geospatial.HaversineKm(t.Center.Lat, t.Center.Lon, p.Lat, p.Lon)
	return tol.WithinRadius(d, t.CoverageRadiusKm)
}

// BoundingBoxAround returns a box holding every point within radiusKm of center.
func BoundingBoxAround(center domain.GeoPoint, radiusKm float64) domain.BoundingBox {
	south, west, north, east := geospatial.BoundingBox(center.Lat, center.Lon, radiusKm)
	return domain.BoundingBox{North: north, South: south, East: east, West: west}
}
