package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// maxMercatorLat is the latitude where Web-Mercator is conventionally cut off.
const maxMercatorLat = 85.05112878

// ProjectedDistanceMeters measures distance in Web-Mercator, the way PostGIS
// computes ST_Distance on EPSG:3857 geometries, scaled back to ground meters by
// the cosine of the mean latitude. It is a diagnostic cross-check for
// HaversineKm and must not be used for ranking or containment.
func ProjectedDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	a := project.Point(orb.Point{lon1, clampLat(lat1)}, project.WGS84.ToMercator)
	b := project.Point(orb.Point{lon2, clampLat(lat2)}, project.WGS84.ToMercator)

	scale := math.Cos(toRad((clampLat(lat1) + clampLat(lat2)) / 2))
	return planar.Distance(a, b) * scale
}

func clampLat(lat float64) float64 {
	return math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
}

// ToLocal projects p onto the azimuthal-equidistant plane tangent at center.
// Coordinates are meters, x east and y north; the distance from the origin equals
// the haversine distance from center. Points are orb.Point{lon, lat}.
func ToLocal(center, p orb.Point) orb.Point {
	c := centralAngle(center.Lat(), center.Lon(), p.Lat(), p.Lon())
	if c < 1e-15 {
		return orb.Point{0, 0}
	}

	phi1, lam1 := toRad(center.Lat()), toRad(center.Lon())
	phi, lam := toRad(p.Lat()), toRad(p.Lon())
	dLam := lam - lam1

	k := EarthRadiusKm * 1000 * c / math.Sin(c)
	x := k * math.Cos(phi) * math.Sin(dLam)
	y := k * (math.Cos(phi1)*math.Sin(phi) - math.Sin(phi1)*math.Cos(phi)*math.Cos(dLam))
	return orb.Point{x, y}
}

// FromLocal is the inverse of ToLocal. Returned longitudes stay continuous with
// center and may leave [-180, 180] near the antimeridian.
func FromLocal(center, xy orb.Point) orb.Point {
	rho := math.Hypot(xy[0], xy[1])
	if rho == 0 {
		return center
	}

	phi1, lam1 := toRad(center.Lat()), toRad(center.Lon())
	c := rho / (EarthRadiusKm * 1000)
	sinC, cosC := math.Sin(c), math.Cos(c)

	sinPhi := cosC*math.Sin(phi1) + xy[1]*sinC*math.Cos(phi1)/rho
	phi := math.Asin(math.Max(-1, math.Min(1, sinPhi)))
	lam := lam1 + math.Atan2(
		xy[0]*sinC,
		rho*math.Cos(phi1)*cosC-xy[1]*math.Sin(phi1)*sinC,
	)
	return orb.Point{toDeg(lam), toDeg(phi)}
}
