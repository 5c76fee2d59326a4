package geospatial

import "math"

// KmPerDegree is the length of one degree of latitude used for quick box math.
const KmPerDegree = 111.32

// minCos keeps the longitude divisor away from zero at the poles.
const minCos = 1e-12

// BoundingBox returns a box around a point that holds every point within radiusKm
// of it by the haversine metric. The deltas follow radius/111.32 and
// radius/(111.32·cos lat), widened to the exact spherical extent where that is larger.
// When the circle reaches a pole the box spans every longitude.
func BoundingBox(lat, lon, radiusKm float64) (minLat, minLon, maxLat, maxLon float64) {
	angular := radiusKm / EarthRadiusKm

	latDelta := math.Max(radiusKm/KmPerDegree, toDeg(angular))
	minLat = math.Max(-90, lat-latDelta)
	maxLat = math.Min(90, lat+latDelta)

	cosLat := math.Max(math.Cos(toRad(lat)), minCos)
	if lat+latDelta >= 90 || lat-latDelta <= -90 || math.Sin(angular) >= cosLat {
		return minLat, -180, maxLat, 180
	}

	lonDelta := math.Max(
		radiusKm/(KmPerDegree*cosLat),
		toDeg(math.Asin(math.Sin(angular)/cosLat)),
	)
	minLon = math.Max(-180, lon-lonDelta)
	maxLon = math.Min(180, lon+lonDelta)
	return minLat, minLon, maxLat, maxLon
}
