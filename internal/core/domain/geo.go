package domain

import "fmt"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the point lies within WGS 84 degree ranges.
func (p GeoPoint) Validate() error {
	if !inRange(p.Lat, -90, 90) {
		return &ValidationError{Field: "lat", Message: fmt.Sprintf("latitude must be in [-90, 90], got %g", p.Lat)}
	}
	if !inRange(p.Lon, -180, 180) {
		return &ValidationError{Field: "lon", Message: fmt.Sprintf("longitude must be in [-180, 180], got %g", p.Lon)}
	}
	return nil
}

// BoundingBox represents an axis-aligned lat/lon rectangle.
// Boxes crossing the antimeridian are not supported.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Validate checks ranges and ordering of the box edges.
func (b BoundingBox) Validate() error {
	if !inRange(b.South, -90, 90) || !inRange(b.North, -90, 90) {
		return &ValidationError{Field: "bounds", Message: "latitude edges must be in [-90, 90]"}
	}
	if !inRange(b.West, -180, 180) || !inRange(b.East, -180, 180) {
		return &ValidationError{Field: "bounds", Message: "longitude edges must be in [-180, 180]"}
	}
	if !(b.South < b.North) {
		return &ValidationError{Field: "bounds", Message: "south must be less than north"}
	}
	if !(b.West < b.East) {
		return &ValidationError{Field: "bounds", Message: "west must be less than east"}
	}
	return nil
}

// inRange reports whether lo <= v <= hi. NaN is never in range.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}

// Ring is a closed sequence of [lat, lon] pairs; the first and last pair coincide.
// Longitudes lie in [-180, 180], so a ring around a tower near the antimeridian
// wraps from 180 to -180. Containment projects the ring into the tower's local
// plane, where the wrap disappears; planar consumers (GeoJSON, PostGIS) see the
// split the same way they see antimeridian bounding boxes.
type Ring [][2]float64

// Closed reports whether the ring has at least four vertices and ends where it starts.
func (r Ring) Closed() bool {
	return len(r) >= 4 && r[0] == r[len(r)-1]
}
