// Package coverage derives tower coverage boundaries and answers spatial
// queries over the set of active towers.
package coverage

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/pkg/geospatial"
)

const (
	// MinSegments is the smallest vertex count a boundary may have (11.25° steps).
	MinSegments = 32
	// DefaultSegments is the vertex count used when none is configured.
	DefaultSegments = 64
)

var (
	ErrInvalidCenter      = errors.New("coverage: invalid center")
	ErrInvalidRadius      = errors.New("coverage: invalid radius")
	ErrGeometryDegenerate = errors.New("coverage: degenerate boundary")
)

// Builder turns a center and radius into a geodesic boundary ring.
type Builder struct {
	segments    int
	maxRadiusKm float64
}

// NewBuilder returns a Builder producing rings with the given vertex count.
// Counts below MinSegments are raised to it. maxRadiusKm <= 0 disables the upper bound.
func NewBuilder(segments int, maxRadiusKm float64) *Builder {
	if segments < MinSegments {
		segments = MinSegments
	}
	return &Builder{segments: segments, maxRadiusKm: maxRadiusKm}
}

// Segments returns the number of distinct vertices per ring.
func (b *Builder) Segments() int { return b.segments }

// Build projects the center into its local azimuthal-equidistant plane, buffers
// the origin by radiusKm, reprojects every vertex and closes the ring.
func (b *Builder) Build(center domain.GeoPoint, radiusKm float64) (domain.Ring, error) {
	if !finite(center.Lat) || !finite(center.Lon) || center.Validate() != nil {
		return nil, fmt.Errorf("%w: (%g, %g)", ErrInvalidCenter, center.Lat, center.Lon)
	}
	if !finite(radiusKm) || radiusKm <= 0 || (b.maxRadiusKm > 0 && radiusKm > b.maxRadiusKm) {
		return nil, fmt.Errorf("%w: %g km", ErrInvalidRadius, radiusKm)
	}

	origin := orb.Point{center.Lon, center.Lat}
	meters := radiusKm * 1000
	step := 2 * math.Pi / float64(b.segments)

	ring := make(domain.Ring, 0, b.segments+1)
	for i := 0; i < b.segments; i++ {
		theta := float64(i) * step
		p := geospatial.FromLocal(origin, orb.Point{meters * math.Sin(theta), meters * math.Cos(theta)})
		ring = append(ring, [2]float64{p.Lat(), geospatial.NormalizeLon(p.Lon())})
	}
	ring = append(ring, ring[0])

	if err := Validate(center, ring); err != nil {
		return nil, err
	}
	return ring, nil
}

// BoundaryFor is Build for callers that must not fail: on error it returns a nil
// ring together with the reason so the caller can log it and fall back to the
// radius check.
func (b *Builder) BoundaryFor(t *domain.Tower) (domain.Ring, error) {
	return b.Build(t.Center, t.CoverageRadiusKm)
}

// Validate checks that ring is closed, has at least MinSegments+1 vertices, is
// simple and contains center. All checks run in center's local plane.
func Validate(center domain.GeoPoint, ring domain.Ring) error {
	if !ring.Closed() || len(ring) < MinSegments+1 {
		return fmt.Errorf("%w: ring not closed or too short (%d vertices)", ErrGeometryDegenerate, len(ring))
	}
	for _, v := range ring {
		if !finite(v[0]) || !finite(v[1]) || v[0] < -90 || v[0] > 90 || v[1] < -180 || v[1] > 180 {
			return fmt.Errorf("%w: vertex (%g, %g) out of range", ErrGeometryDegenerate, v[0], v[1])
		}
	}

	local := LocalRing(center, ring)
	if !simple(local) {
		return fmt.Errorf("%w: ring self-intersects", ErrGeometryDegenerate)
	}
	if !planar.RingContains(local, orb.Point{0, 0}) {
		return fmt.Errorf("%w: ring does not contain its center", ErrGeometryDegenerate)
	}
	return nil
}

// LocalRing projects a [lat, lon] ring into the local plane of center.
func LocalRing(center domain.GeoPoint, ring domain.Ring) orb.Ring {
	origin := orb.Point{center.Lon, center.Lat}
	local := make(orb.Ring, len(ring))
	for i, v := range ring {
		local[i] = geospatial.ToLocal(origin, orb.Point{v[1], v[0]})
	}
	return local
}

// simple reports whether no two non-adjacent edges of the closed ring intersect.
func simple(r orb.Ring) bool {
	n := len(r) - 1
	for i := 0; i < n; i++ {
		a1, a2 := r[i], r[i+1]
		if a1 == a2 {
			return false
		}
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // shares the closing vertex
			}
			if segmentsIntersect(a1, a2, r[j], r[j+1]) {
				return false
			}
		}
	}
	return true
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
