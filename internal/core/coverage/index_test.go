package coverage

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/pkg/geospatial"
)

// offset returns the point dx meters east and dy meters north of c.
func offset(c domain.GeoPoint, dx, dy float64) domain.GeoPoint {
	p := geospatial.FromLocal(orb.Point{c.Lon, c.Lat}, orb.Point{dx, dy})
	return domain.GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

func tower(t *testing.T, id string, c domain.GeoPoint, radiusKm float64, withBoundary bool) domain.Tower {
	t.Helper()
	tw := domain.Tower{
		ID:               id,
		Name:             "Tower " + id,
		Center:           c,
		SignalStrength:   90,
		TowerType:        domain.DefaultTowerType,
		IsActive:         true,
		CoverageRadiusKm: radiusKm,
	}
	if withBoundary {
		ring, err := NewBuilder(DefaultSegments, 5).Build(c, radiusKm)
		require.NoError(t, err)
		tw.CoverageBoundary = ring
	}
	return tw
}

func TestFindNearestSanFrancisco(t *testing.T) {
	for _, withBoundary := range []bool{true, false} {
		t.Run(fmt.Sprintf("boundary=%v", withBoundary), func(t *testing.T) {
			ix := NewIndex(DefaultTolerance)
			ix.Add(tower(t, "sf", sanFrancisco, 1.0, withBoundary))

			res, ok := ix.FindNearest(offset(sanFrancisco, 0, 500), 50)
			require.True(t, ok)
			assert.Equal(t, "sf", res.Tower.ID)
			assert.InDelta(t, 0.5, res.DistanceKm, 1e-6)
			assert.True(t, res.IsInCoverage)

			far := offset(sanFrancisco, 5000, 0)
			res, ok = ix.FindNearest(far, 50)
			require.True(t, ok)
			assert.InDelta(t, 5.0, res.DistanceKm, 1e-6)
			assert.False(t, res.IsInCoverage)
			assert.Equal(t, far, res.UserLocation)

			_, ok = ix.FindNearest(offset(sanFrancisco, 0, -100000), 50)
			assert.False(t, ok)
		})
	}
}

func TestFindNearestCoveragePolicy(t *testing.T) {
	// 1.1 km lies outside the ring but inside the 1150 m fallback band.
	p := offset(sanFrancisco, 1100, 0)

	ix := NewIndex(DefaultTolerance)
	ix.Add(tower(t, "exact", sanFrancisco, 1.0, true))
	res, ok := ix.FindNearest(p, 50)
	require.True(t, ok)
	assert.False(t, res.IsInCoverage)

	ix = NewIndex(DefaultTolerance)
	ix.Add(tower(t, "fallback", sanFrancisco, 1.0, false))
	res, ok = ix.FindNearest(p, 50)
	require.True(t, ok)
	assert.True(t, res.IsInCoverage)

	res, ok = ix.FindNearest(offset(sanFrancisco, 1200, 0), 50)
	require.True(t, ok)
	assert.False(t, res.IsInCoverage)
}

func TestFindNearestRespectsCutoff(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ix := NewIndex(DefaultTolerance)

	box := domain.BoundingBox{North: 44, South: 42, East: -1, West: -4}
	for i, d := range GenerateRandom(rng, 200, box, RadiusRange{MinKm: 0.5, MaxKm: 2}, "") {
		var tw domain.Tower
		d.Apply(&tw, domain.RadiusLimits{MinKm: 0.1, MaxKm: 5, DefaultKm: 1})
		tw.ID = fmt.Sprintf("t%03d", i)
		ix.Add(tw)
	}

	for i := 0; i < 200; i++ {
		p := domain.GeoPoint{Lat: 41.5 + 3*rng.Float64(), Lon: -4.5 + 4*rng.Float64()}
		maxKm := 0.1 + 30*rng.Float64()

		res, ok := ix.FindNearest(p, maxKm)
		var want *domain.Tower
		wantKm := maxKm
		for _, tw := range ix.All() {
			d := geospatial.HaversineKm(p.Lat, p.Lon, tw.Center.Lat, tw.Center.Lon)
			if d <= wantKm && (want == nil || d < wantKm) {
				tw := tw
				want, wantKm = &tw, d
			}
		}
		if want == nil {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.LessOrEqual(t, res.DistanceKm, maxKm)
		assert.Equal(t, want.ID, res.Tower.ID)
	}
}

func TestFindNearestTieBreak(t *testing.T) {
	ix := NewIndex(DefaultTolerance)
	// Two towers mirrored around the query point.
	q := domain.GeoPoint{Lat: 0, Lon: 10}
	ix.Add(
		tower(t, "b", domain.GeoPoint{Lat: 0, Lon: 10.01}, 1, true),
		tower(t, "a", domain.GeoPoint{Lat: 0, Lon: 9.99}, 1, true),
	)

	first, ok := ix.FindNearest(q, 50)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := ix.FindNearest(q, 50)
		require.True(t, ok)
		assert.Equal(t, first.Tower.ID, again.Tower.ID)
	}
	assert.Equal(t, "b", first.Tower.ID)
}

func TestFindNearestAcrossAntimeridian(t *testing.T) {
	ix := NewIndex(DefaultTolerance)
	ix.Add(tower(t, "east", domain.GeoPoint{Lat: -17, Lon: 179.995}, 2, true))

	res, ok := ix.FindNearest(domain.GeoPoint{Lat: -17, Lon: -179.995}, 5)
	require.True(t, ok)
	assert.Equal(t, "east", res.Tower.ID)
	assert.Less(t, res.DistanceKm, 1.1)
	assert.True(t, res.IsInCoverage)
}

func TestFindNearestNearPole(t *testing.T) {
	ix := NewIndex(DefaultTolerance)
	ix.Add(tower(t, "pole", domain.GeoPoint{Lat: 89.995, Lon: 0}, 2, true))

	res, ok := ix.FindNearest(domain.GeoPoint{Lat: 89.995, Lon: 180}, 5)
	require.True(t, ok)
	assert.True(t, res.IsInCoverage)
}

func TestInBounds(t *testing.T) {
	ix := NewIndex(DefaultTolerance)
	inactive := tower(t, "off", domain.GeoPoint{Lat: 37.5, Lon: -122.5}, 1, false)
	inactive.IsActive = false

	ix.Add(
		tower(t, "inside", domain.GeoPoint{Lat: 37.5, Lon: -122.5}, 1, false),
		tower(t, "north-edge", domain.GeoPoint{Lat: 38, Lon: -122.2}, 1, false),
		tower(t, "corner", domain.GeoPoint{Lat: 37, Lon: -123}, 1, false),
		tower(t, "east-edge", domain.GeoPoint{Lat: 37.2, Lon: -122}, 1, false),
		tower(t, "above", domain.GeoPoint{Lat: 38.0001, Lon: -122.5}, 1, false),
		tower(t, "west", domain.GeoPoint{Lat: 37.5, Lon: -123.0001}, 1, false),
		inactive,
	)

	got := ix.InBounds(domain.BoundingBox{North: 38, South: 37, East: -122, West: -123})
	ids := make([]string, 0, len(got))
	for _, tw := range got {
		assert.True(t, tw.Center.Lat >= 37 && tw.Center.Lat <= 38)
		assert.True(t, tw.Center.Lon >= -123 && tw.Center.Lon <= -122)
		ids = append(ids, tw.ID)
	}
	assert.Equal(t, []string{"inside", "north-edge", "corner", "east-edge"}, ids)

	empty := ix.InBounds(domain.BoundingBox{North: 1, South: 0, East: 1, West: 0})
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestIndexMutations(t *testing.T) {
	ix := NewIndex(DefaultTolerance)
	assert.Equal(t, 0, ix.Clear())
	v0 := ix.Version()

	a := tower(t, "a", sanFrancisco, 1, true)
	b := tower(t, "b", offset(sanFrancisco, 3000, 0), 1, true)
	ix.Add(a, b)
	assert.Equal(t, 2, ix.Len())
	assert.Greater(t, ix.Version(), v0)

	t.Run("update keeps position", func(t *testing.T) {
		moved := a
		moved.Name = "renamed"
		ix.Add(moved)
		all := ix.All()
		require.Len(t, all, 2)
		assert.Equal(t, "renamed", all[0].Name)
	})

	t.Run("deactivation removes", func(t *testing.T) {
		off := b
		off.IsActive = false
		ix.Add(off)
		_, ok := ix.Get("b")
		assert.False(t, ok)
		assert.Equal(t, 1, ix.Len())
	})

	t.Run("remove", func(t *testing.T) {
		ix.Add(b)
		assert.Equal(t, 1, ix.Remove("b", "missing"))
		assert.Equal(t, 0, ix.Remove("missing"))
	})

	t.Run("boundary is copied", func(t *testing.T) {
		c := tower(t, "c", offset(sanFrancisco, 0, 9000), 1, true)
		ix.Add(c)
		c.CoverageBoundary[0] = [2]float64{0, 0}
		got, ok := ix.Get("c")
		require.True(t, ok)
		assert.NotEqual(t, [2]float64{0, 0}, got.CoverageBoundary[0])
	})

	t.Run("replace skips inactive", func(t *testing.T) {
		off := b
		off.IsActive = false
		ix.Replace([]domain.Tower{a, off})
		assert.Equal(t, 1, ix.Len())
	})

	t.Run("clear", func(t *testing.T) {
		assert.Equal(t, 1, ix.Clear())
		assert.Empty(t, ix.All())
		assert.Equal(t, 0, ix.Clear())
	})
}

func TestIndexConcurrentReaders(t *testing.T) {
	ix := NewIndex(DefaultTolerance)
	batch := make([]domain.Tower, 20)
	for i := range batch {
		batch[i] = tower(t, fmt.Sprintf("t%d", i), offset(sanFrancisco, float64(i)*200, 0), 1, true)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Writers publish either nothing or the full batch.
				n := len(ix.InBounds(domain.BoundingBox{North: 90, South: -90, East: 180, West: -180}))
				if n != 0 && n != len(batch) {
					t.Errorf("observed partial snapshot with %d towers", n)
					return
				}
				if res, ok := ix.FindNearest(sanFrancisco, 50); ok && res.Tower.ID != "t0" {
					t.Errorf("nearest = %s, want t0", res.Tower.ID)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		ix.Add(batch...)
		ix.Clear()
	}
	close(stop)
	wg.Wait()
}
