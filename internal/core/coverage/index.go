package coverage

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/pkg/geospatial"
)

type entry struct {
	tower domain.Tower
	local orb.Ring // boundary in the tower's local plane, nil without a boundary
}

type snapshot struct {
	entries []entry
	version uint64
}

// Index holds the active towers. Readers work on an immutable snapshot;
// writers copy it, apply their change and publish the copy.
//
// Towers returned by the index share boundary slices with the snapshot and
// must be treated as read-only.
type Index struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
	tol  Tolerance
}

// NewIndex returns an empty index using tol for boundary-less towers.
func NewIndex(tol Tolerance) *Index {
	ix := &Index{tol: tol}
	ix.snap.Store(&snapshot{})
	return ix
}

func newEntry(t domain.Tower) entry {
	e := entry{tower: t}
	if len(t.CoverageBoundary) > 0 {
		e.tower.CoverageBoundary = append(domain.Ring(nil), t.CoverageBoundary...)
		e.local = LocalRing(t.Center, e.tower.CoverageBoundary)
	}
	return e
}

func (ix *Index) publish(entries []entry) {
	prev := ix.snap.Load()
	ix.snap.Store(&snapshot{entries: entries, version: prev.version + 1})
}

// Replace swaps the whole tower set. Inactive towers are skipped.
func (ix *Index) Replace(towers []domain.Tower) {
	entries := make([]entry, 0, len(towers))
	for _, t := range towers {
		if t.IsActive {
			entries = append(entries, newEntry(t))
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.publish(entries)
}

// Add inserts towers at the end of the snapshot order. A tower whose ID is
// already indexed is replaced in place; an inactive one is removed instead.
func (ix *Index) Add(towers ...domain.Tower) {
	if len(towers) == 0 {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load().entries
	entries := make([]entry, len(cur), len(cur)+len(towers))
	copy(entries, cur)

	for _, t := range towers {
		pos := -1
		for i := range entries {
			if entries[i].tower.ID == t.ID {
				pos = i
				break
			}
		}
		switch {
		case !t.IsActive && pos >= 0:
			entries = append(entries[:pos], entries[pos+1:]...)
		case !t.IsActive:
		case pos >= 0:
			entries[pos] = newEntry(t)
		default:
			entries = append(entries, newEntry(t))
		}
	}
	ix.publish(entries)
}

// Remove drops the towers with the given IDs and returns how many were indexed.
func (ix *Index) Remove(ids ...string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load().entries
	entries := make([]entry, 0, len(cur))
	for _, e := range cur {
		if _, ok := drop[e.tower.ID]; !ok {
			entries = append(entries, e)
		}
	}
	removed := len(cur) - len(entries)
	if removed > 0 {
		ix.publish(entries)
	}
	return removed
}

// Clear removes every tower and returns how many there were.
func (ix *Index) Clear() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := len(ix.snap.Load().entries)
	if n > 0 {
		ix.publish(nil)
	}
	return n
}

// Get returns the indexed tower with the given ID.
func (ix *Index) Get(id string) (domain.Tower, bool) {
	for _, e := range ix.snap.Load().entries {
		if e.tower.ID == id {
			return e.tower, true
		}
	}
	return domain.Tower{}, false
}

// All returns the active towers in snapshot order.
func (ix *Index) All() []domain.Tower {
	entries := ix.snap.Load().entries
	out := make([]domain.Tower, len(entries))
	for i, e := range entries {
		out[i] = e.tower
	}
	return out
}

// Len returns the number of active towers.
func (ix *Index) Len() int { return len(ix.snap.Load().entries) }

// Version increases with every published change.
func (ix *Index) Version() uint64 { return ix.snap.Load().version }

// FindNearest returns the active tower closest to p by haversine distance
// among those at most maxDistanceKm away. Ties go to the tower that comes
// first in snapshot order. The second result is false when no tower qualifies.
func (ix *Index) FindNearest(p domain.GeoPoint, maxDistanceKm float64) (*domain.NearestResult, bool) {
	entries := ix.snap.Load().entries

	box := BoundingBoxAround(p, maxDistanceKm)
	useBox := box.West > -180 && box.East < 180

	best, bestKm := -1, math.Inf(1)
	for i := range entries {
		c := entries[i].tower.Center
		if useBox && !box.Contains(c) {
			continue
		}
		d := geospatial.HaversineKm(p.Lat, p.Lon, c.Lat, c.Lon)
		if d <= maxDistanceKm && d < bestKm {
			best, bestKm = i, d
		}
	}
	if best < 0 {
		return nil, false
	}

	e := entries[best]
	var inCoverage bool
	if e.local != nil {
		inCoverage = InBoundary(e.tower.Center, e.local, p)
	} else {
		inCoverage = ix.tol.WithinRadius(bestKm, e.tower.CoverageRadiusKm)
	}

	return &domain.NearestResult{
		Tower:        e.tower,
		DistanceKm:   bestKm,
		IsInCoverage: inCoverage,
		UserLocation: p,
	}, true
}

// InBounds returns the active towers whose center lies in box, edges included.
func (ix *Index) InBounds(box domain.BoundingBox) []domain.Tower {
	out := make([]domain.Tower, 0)
	for _, e := range ix.snap.Load().entries {
		if box.Contains(e.tower.Center) {
			out = append(out, e.tower)
		}
	}
	return out
}
