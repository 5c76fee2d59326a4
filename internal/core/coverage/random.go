package coverage

import (
	"fmt"
	"math/rand/v2"

	"github.com/samirrijal/towerlocator/internal/core/domain"
)

// RadiusRange bounds the radius of generated towers. MinKm == MaxKm yields a fixed radius.
type RadiusRange struct {
	MinKm float64
	MaxKm float64
}

// Validate checks that the range is positive and ordered.
func (r RadiusRange) Validate() error {
	if !(r.MinKm > 0 && r.MaxKm >= r.MinKm) {
		return &domain.ValidationError{
			Field:   "radius",
			Message: fmt.Sprintf("radius range must satisfy 0 < min <= max, got [%g, %g]", r.MinKm, r.MaxKm),
		}
	}
	return nil
}

// GenerateRandom draws count tower drafts with latitude and longitude each
// uniform inside box. This is not area-uniform near the poles. Signal strength
// is uniform in [75, 100] and names run Tower_1..Tower_<count>.
func GenerateRandom(rng *rand.Rand, count int, box domain.BoundingBox, radius RadiusRange, towerType string) []domain.TowerDraft {
	if towerType == "" {
		towerType = domain.DefaultTowerType
	}

	drafts := make([]domain.TowerDraft, 0, max(count, 0))
	for i := 0; i < count; i++ {
		signal := 75 + 25*rng.Float64()
		r := radius.MinKm + (radius.MaxKm-radius.MinKm)*rng.Float64()
		active := true

		drafts = append(drafts, domain.TowerDraft{
			Name: fmt.Sprintf("Tower_%d", i+1),
			Center: &domain.GeoPoint{
				Lat: box.South + (box.North-box.South)*rng.Float64(),
				Lon: box.West + (box.East-box.West)*rng.Float64(),
			},
			SignalStrength:   &signal,
			TowerType:        towerType,
			IsActive:         &active,
			CoverageRadiusKm: &r,
		})
	}
	return drafts
}
