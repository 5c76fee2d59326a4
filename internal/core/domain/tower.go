package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTowerType is used when a draft leaves the type empty.
const DefaultTowerType = "4G"

// Tower is a radio tower with its derived coverage boundary.
type Tower struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Center           GeoPoint  `json:"center"`
	SignalStrength   float64   `json:"signal_strength"`
	TowerType        string    `json:"tower_type"`
	IsActive         bool      `json:"is_active"`
	CoverageRadiusKm float64   `json:"coverage_radius_km"`
	CoverageBoundary Ring      `json:"coverage_boundary,omitempty"` // derived, nil when unavailable
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TowerDraft holds the caller-authored fields of a tower.
type TowerDraft struct {
	Name             string    `json:"name"`
	Center           *GeoPoint `json:"center"`
	SignalStrength   *float64  `json:"signal_strength,omitempty"`
	TowerType        string    `json:"tower_type,omitempty"`
	IsActive         *bool     `json:"is_active,omitempty"`
	CoverageRadiusKm *float64  `json:"coverage_radius_km,omitempty"`
}

// RadiusLimits bounds the accepted coverage radius.
type RadiusLimits struct {
	MinKm     float64
	MaxKm     float64
	DefaultKm float64
}

// Validate checks the draft against the data model constraints.
func (d TowerDraft) Validate(limits RadiusLimits) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if len([]rune(name)) > 100 {
		return &ValidationError{Field: "name", Message: "name must be at most 100 characters"}
	}
	if d.Center == nil {
		return &ValidationError{Field: "center", Message: "center is required"}
	}
	if err := d.Center.Validate(); err != nil {
		return err
	}
	if d.SignalStrength != nil && !inRange(*d.SignalStrength, 0, 100) {
		return &ValidationError{Field: "signal_strength", Message: "signal strength must be in [0, 100]"}
	}
	if len(d.TowerType) > 50 {
		return &ValidationError{Field: "tower_type", Message: "tower type must be at most 50 characters"}
	}
	if d.CoverageRadiusKm != nil {
		r := *d.CoverageRadiusKm
		if !(r > 0) || !inRange(r, limits.MinKm, limits.MaxKm) {
			return &ValidationError{
				Field:   "coverage_radius_km",
				Message: fmt.Sprintf("coverage radius must be in [%g, %g] km", limits.MinKm, limits.MaxKm),
			}
		}
	}
	return nil
}

// Apply copies the draft onto t, filling defaults for omitted fields.
// The coverage boundary is left untouched; callers rebuild it.
func (d TowerDraft) Apply(t *Tower, limits RadiusLimits) {
	t.Name = strings.TrimSpace(d.Name)
	t.Center = *d.Center
	t.SignalStrength = 100
	if d.SignalStrength != nil {
		t.SignalStrength = *d.SignalStrength
	}
	t.TowerType = d.TowerType
	if t.TowerType == "" {
		t.TowerType = DefaultTowerType
	}
	t.IsActive = true
	if d.IsActive != nil {
		t.IsActive = *d.IsActive
	}
	t.CoverageRadiusKm = limits.DefaultKm
	if d.CoverageRadiusKm != nil {
		t.CoverageRadiusKm = *d.CoverageRadiusKm
	}
}

// NearestResult is the answer to a nearest-tower query.
type NearestResult struct {
	Tower        Tower    `json:"tower"`
	DistanceKm   float64  `json:"distance_km"`
	IsInCoverage bool     `json:"is_in_coverage"`
	UserLocation GeoPoint `json:"user_location"`
}

// TowerEvent is published whenever the tower set changes.
type TowerEvent struct {
	Kind     string    `json:"kind"` // created | updated | deleted | generated | cleared | rebuilt
	TowerIDs []string  `json:"tower_ids,omitempty"`
	Count    int       `json:"count"`
	Origin   string    `json:"origin"` // instance that applied the change
	Time     time.Time `json:"time"`
}
