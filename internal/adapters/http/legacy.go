package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/core/usecases"
)

// legacySunset is when the /api/v1/towers routes go away.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// legacyRoutes lists the map-client routes kept from the first API version.
var legacyRoutes = []DeprecatedRoute{
	{Path: "/api/v1/towers", SunsetDate: legacySunset, Alternative: "/v1/towers"},
	{Path: "/api/v1/towers/nearest", SunsetDate: legacySunset, Alternative: "/v1/towers/nearest"},
	{Path: "/api/v1/towers/in-bounds", SunsetDate: legacySunset, Alternative: "/v1/towers/in-area"},
	{Path: "/api/v1/towers/generate-random/:count", SunsetDate: legacySunset, Alternative: "/v1/towers/generate"},
	{Path: "/api/v1/towers/clear-all", SunsetDate: legacySunset, Alternative: "/v1/towers"},
}

// legacyLocation is the body of POST /api/v1/towers/nearest.
type legacyLocation struct {
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	MaxDistanceKm *float64 `json:"max_distance_km,omitempty"`
}

// legacyTowerCreate is the flat body of POST /api/v1/towers.
type legacyTowerCreate struct {
	Name             string   `json:"name"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	SignalStrength   *float64 `json:"signal_strength"`
	TowerType        string   `json:"tower_type"`
	IsActive         *bool    `json:"is_active"`
	CoverageRadiusKm *float64 `json:"coverage_radius_km"`
}

func (b legacyTowerCreate) draft() (domain.TowerDraft, error) {
	if b.Latitude == nil || b.Longitude == nil {
		return domain.TowerDraft{}, &domain.ValidationError{Field: "latitude", Message: "latitude and longitude are required"}
	}
	return domain.TowerDraft{
		Name:             b.Name,
		Center:           &domain.GeoPoint{Lat: *b.Latitude, Lon: *b.Longitude},
		SignalStrength:   b.SignalStrength,
		TowerType:        b.TowerType,
		IsActive:         b.IsActive,
		CoverageRadiusKm: b.CoverageRadiusKm,
	}, nil
}

// legacyTower is a tower as first-version map clients read it: flat
// coordinates and the boundary under coverage_boundary_points.
// distance_km and is_in_coverage are null outside nearest answers.
type legacyTower struct {
	ID                     string      `json:"id"`
	Name                   string      `json:"name"`
	Latitude               float64     `json:"latitude"`
	Longitude              float64     `json:"longitude"`
	SignalStrength         float64     `json:"signal_strength"`
	TowerType              string      `json:"tower_type"`
	IsActive               bool        `json:"is_active"`
	CoverageRadiusKm       float64     `json:"coverage_radius_km"`
	DistanceKm             *float64    `json:"distance_km"`
	IsInCoverage           *bool       `json:"is_in_coverage"`
	CoverageBoundaryPoints domain.Ring `json:"coverage_boundary_points"`
}

func toLegacyTower(t domain.Tower) legacyTower {
	return legacyTower{
		ID:                     t.ID,
		Name:                   t.Name,
		Latitude:               t.Center.Lat,
		Longitude:              t.Center.Lon,
		SignalStrength:         t.SignalStrength,
		TowerType:              t.TowerType,
		IsActive:               t.IsActive,
		CoverageRadiusKm:       t.CoverageRadiusKm,
		CoverageBoundaryPoints: t.CoverageBoundary,
	}
}

func toLegacyTowers(towers []domain.Tower) []legacyTower {
	out := make([]legacyTower, len(towers))
	for i, t := range towers {
		out[i] = toLegacyTower(t)
	}
	return out
}

// legacyUserLocation echoes the query, cutoff included.
type legacyUserLocation struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	MaxDistanceKm float64 `json:"max_distance_km"`
}

type legacyNearestResponse struct {
	Tower        legacyTower        `json:"tower"`
	DistanceKm   float64            `json:"distance_km"`
	UserLocation legacyUserLocation `json:"user_location"`
}

func setupLegacyRoutes(app *fiber.App, deps *Dependencies) {
	api := app.Group("/api/v1/towers", DeprecationMiddleware(legacyRoutes))
	api.Get("/", legacyListHandler(deps))
	api.Post("/", legacyCreateHandler(deps))
	api.Post("/nearest", legacyNearestHandler(deps))
	api.Post("/in-bounds", legacyInBoundsHandler(deps))
	api.Post("/generate-random/:count", legacyGenerateHandler(deps))
	api.Delete("/clear-all", ClearTowersHandler(deps))
}

func legacyListHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(toLegacyTowers(deps.Towers.ListAll(c.UserContext())))
	}
}

func legacyCreateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body legacyTowerCreate
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		draft, err := body.draft()
		if err != nil {
			return errFromService(c, err)
		}
		tower, err := deps.Towers.Create(c.UserContext(), draft)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(toLegacyTower(*tower))
	}
}

func legacyNearestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var loc legacyLocation
		if err := c.BodyParser(&loc); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if loc.Latitude == nil || loc.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}
		maxKm := usecases.DefaultMaxDistanceKm
		if loc.MaxDistanceKm != nil {
			maxKm = *loc.MaxDistanceKm
		}

		p := domain.GeoPoint{Lat: *loc.Latitude, Lon: *loc.Longitude}
		res, err := deps.Towers.Nearest(c.UserContext(), p, maxKm)
		if err != nil {
			return errFromService(c, err)
		}
		if res == nil {
			return errNotFound(c, "no towers found within range")
		}

		tower := toLegacyTower(res.Tower)
		tower.DistanceKm = &res.DistanceKm
		tower.IsInCoverage = &res.IsInCoverage
		return c.JSON(legacyNearestResponse{
			Tower:        tower,
			DistanceKm:   res.DistanceKm,
			UserLocation: legacyUserLocation{Latitude: p.Lat, Longitude: p.Lon, MaxDistanceKm: maxKm},
		})
	}
}

func legacyInBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var box domain.BoundingBox
		if err := c.BodyParser(&box); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		towers, err := deps.Towers.InArea(c.UserContext(), box)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(toLegacyTowers(towers))
	}
}

func legacyGenerateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := c.ParamsInt("count")
		if err != nil {
			return errBadRequest(c, "count must be an integer")
		}
		var box domain.BoundingBox
		if err := c.BodyParser(&box); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		towers, err := deps.Towers.GenerateRandom(c.UserContext(), usecases.GenerateRequest{Count: count, Bounds: box})
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(toLegacyTowers(towers))
	}
}
