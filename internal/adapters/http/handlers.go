package http

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/towerlocator/internal/core/coverage"
	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/core/usecases"
)

// generateBody is the JSON body of POST /v1/towers/generate.
type generateBody struct {
	Count       int                `json:"count"`
	Bounds      domain.BoundingBox `json:"bounds"`
	RadiusMinKm *float64           `json:"radius_min_km,omitempty"`
	RadiusMaxKm *float64           `json:"radius_max_km,omitempty"`
	TowerType   string             `json:"tower_type,omitempty"`
}

func (b generateBody) request() (usecases.GenerateRequest, error) {
	req := usecases.GenerateRequest{Count: b.Count, Bounds: b.Bounds, TowerType: b.TowerType}
	switch {
	case b.RadiusMinKm != nil && b.RadiusMaxKm != nil:
		req.Radius = &coverage.RadiusRange{MinKm: *b.RadiusMinKm, MaxKm: *b.RadiusMaxKm}
	case b.RadiusMinKm != nil || b.RadiusMaxKm != nil:
		return req, fmt.Errorf("radius_min_km and radius_max_km must be given together")
	}
	return req, nil
}

// queryFloat parses a required float query parameter.
func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	return v, nil
}

// queryBox reads north/south/east/west. ok is false when none of them is present.
func queryBox(c *fiber.Ctx) (box domain.BoundingBox, ok bool, err error) {
	if c.Query("north") == "" && c.Query("south") == "" && c.Query("east") == "" && c.Query("west") == "" {
		return box, false, nil
	}
	edges := []struct {
		name string
		dst  *float64
	}{
		{"north", &box.North}, {"south", &box.South}, {"east", &box.East}, {"west", &box.West},
	}
	for _, e := range edges {
		if *e.dst, err = queryFloat(c, e.name); err != nil {
			return box, true, err
		}
	}
	return box, true, nil
}

// ListTowersHandler returns the indexed towers with offset/limit pagination.
func ListTowersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c)
		towers, pg := paginate(deps.Towers.ListAll(c.UserContext()), offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: towers, Pagination: pg})
	}
}

// CreateTowerHandler stores a new tower and returns it with its boundary.
func CreateTowerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var draft domain.TowerDraft
		if err := c.BodyParser(&draft); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		tower, err := deps.Towers.Create(c.UserContext(), draft)
		if err != nil {
			return errFromService(c, err)
		}
		c.Location("/v1/towers/" + tower.ID)
		return c.Status(fiber.StatusCreated).JSON(tower)
	}
}

// GetTowerHandler returns a single tower by ID.
func GetTowerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tower, err := deps.Towers.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(tower)
	}
}

// UpdateTowerHandler replaces the caller-authored fields of a tower.
func UpdateTowerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var draft domain.TowerDraft
		if err := c.BodyParser(&draft); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		tower, err := deps.Towers.Update(c.UserContext(), c.Params("id"), draft)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(tower)
	}
}

// DeleteTowerHandler removes a tower.
func DeleteTowerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Towers.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// NearestTowerHandler answers GET /v1/towers/nearest?lat=&lon=&max_distance_km=.
func NearestTowerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, err := queryFloat(c, "lat")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		lon, err := queryFloat(c, "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		maxKm := usecases.DefaultMaxDistanceKm
		if c.Query("max_distance_km") != "" {
			if maxKm, err = queryFloat(c, "max_distance_km"); err != nil {
				return errBadRequest(c, err.Error())
			}
		}

		return nearest(c, deps, domain.GeoPoint{Lat: lat, Lon: lon}, maxKm)
	}
}

func nearest(c *fiber.Ctx, deps *Dependencies, p domain.GeoPoint, maxKm float64) error {
	res, err := deps.Towers.Nearest(c.UserContext(), p, maxKm)
	if err != nil {
		return errFromService(c, err)
	}
	if res == nil {
		return errNotFound(c, "no towers found within range")
	}
	return c.JSON(res)
}

// TowersInAreaHandler answers GET /v1/towers/in-area?north=&south=&east=&west=.
func TowersInAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		box, ok, err := queryBox(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if !ok {
			return errBadRequest(c, "north, south, east and west are required")
		}

		towers, err := deps.Towers.InArea(c.UserContext(), box)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(towers)
	}
}

// GenerateTowersHandler creates random towers inside the requested bounds.
func GenerateTowersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body generateBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		req, err := body.request()
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		towers, err := deps.Towers.GenerateRandom(c.UserContext(), req)
		if err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(towers)
	}
}

// ClearTowersHandler deletes every tower.
func ClearTowersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := deps.Towers.ClearAll(c.UserContext())
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fiber.Map{
			"deleted": n,
			"message": fmt.Sprintf("Successfully deleted %d towers", n),
		})
	}
}

// CoverageHandler serves coverage areas as a GeoJSON FeatureCollection,
// optionally limited by north/south/east/west.
func CoverageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		box, ok, err := queryBox(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var area *domain.BoundingBox
		if ok {
			area = &box
		}

		fc, err := deps.Towers.CoverageCollection(c.UserContext(), area)
		if err != nil {
			return errFromService(c, err)
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			return errInternal(c, "encode coverage")
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}
