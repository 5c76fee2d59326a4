package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to the tower service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	towerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tower",
		Fields: graphql.Fields{
			"id":                 &graphql.Field{Type: graphql.String},
			"name":               &graphql.Field{Type: graphql.String},
			"center":             &graphql.Field{Type: geoPointType},
			"signal_strength":    &graphql.Field{Type: graphql.Float},
			"tower_type":         &graphql.Field{Type: graphql.String},
			"is_active":          &graphql.Field{Type: graphql.Boolean},
			"coverage_radius_km": &graphql.Field{Type: graphql.Float},
			"coverage_boundary": &graphql.Field{
				Type:        graphql.NewList(graphql.NewList(graphql.Float)),
				Description: "Closed ring of [lat, lon] pairs; null when unavailable",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, ok := p.Source.(domain.Tower)
					if !ok || t.CoverageBoundary == nil {
						return nil, nil
					}
					out := make([][]float64, len(t.CoverageBoundary))
					for i, v := range t.CoverageBoundary {
						out[i] = []float64{v[0], v[1]}
					}
					return out, nil
				},
			},
			"created_at": &graphql.Field{Type: graphql.DateTime},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	nearestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearestTower",
		Fields: graphql.Fields{
			"tower":          &graphql.Field{Type: towerType},
			"distance_km":    &graphql.Field{Type: graphql.Float},
			"is_in_coverage": &graphql.Field{Type: graphql.Boolean},
			"user_location":  &graphql.Field{Type: geoPointType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"towers": &graphql.Field{
				Type:        graphql.NewList(towerType),
				Description: "List all active towers",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Towers.ListAll(p.Context), nil
				},
			},
			"tower": &graphql.Field{
				Type:        towerType,
				Description: "Get a tower by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, err := deps.Towers.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return *t, nil
				},
			},
			"nearestTower": &graphql.Field{
				Type:        nearestType,
				Description: "Closest active tower to a location; null when none is in range",
				Args: graphql.FieldConfigArgument{
					"lat":             &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":             &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_distance_km": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: usecases.DefaultMaxDistanceKm},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					res, err := deps.Towers.Nearest(p.Context, pt, p.Args["max_distance_km"].(float64))
					if err != nil || res == nil {
						return nil, err
					}
					return *res, nil
				},
			},
			"towersInArea": &graphql.Field{
				Type:        graphql.NewList(towerType),
				Description: "Active towers whose center lies in a bounding box",
				Args: graphql.FieldConfigArgument{
					"north": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"south": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"east":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"west":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					box := domain.BoundingBox{
						North: p.Args["north"].(float64),
						South: p.Args["south"].(float64),
						East:  p.Args["east"].(float64),
						West:  p.Args["west"].(float64),
					}
					return deps.Towers.InArea(p.Context, box)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
