package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used across the tower service.
const (
	AttrTowerID       = attribute.Key("tower.id")
	AttrTowerCount    = attribute.Key("towers.count")
	AttrTowersDeleted = attribute.Key("towers.deleted")
	AttrTowersRebuilt = attribute.Key("towers.rebuilt")
	AttrRequested     = attribute.Key("towers.requested")
	AttrPointLat      = attribute.Key("point.lat")
	AttrPointLon      = attribute.Key("point.lon")
	AttrMaxDistanceKm = attribute.Key("query.max_distance_km")
	AttrInCoverage    = attribute.Key("query.in_coverage")
	AttrTrigger       = attribute.Key("index.reload_trigger")
)
