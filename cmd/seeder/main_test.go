package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/towerlocator/internal/core/domain"
)

func TestRegionBox(t *testing.T) {
	box, err := defaultManifest.Regions[0].Box()
	require.NoError(t, err)
	assert.InDelta(t, 50.4751, box.North, 1e-9)
	assert.InDelta(t, 50.4251, box.South, 1e-9)
	assert.InDelta(t, 30.5584, box.East, 1e-9)
	assert.InDelta(t, 30.4884, box.West, 1e-9)
	assert.NoError(t, box.Validate())

	explicit := Region{Bounds: &domain.BoundingBox{North: 2, South: 1, East: 2, West: 1}}
	box, err = explicit.Box()
	require.NoError(t, err)
	assert.Equal(t, 2.0, box.North)

	_, err = Region{Slug: "empty"}.Box()
	assert.Error(t, err)
}

func TestRegionRequest(t *testing.T) {
	r := defaultManifest.Regions[0]
	req, err := r.Request()
	require.NoError(t, err)
	assert.Equal(t, 20, req.Count)
	assert.Nil(t, req.Radius, "configured radius range is used when the region sets none")

	r.RadiusMinKm, r.RadiusMaxKm = 1, 2
	req, err = r.Request()
	require.NoError(t, err)
	require.NotNil(t, req.Radius)
	assert.Equal(t, 1.0, req.Radius.MinKm)
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"source": "test",
		"regions": [{"name": "Bay", "slug": "bay", "bounds": {"north": 38, "south": 37, "east": -122, "west": -123}, "count": 5}],
		"csv": ["towers.csv"]
	}`), 0o644))

	m, err := loadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "test", m.Source)
	require.Len(t, m.Regions, 1)
	assert.Equal(t, 5, m.Regions[0].Count)
	assert.Equal(t, []string{"towers.csv"}, m.CSV)
}

func TestReadTowerCSV(t *testing.T) {
	in := `name, lat, lon, radius_km, tower_type
Ferry Building, 37.7955, -122.3937, 2.5, 5G
Twin Peaks, 37.7544, -122.4477, ,
`
	drafts, err := readTowerCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "Ferry Building", drafts[0].Name)
	assert.Equal(t, domain.GeoPoint{Lat: 37.7955, Lon: -122.3937}, *drafts[0].Center)
	require.NotNil(t, drafts[0].CoverageRadiusKm)
	assert.Equal(t, 2.5, *drafts[0].CoverageRadiusKm)
	assert.Equal(t, "5G", drafts[0].TowerType)

	assert.Nil(t, drafts[1].CoverageRadiusKm)
	assert.Nil(t, drafts[1].SignalStrength)
}

func TestReadTowerCSV_Errors(t *testing.T) {
	_, err := readTowerCSV(strings.NewReader("name,lat\nx,1\n"))
	assert.ErrorContains(t, err, `missing column "lon"`)

	_, err = readTowerCSV(strings.NewReader("name,lat,lon\nx,north,1\n"))
	assert.ErrorContains(t, err, "line 2")
}
