package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/samirrijal/towerlocator/internal/app"
	"github.com/samirrijal/towerlocator/internal/core/coverage"
	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/core/usecases"
	"github.com/samirrijal/towerlocator/internal/pkg/config"
	"github.com/samirrijal/towerlocator/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source  string   `json:"source"`
	Regions []Region `json:"regions"`
	// CSV lists tower files with the header name,lat,lon[,radius_km,tower_type,signal_strength].
	CSV []string `json:"csv,omitempty"`
}

// Region is a named area filled with random towers. Either Bounds or
// Center plus the half extents must be given.
type Region struct {
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Bounds      *domain.BoundingBox `json:"bounds,omitempty"`
	Center      *domain.GeoPoint    `json:"center,omitempty"`
	HalfLat     float64             `json:"half_lat,omitempty"`
	HalfLon     float64             `json:"half_lon,omitempty"`
	Count       int                 `json:"count"`
	TowerType   string              `json:"tower_type,omitempty"`
	RadiusMinKm float64             `json:"radius_min_km,omitempty"`
	RadiusMaxKm float64             `json:"radius_max_km,omitempty"`
}

// defaultManifest seeds the area the map client opens on.
var defaultManifest = Manifest{
	Source: "built-in",
	Regions: []Region{{
		Name:    "Kyiv",
		Slug:    "kyiv",
		Center:  &domain.GeoPoint{Lat: 50.4501, Lon: 30.5234},
		HalfLat: 0.025,
		HalfLon: 0.035,
		Count:   20,
	}},
}

// Box resolves the region's bounding box.
func (r Region) Box() (domain.BoundingBox, error) {
	if r.Bounds != nil {
		return *r.Bounds, nil
	}
	if r.Center == nil || r.HalfLat <= 0 || r.HalfLon <= 0 {
		return domain.BoundingBox{}, fmt.Errorf("region %q needs bounds or center with half_lat and half_lon", r.Slug)
	}
	return domain.BoundingBox{
		North: r.Center.Lat + r.HalfLat,
		South: r.Center.Lat - r.HalfLat,
		East:  r.Center.Lon + r.HalfLon,
		West:  r.Center.Lon - r.HalfLon,
	}, nil
}

// Request converts the region into a generation request.
func (r Region) Request() (usecases.GenerateRequest, error) {
	box, err := r.Box()
	if err != nil {
		return usecases.GenerateRequest{}, err
	}
	req := usecases.GenerateRequest{Count: r.Count, Bounds: box, TowerType: r.TowerType}
	if r.RadiusMinKm > 0 || r.RadiusMaxKm > 0 {
		req.Radius = &coverage.RadiusRange{MinKm: r.RadiusMinKm, MaxKm: r.RadiusMaxKm}
	}
	return req, nil
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("towerlocator-seeder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	manifest := defaultManifest
	if len(os.Args) > 1 {
		if manifest, err = loadManifest(os.Args[1]); err != nil {
			log.Fatalf("manifest: %v", err)
		}
	}

	// Optional CLI arg: comma separated region slugs
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	ctx := context.Background()
	rt, err := app.Open(ctx, cfg, app.Options{Events: true})
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()

	slog.Info("seeding towers", "source", manifest.Source, "regions", len(manifest.Regions), "csv_files", len(manifest.CSV))

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 regions in flight

	for _, region := range manifest.Regions {
		if len(slugFilter) > 0 && !slugFilter[region.Slug] {
			continue
		}

		wg.Add(1)
		go func(r Region) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := seedRegion(ctx, rt.Towers, r); err != nil {
				slog.Error("seed region failed", "region", r.Slug, "error", err)
			}
		}(region)
	}
	wg.Wait()

	for _, path := range manifest.CSV {
		n, err := importCSV(ctx, rt.Towers, path)
		if err != nil {
			slog.Error("csv import failed", "file", path, "imported", n, "error", err)
			continue
		}
		slog.Info("csv imported", "file", path, "towers", n)
	}

	slog.Info("seeding complete", "towers", len(rt.Towers.ListAll(ctx)))
}

func loadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Random regions
// ---------------------------------------------------------------------------

func seedRegion(ctx context.Context, towers *usecases.TowerService, r Region) error {
	req, err := r.Request()
	if err != nil {
		return err
	}
	generated, err := towers.GenerateRandom(ctx, req)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	slog.Info("region seeded", "region", r.Slug, "towers", len(generated))
	return nil
}

// ---------------------------------------------------------------------------
// CSV import
// ---------------------------------------------------------------------------

func importCSV(ctx context.Context, towers *usecases.TowerService, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	drafts, err := readTowerCSV(f)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, d := range drafts {
		if _, err := towers.Create(ctx, d); err != nil {
			return n, fmt.Errorf("create %q: %w", d.Name, err)
		}
		n++
	}
	return n, nil
}

// readTowerCSV parses tower drafts from CSV with a header row. Columns are
// matched by name; name, lat and lon are required.
func readTowerCSV(r io.Reader) ([]domain.TowerDraft, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"name", "lat", "lon"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("missing column %q", req)
		}
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	optFloat := func(rec []string, name string, line int) (*float64, error) {
		raw := get(rec, name)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
		}
		return &v, nil
	}

	var drafts []domain.TowerDraft
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lat, err := strconv.ParseFloat(get(rec, "lat"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(get(rec, "lon"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		d := domain.TowerDraft{
			Name:      get(rec, "name"),
			Center:    &domain.GeoPoint{Lat: lat, Lon: lon},
			TowerType: get(rec, "tower_type"),
		}
		if d.CoverageRadiusKm, err = optFloat(rec, "radius_km", line); err != nil {
			return nil, err
		}
		if d.SignalStrength, err = optFloat(rec, "signal_strength", line); err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
