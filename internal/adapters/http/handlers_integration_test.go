//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	handler "github.com/samirrijal/towerlocator/internal/adapters/http"
	"github.com/samirrijal/towerlocator/internal/adapters/postgres"
	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/pkg/config"
)

// setupTestDB connects to the database named by TOWERS_DATABASE_* and empties the towers table.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("towerlocator-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := postgres.NewTowerRepo(db).DeleteAll(ctx); err != nil {
		t.Fatalf("clear towers: %v", err)
	}
	return db
}

func setupPostgresDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	svc := newTowerService(postgres.NewTowerRepo(db))
	if _, err := svc.Reload(context.Background(), "test"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return &handler.Dependencies{Towers: svc}
}

func TestCreateAndNearest_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	app := setupApp(setupPostgresDeps(t, db))

	status, body, _ := doJSON(t, app, "POST", "/v1/towers", domain.TowerDraft{
		Name:             "Integration SF",
		Center:           &domain.GeoPoint{Lat: 37.7749, Lon: -122.4194},
		CoverageRadiusKm: ptr(1.0),
	})
	if status != 201 {
		t.Fatalf("create: expected 201, got %d: %s", status, body)
	}
	var created domain.Tower
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode tower: %v", err)
	}

	// A fresh service built on the same database sees the stored tower and boundary.
	app = setupApp(setupPostgresDeps(t, db))
	status, body, _ = doJSON(t, app, "GET", "/v1/towers/"+created.ID, nil)
	if status != 200 {
		t.Fatalf("get: expected 200, got %d: %s", status, body)
	}
	var loaded domain.Tower
	if err := json.Unmarshal(body, &loaded); err != nil {
		t.Fatalf("decode tower: %v", err)
	}
	if !loaded.CoverageBoundary.Closed() {
		t.Errorf("expected a closed boundary after reload, got %d vertices", len(loaded.CoverageBoundary))
	}

	status, body, _ = doJSON(t, app, "GET", "/v1/towers/nearest?lat=37.7800&lon=-122.4194", nil)
	if status != 200 {
		t.Fatalf("nearest: expected 200, got %d: %s", status, body)
	}
	var res domain.NearestResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode nearest: %v", err)
	}
	if res.Tower.ID != created.ID || !res.IsInCoverage {
		t.Errorf("expected covered by %s, got %+v", created.ID, res)
	}
}

func TestGenerateAndClear_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	app := setupApp(setupPostgresDeps(t, db))

	status, body, _ := doJSON(t, app, "POST", "/v1/towers/generate", map[string]any{
		"count":  25,
		"bounds": domain.BoundingBox{North: 50.4751, South: 50.4251, East: 30.5584, West: 30.4884},
	})
	if status != 201 {
		t.Fatalf("generate: expected 201, got %d: %s", status, body)
	}

	var stored int
	if err := db.Pool.QueryRow(context.Background(), `SELECT count(*) FROM towers`).Scan(&stored); err != nil {
		t.Fatalf("count towers: %v", err)
	}
	if stored != 25 {
		t.Fatalf("expected 25 stored towers, got %d", stored)
	}

	status, body, _ = doJSON(t, app, "DELETE", "/v1/towers", nil)
	if status != 200 {
		t.Fatalf("clear: expected 200, got %d: %s", status, body)
	}
	var cleared struct {
		Deleted int    `json:"deleted"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &cleared); err != nil {
		t.Fatalf("decode clear: %v", err)
	}
	if cleared.Deleted != 25 || cleared.Message != fmt.Sprintf("Successfully deleted %d towers", 25) {
		t.Errorf("unexpected clear result %+v", cleared)
	}
}
