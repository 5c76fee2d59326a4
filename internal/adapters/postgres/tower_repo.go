package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/samirrijal/towerlocator/internal/core/domain"
)

const towerColumns = `
	id, name,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	signal_strength, tower_type, is_active, coverage_radius_km,
	ST_AsBinary(coverage_area), created_at, updated_at`

const upsertTower = `
	INSERT INTO towers (id, name, location, signal_strength, tower_type, is_active,
	                    coverage_radius_km, coverage_area, coverage_boundary, created_at, updated_at)
	VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7,
	        $8, ST_GeomFromWKB($9, 4326), $10, $11, $12)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, location = EXCLUDED.location,
	    signal_strength = EXCLUDED.signal_strength, tower_type = EXCLUDED.tower_type,
	    is_active = EXCLUDED.is_active, coverage_radius_km = EXCLUDED.coverage_radius_km,
	    coverage_area = EXCLUDED.coverage_area, coverage_boundary = EXCLUDED.coverage_boundary,
	    updated_at = EXCLUDED.updated_at
	RETURNING created_at, updated_at`

// TowerRepo implements ports.TowerRepository with pgx and PostGIS.
// The boundary is kept twice: as a PostGIS polygon for spatial SQL and as a
// JSONB list of [lat, lon] pairs for clients reading the table directly.
type TowerRepo struct {
	db *DB
}

// NewTowerRepo creates a new TowerRepo.
func NewTowerRepo(db *DB) *TowerRepo {
	return &TowerRepo{db: db}
}

// towerArgs flattens a tower into upsertTower's parameters, assigning an ID
// and timestamps when missing.
func towerArgs(t *domain.Tower) ([]any, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	var area, boundary []byte
	if len(t.CoverageBoundary) > 0 {
		var err error
		if area, err = wkb.Marshal(toPolygon(t.CoverageBoundary)); err != nil {
			return nil, fmt.Errorf("encode boundary: %w", err)
		}
		if boundary, err = json.Marshal(t.CoverageBoundary); err != nil {
			return nil, fmt.Errorf("encode boundary: %w", err)
		}
	}

	return []any{
		t.ID, t.Name, t.Center.Lon, t.Center.Lat, t.SignalStrength, t.TowerType, t.IsActive,
		t.CoverageRadiusKm, area, boundary, t.CreatedAt, t.UpdatedAt,
	}, nil
}

// Save inserts or replaces a tower, center and boundary together.
func (r *TowerRepo) Save(ctx context.Context, t *domain.Tower) (*domain.Tower, error) {
	out := *t
	args, err := towerArgs(&out)
	if err != nil {
		return nil, err
	}
	if err := r.db.Pool.QueryRow(ctx, upsertTower, args...).Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert tower: %w", err)
	}
	return &out, nil
}

// SaveBatch upserts all towers in one transaction using pgx.Batch.
func (r *TowerRepo) SaveBatch(ctx context.Context, towers []domain.Tower) ([]domain.Tower, error) {
	out := make([]domain.Tower, len(towers))
	copy(out, towers)

	batch := &pgx.Batch{}
	for i := range out {
		args, err := towerArgs(&out[i])
		if err != nil {
			return nil, err
		}
		batch.Queue(upsertTower, args...)
	}

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := range out {
			if err := br.QueryRow().Scan(&out[i].CreatedAt, &out[i].UpdatedAt); err != nil {
				_ = br.Close()
				return fmt.Errorf("batch upsert tower %d: %w", i, err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns a tower by UUID.
func (r *TowerRepo) GetByID(ctx context.Context, id string) (*domain.Tower, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	t, err := scanTower(r.db.Pool.QueryRow(ctx, `SELECT `+towerColumns+` FROM towers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// LoadActive returns active towers in insertion order.
func (r *TowerRepo) LoadActive(ctx context.Context) ([]domain.Tower, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+towerColumns+` FROM towers WHERE is_active ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var towers []domain.Tower
	for rows.Next() {
		t, err := scanTower(rows)
		if err != nil {
			return nil, err
		}
		towers = append(towers, *t)
	}
	return towers, rows.Err()
}

// Delete removes one tower.
func (r *TowerRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM towers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteAll removes every tower and returns how many rows went away.
func (r *TowerRepo) DeleteAll(ctx context.Context) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM towers`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Ping checks connectivity.
func (r *TowerRepo) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

func scanTower(row pgx.Row) (*domain.Tower, error) {
	var (
		t    domain.Tower
		area []byte
	)
	if err := row.Scan(
		&t.ID, &t.Name, &t.Center.Lat, &t.Center.Lon,
		&t.SignalStrength, &t.TowerType, &t.IsActive, &t.CoverageRadiusKm,
		&area, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(area) > 0 {
		ring, err := fromWKB(area)
		if err != nil {
			return nil, fmt.Errorf("decode boundary of %s: %w", t.ID, err)
		}
		t.CoverageBoundary = ring
	}
	return &t, nil
}

// toPolygon converts a [lat, lon] ring to an orb polygon in lon/lat order.
func toPolygon(r domain.Ring) orb.Polygon {
	ring := make(orb.Ring, len(r))
	for i, v := range r {
		ring[i] = orb.Point{v[1], v[0]}
	}
	return orb.Polygon{ring}
}

func fromWKB(data []byte) (domain.Ring, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	poly, ok := g.(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, fmt.Errorf("expected polygon, got %s", g.GeoJSONType())
	}
	ring := make(domain.Ring, len(poly[0]))
	for i, p := range poly[0] {
		ring[i] = [2]float64{p.Lat(), p.Lon()}
	}
	return ring, nil
}
