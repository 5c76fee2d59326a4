// Package sqlite stores towers in a single SQLite file for local and
// single-binary deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/samirrijal/towerlocator/internal/core/domain"
)

const migration = `
CREATE TABLE IF NOT EXISTS towers (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	id                 TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	lat                REAL NOT NULL,
	lon                REAL NOT NULL,
	signal_strength    REAL NOT NULL DEFAULT 100,
	tower_type         TEXT NOT NULL DEFAULT '4G',
	is_active          INTEGER NOT NULL DEFAULT 1,
	coverage_radius_km REAL NOT NULL DEFAULT 1.0,
	coverage_boundary  TEXT,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_towers_active ON towers(is_active);
CREATE INDEX IF NOT EXISTS idx_towers_lat_lon ON towers(lat, lon);
`

const upsertTower = `
INSERT INTO towers (id, name, lat, lon, signal_strength, tower_type, is_active,
                    coverage_radius_km, coverage_boundary, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name, lat = excluded.lat, lon = excluded.lon,
	signal_strength = excluded.signal_strength, tower_type = excluded.tower_type,
	is_active = excluded.is_active, coverage_radius_km = excluded.coverage_radius_km,
	coverage_boundary = excluded.coverage_boundary, updated_at = excluded.updated_at`

const selectTower = `
SELECT id, name, lat, lon, signal_strength, tower_type, is_active,
       coverage_radius_km, coverage_boundary, created_at, updated_at
FROM towers`

// TowerStore implements ports.TowerRepository using modernc.org/sqlite.
type TowerStore struct {
	db *sql.DB
}

// Open opens a SQLite database at path and configures WAL mode.
func Open(path string) (*TowerStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	return &TowerStore{db: db}, nil
}

// Migrate creates the schema if it does not exist.
func (s *TowerStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *TowerStore) Close() error {
	return s.db.Close()
}

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

	var boundary sql.NullString
	if len(t.CoverageBoundary) > 0 {
		data, err := json.Marshal(t.CoverageBoundary)
		if err != nil {
			return nil, fmt.Errorf("sqlite: marshal boundary: %w", err)
		}
		boundary = sql.NullString{String: string(data), Valid: true}
	}

	return []any{
		t.ID, t.Name, t.Center.Lat, t.Center.Lon, t.SignalStrength, t.TowerType, t.IsActive,
		t.CoverageRadiusKm, boundary, t.CreatedAt, t.UpdatedAt,
	}, nil
}

// Save inserts or replaces a tower in one statement.
func (s *TowerStore) Save(ctx context.Context, t *domain.Tower) (*domain.Tower, error) {
	out := *t
	args, err := towerArgs(&out)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, upsertTower, args...); err != nil {
		return nil, fmt.Errorf("sqlite: upsert tower %s: %w", out.ID, err)
	}
	return &out, nil
}

// SaveBatch upserts all towers in one transaction.
func (s *TowerStore) SaveBatch(ctx context.Context, towers []domain.Tower) ([]domain.Tower, error) {
	out := make([]domain.Tower, len(towers))
	copy(out, towers)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertTower)
	if err != nil {
		return nil, fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range out {
		args, err := towerArgs(&out[i])
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("sqlite: upsert tower %s: %w", out[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return out, nil
}

// GetByID returns a tower or domain.ErrNotFound.
func (s *TowerStore) GetByID(ctx context.Context, id string) (*domain.Tower, error) {
	t, err := scanTower(s.db.QueryRowContext(ctx, selectTower+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get tower %s: %w", id, err)
	}
	return t, nil
}

// LoadActive returns active towers in insertion order.
func (s *TowerStore) LoadActive(ctx context.Context) ([]domain.Tower, error) {
	rows, err := s.db.QueryContext(ctx, selectTower+` WHERE is_active = 1 ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load active: %w", err)
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
func (s *TowerStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM towers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete tower %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteAll removes every tower and returns the count.
func (s *TowerStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM towers`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete all: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(n), nil
}

// Ping checks that the database file is reachable.
func (s *TowerStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTower(row scanner) (*domain.Tower, error) {
	var (
		t        domain.Tower
		boundary sql.NullString
	)
	if err := row.Scan(
		&t.ID, &t.Name, &t.Center.Lat, &t.Center.Lon, &t.SignalStrength, &t.TowerType, &t.IsActive,
		&t.CoverageRadiusKm, &boundary, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if boundary.Valid && boundary.String != "" {
		if err := json.Unmarshal([]byte(boundary.String), &t.CoverageBoundary); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal boundary of %s: %w", t.ID, err)
		}
	}
	return &t, nil
}
