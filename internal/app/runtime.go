// Package app wires configuration into a ready tower service for the commands.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/samirrijal/towerlocator/internal/adapters/memory"
	natsadapter "github.com/samirrijal/towerlocator/internal/adapters/nats"
	"github.com/samirrijal/towerlocator/internal/adapters/postgres"
	"github.com/samirrijal/towerlocator/internal/adapters/sqlite"
	"github.com/samirrijal/towerlocator/internal/adapters/valkey"
	"github.com/samirrijal/towerlocator/internal/core/coverage"
	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/core/ports"
	"github.com/samirrijal/towerlocator/internal/core/usecases"
	"github.com/samirrijal/towerlocator/internal/pkg/config"
)

// Options selects the optional infrastructure a command needs.
type Options struct {
	Cache  bool // connect Valkey for read-through caching
	Events bool // publish tower events to NATS
}

// Runtime holds the tower service and the adapters behind it.
type Runtime struct {
	InstanceID string
	Towers     *usecases.TowerService
	Store      ports.TowerRepository
	DB         *postgres.DB           // nil unless store.driver is postgres
	Cache      *valkey.Cache          // nil when disabled or unreachable
	Publisher  *natsadapter.Publisher // nil when disabled or unreachable

	closers []func()
}

// Open connects the configured store and optional adapters, builds the
// service and loads the index. Cache and NATS failures only disable them.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{InstanceID: uuid.NewString()}

	store, err := rt.openStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Store = store

	var cache ports.CacheService
	if opts.Cache && cfg.Valkey.Addr != "" {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, caching disabled", "error", err)
		} else {
			rt.Cache, cache = c, c
			rt.closers = append(rt.closers, c.Close)
		}
	}

	var events ports.EventPublisher
	if opts.Events && cfg.NATS.URL != "" {
		p, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, events disabled", "error", err)
		} else {
			rt.Publisher, events = p, p
			rt.closers = append(rt.closers, p.Close)
		}
	}

	rt.Towers = NewTowerService(store, cache, events, cfg, rt.InstanceID)
	n, err := rt.Towers.Reload(ctx, "startup")
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load towers: %w", err)
	}
	slog.Info("tower index loaded", "towers", n, "driver", cfg.Store.Driver, "instance", rt.InstanceID)
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg *config.Config) (ports.TowerRepository, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		rt.DB = db
		rt.closers = append(rt.closers, db.Close)
		return postgres.NewTowerRepo(db), nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = s.Close() })
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewTowerStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Close releases adapters in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// NewTowerService maps the coverage, generate and cache sections onto the service.
// cache and events may be nil.
func NewTowerService(store ports.TowerRepository, cache ports.CacheService, events ports.EventPublisher, cfg *config.Config, instanceID string) *usecases.TowerService {
	cv := cfg.Coverage
	return usecases.NewTowerService(
		store, cache, events,
		coverage.NewBuilder(cv.Segments, cv.MaxRadiusKm),
		coverage.NewIndex(coverage.Tolerance{FloorMeters: cv.ToleranceFloorM, Ratio: cv.ToleranceRatio}),
		usecases.TowerServiceConfig{
			Limits: domain.RadiusLimits{
				MinKm:     cv.MinRadiusKm,
				MaxKm:     cv.MaxRadiusKm,
				DefaultKm: cv.DefaultRadiusKm,
			},
			MaxGenerateCount: cfg.Generate.MaxCount,
			GenerateRadius: coverage.RadiusRange{
				MinKm: cfg.Generate.RadiusMinKm,
				MaxKm: cfg.Generate.RadiusMaxKm,
			},
			GenerateTowerType: cfg.Generate.TowerType,
			CacheTTLSeconds:   cfg.Cache.TTLSeconds,
			InstanceID:        instanceID,
		},
	)
}
