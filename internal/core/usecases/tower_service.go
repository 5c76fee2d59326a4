package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/towerlocator/internal/core/coverage"
	"github.com/samirrijal/towerlocator/internal/core/domain"
	"github.com/samirrijal/towerlocator/internal/core/ports"
	"github.com/samirrijal/towerlocator/internal/pkg/metrics"
	"github.com/samirrijal/towerlocator/internal/pkg/telemetry"
)

const (
	DefaultMaxDistanceKm = 50.0
	MinMaxDistanceKm     = 0.1
	MaxMaxDistanceKm     = 500.0
	DefaultGenerateLimit = 1000
)

// Event kinds carried by domain.TowerEvent.
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventDeleted   = "deleted"
	EventGenerated = "generated"
	EventCleared   = "cleared"
	EventRebuilt   = "rebuilt"
)

var tracer = otel.Tracer("github.com/samirrijal/towerlocator/internal/core/usecases")

// TowerServiceConfig holds the tunables of TowerService.
type TowerServiceConfig struct {
	Limits            domain.RadiusLimits
	MaxGenerateCount  int
	GenerateRadius    coverage.RadiusRange
	GenerateTowerType string
	CacheTTLSeconds   int
	// InstanceID tags published events and scopes cache keys to this process.
	InstanceID string
	// Rand drives random generation; nil seeds one from the clock.
	Rand *rand.Rand
}

// GenerateRequest asks for count random towers inside Bounds.
type GenerateRequest struct {
	Count     int
	Bounds    domain.BoundingBox
	Radius    *coverage.RadiusRange // nil uses the configured range
	TowerType string
}

// TowerService orchestrates the coverage builder, the index and the store.
// Mutations are serialized so the store and the index apply changes in the same order.
type TowerService struct {
	towers  ports.TowerRepository
	cache   ports.CacheService
	events  ports.EventPublisher
	builder *coverage.Builder
	index   *coverage.Index
	cfg     TowerServiceConfig

	mu  sync.Mutex // guards mutations and rng
	rng *rand.Rand
	now func() time.Time
}

// NewTowerService creates a new TowerService. cache and events may be nil.
func NewTowerService(
	towers ports.TowerRepository,
	cache ports.CacheService,
	events ports.EventPublisher,
	builder *coverage.Builder,
	index *coverage.Index,
	cfg TowerServiceConfig,
) *TowerService {
	if cfg.MaxGenerateCount <= 0 {
		cfg.MaxGenerateCount = DefaultGenerateLimit
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	rng := cfg.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	return &TowerService{
		towers:  towers,
		cache:   cache,
		events:  events,
		builder: builder,
		index:   index,
		cfg:     cfg,
		rng:     rng,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// InstanceID identifies this process in published events.
func (s *TowerService) InstanceID() string { return s.cfg.InstanceID }

// Limits returns the accepted radius bounds.
func (s *TowerService) Limits() domain.RadiusLimits { return s.cfg.Limits }

// Ready reports whether the store can be reached.
func (s *TowerService) Ready(ctx context.Context) error {
	return s.towers.Ping(ctx)
}

// Reload replaces the index with the active towers held by the store.
func (s *TowerService) Reload(ctx context.Context, trigger string) (int, error) {
	ctx, span := tracer.Start(ctx, "TowerService.Reload", trace.WithAttributes(telemetry.AttrTrigger.String(trigger)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	towers, err := s.towers.LoadActive(ctx)
	if err != nil {
		return 0, spanErr(span, fmt.Errorf("load active towers: %w", err))
	}
	s.index.Replace(towers)

	metrics.IndexReloads.WithLabelValues(trigger).Inc()
	metrics.TowersIndexed.Set(float64(s.index.Len()))
	return s.index.Len(), nil
}

// ListAll returns the active towers in insertion order.
func (s *TowerService) ListAll(ctx context.Context) []domain.Tower {
	_, span := tracer.Start(ctx, "TowerService.ListAll")
	defer span.End()

	towers := s.index.All()
	span.SetAttributes(telemetry.AttrTowerCount.Int(len(towers)))
	return towers
}

// Get returns one tower. Inactive towers are read from the store.
func (s *TowerService) Get(ctx context.Context, id string) (*domain.Tower, error) {
	if t, ok := s.index.Get(id); ok {
		return &t, nil
	}
	t, err := s.towers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tower %s: %w", id, err)
	}
	return t, nil
}

// Create validates the draft, derives the boundary and stores the tower.
func (s *TowerService) Create(ctx context.Context, draft domain.TowerDraft) (*domain.Tower, error) {
	ctx, span := tracer.Start(ctx, "TowerService.Create")
	defer span.End()

	if err := draft.Validate(s.cfg.Limits); err != nil {
		return nil, spanErr(span, err)
	}

	now := s.now()
	t := domain.Tower{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	draft.Apply(&t, s.cfg.Limits)
	s.attachBoundary(ctx, &t)

	s.mu.Lock()
	saved, err := s.towers.Save(ctx, &t)
	if err != nil {
		s.mu.Unlock()
		return nil, spanErr(span, fmt.Errorf("save tower: %w", err))
	}
	s.index.Add(*saved)
	metrics.TowersIndexed.Set(float64(s.index.Len()))
	s.mu.Unlock()

	span.SetAttributes(telemetry.AttrTowerID.String(saved.ID))
	slog.InfoContext(ctx, "tower created", "id", saved.ID, "name", saved.Name, "boundary", saved.CoverageBoundary != nil)
	s.publish(ctx, EventCreated, []string{saved.ID}, 1)
	return saved, nil
}

// Update replaces the caller-authored fields of a tower and rebuilds its boundary.
func (s *TowerService) Update(ctx context.Context, id string, draft domain.TowerDraft) (*domain.Tower, error) {
	ctx, span := tracer.Start(ctx, "TowerService.Update", trace.WithAttributes(telemetry.AttrTowerID.String(id)))
	defer span.End()

	if err := draft.Validate(s.cfg.Limits); err != nil {
		return nil, spanErr(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.towers.GetByID(ctx, id)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("get tower %s: %w", id, err))
	}

	t := *cur
	draft.Apply(&t, s.cfg.Limits)
	t.UpdatedAt = s.now()
	s.attachBoundary(ctx, &t)

	saved, err := s.towers.Save(ctx, &t)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("save tower: %w", err))
	}
	s.index.Add(*saved)
	metrics.TowersIndexed.Set(float64(s.index.Len()))

	s.publish(ctx, EventUpdated, []string{saved.ID}, 1)
	return saved, nil
}

// Delete removes a tower from the store and the index.
func (s *TowerService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TowerService.Delete", trace.WithAttributes(telemetry.AttrTowerID.String(id)))
	defer span.End()

	s.mu.Lock()
	if err := s.towers.Delete(ctx, id); err != nil {
		s.mu.Unlock()
		return spanErr(span, fmt.Errorf("delete tower %s: %w", id, err))
	}
	s.index.Remove(id)
	metrics.TowersIndexed.Set(float64(s.index.Len()))
	s.mu.Unlock()

	s.publish(ctx, EventDeleted, []string{id}, 1)
	return nil
}

// Nearest returns the closest active tower within maxDistanceKm, or nil when none qualifies.
func (s *TowerService) Nearest(ctx context.Context, p domain.GeoPoint, maxDistanceKm float64) (*domain.NearestResult, error) {
	ctx, span := tracer.Start(ctx, "TowerService.Nearest", trace.WithAttributes(
		telemetry.AttrPointLat.Float64(p.Lat),
		telemetry.AttrPointLon.Float64(p.Lon),
		telemetry.AttrMaxDistanceKm.Float64(maxDistanceKm),
	))
	defer span.End()

	if err := p.Validate(); err != nil {
		return nil, spanErr(span, err)
	}
	if !(maxDistanceKm >= MinMaxDistanceKm && maxDistanceKm <= MaxMaxDistanceKm) {
		return nil, spanErr(span, &domain.ValidationError{
			Field:   "max_distance_km",
			Message: fmt.Sprintf("max distance must be in [%g, %g] km", MinMaxDistanceKm, MaxMaxDistanceKm),
		})
	}

	key := s.cacheKey("nearest", floatArgs(p.Lat, p.Lon, maxDistanceKm))
	var cached domain.NearestResult
	if s.cacheGet(ctx, "nearest", key, &cached) {
		return &cached, nil
	}

	res, ok := s.index.FindNearest(p, maxDistanceKm)
	if !ok {
		metrics.NearestQueries.WithLabelValues("none").Inc()
		return nil, nil
	}
	if res.IsInCoverage {
		metrics.NearestQueries.WithLabelValues("covered").Inc()
	} else {
		metrics.NearestQueries.WithLabelValues("uncovered").Inc()
	}
	span.SetAttributes(telemetry.AttrTowerID.String(res.Tower.ID), telemetry.AttrInCoverage.Bool(res.IsInCoverage))

	s.cacheSet(ctx, key, res)
	return res, nil
}

// InArea returns the active towers whose center lies in box, edges included.
func (s *TowerService) InArea(ctx context.Context, box domain.BoundingBox) ([]domain.Tower, error) {
	ctx, span := tracer.Start(ctx, "TowerService.InArea")
	defer span.End()

	if err := box.Validate(); err != nil {
		return nil, spanErr(span, err)
	}

	key := s.cacheKey("in-area", floatArgs(box.North, box.South, box.East, box.West))
	var cached []domain.Tower
	if s.cacheGet(ctx, "in-area", key, &cached) {
		return cached, nil
	}

	towers := s.index.InBounds(box)
	span.SetAttributes(telemetry.AttrTowerCount.Int(len(towers)))

	s.cacheSet(ctx, key, towers)
	return towers, nil
}

// GenerateRandom creates req.Count random towers inside req.Bounds in one batch.
func (s *TowerService) GenerateRandom(ctx context.Context, req GenerateRequest) ([]domain.Tower, error) {
	ctx, span := tracer.Start(ctx, "TowerService.GenerateRandom", trace.WithAttributes(telemetry.AttrRequested.Int(req.Count)))
	defer span.End()

	if req.Count < 0 || req.Count > s.cfg.MaxGenerateCount {
		return nil, spanErr(span, &domain.ValidationError{
			Field:   "count",
			Message: fmt.Sprintf("count must be in [0, %d]", s.cfg.MaxGenerateCount),
		})
	}
	if err := req.Bounds.Validate(); err != nil {
		return nil, spanErr(span, err)
	}
	radius := s.cfg.GenerateRadius
	if req.Radius != nil {
		radius = *req.Radius
	}
	if err := radius.Validate(); err != nil {
		return nil, spanErr(span, err)
	}
	if !(radius.MinKm >= s.cfg.Limits.MinKm && radius.MaxKm <= s.cfg.Limits.MaxKm) {
		return nil, spanErr(span, &domain.ValidationError{
			Field:   "radius",
			Message: fmt.Sprintf("radius range must lie within [%g, %g] km", s.cfg.Limits.MinKm, s.cfg.Limits.MaxKm),
		})
	}
	towerType := req.TowerType
	if towerType == "" {
		towerType = s.cfg.GenerateTowerType
	}
	if req.Count == 0 {
		return []domain.Tower{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := coverage.GenerateRandom(s.rng, req.Count, req.Bounds, radius, towerType)
	now := s.now()
	towers := make([]domain.Tower, len(drafts))
	for i, d := range drafts {
		towers[i] = domain.Tower{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
		d.Apply(&towers[i], s.cfg.Limits)
		s.attachBoundary(ctx, &towers[i])
	}

	saved, err := s.towers.SaveBatch(ctx, towers)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("save generated towers: %w", err))
	}
	s.index.Add(saved...)
	metrics.TowersIndexed.Set(float64(s.index.Len()))

	slog.InfoContext(ctx, "towers generated", "count", len(saved))
	s.publish(ctx, EventGenerated, nil, len(saved))
	return saved, nil
}

// ClearAll deletes every tower and returns how many were removed.
func (s *TowerService) ClearAll(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "TowerService.ClearAll")
	defer span.End()

	s.mu.Lock()
	n, err := s.towers.DeleteAll(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, spanErr(span, fmt.Errorf("delete all towers: %w", err))
	}
	s.index.Clear()
	metrics.TowersIndexed.Set(0)
	s.mu.Unlock()

	span.SetAttributes(telemetry.AttrTowersDeleted.Int(n))
	slog.InfoContext(ctx, "towers cleared", "count", n)
	s.publish(ctx, EventCleared, nil, n)
	return n, nil
}

// RebuildBoundaries recomputes the boundary of every active tower and stores
// the towers whose boundary changed. It returns how many were rewritten.
func (s *TowerService) RebuildBoundaries(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "TowerService.RebuildBoundaries")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	towers, err := s.towers.LoadActive(ctx)
	if err != nil {
		return 0, spanErr(span, fmt.Errorf("load active towers: %w", err))
	}

	changed := make([]domain.Tower, 0, len(towers))
	for _, t := range towers {
		before := t.CoverageBoundary
		s.attachBoundary(ctx, &t)
		if !sameRing(before, t.CoverageBoundary) {
			t.UpdatedAt = s.now()
			changed = append(changed, t)
		}
	}
	if len(changed) > 0 {
		if _, err := s.towers.SaveBatch(ctx, changed); err != nil {
			return 0, spanErr(span, fmt.Errorf("save rebuilt towers: %w", err))
		}
		s.index.Add(changed...)
	}

	span.SetAttributes(telemetry.AttrTowersRebuilt.Int(len(changed)))
	slog.InfoContext(ctx, "coverage boundaries rebuilt", "checked", len(towers), "rewritten", len(changed))
	if len(changed) > 0 {
		s.publish(ctx, EventRebuilt, nil, len(changed))
	}
	return len(changed), nil
}

// CoverageCollection renders the active towers, optionally limited to box, as
// GeoJSON. Towers with a boundary become polygons, the rest points.
func (s *TowerService) CoverageCollection(ctx context.Context, box *domain.BoundingBox) (*geojson.FeatureCollection, error) {
	towers := s.ListAll(ctx)
	if box != nil {
		var err error
		if towers, err = s.InArea(ctx, *box); err != nil {
			return nil, err
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, t := range towers {
		var g orb.Geometry = orb.Point{t.Center.Lon, t.Center.Lat}
		if len(t.CoverageBoundary) > 0 {
			ring := make(orb.Ring, len(t.CoverageBoundary))
			for i, v := range t.CoverageBoundary {
				ring[i] = orb.Point{v[1], v[0]}
			}
			g = orb.Polygon{ring}
		}

		f := geojson.NewFeature(g)
		f.ID = t.ID
		f.Properties["name"] = t.Name
		f.Properties["tower_type"] = t.TowerType
		f.Properties["signal_strength"] = t.SignalStrength
		f.Properties["coverage_radius_km"] = t.CoverageRadiusKm
		f.Properties["center"] = []float64{t.Center.Lat, t.Center.Lon}
		fc.Append(f)
	}
	return fc, nil
}

// HandleEvent reloads the index when another instance changed the tower set.
func (s *TowerService) HandleEvent(ctx context.Context, event *domain.TowerEvent) error {
	if event.Origin == s.cfg.InstanceID {
		return nil
	}
	n, err := s.Reload(ctx, "event")
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "index reloaded after remote change", "kind", event.Kind, "origin", event.Origin, "towers", n)
	return nil
}

// attachBoundary derives t's boundary. A failed build leaves the boundary nil
// so containment falls back to the radius check.
func (s *TowerService) attachBoundary(ctx context.Context, t *domain.Tower) {
	start := time.Now()
	ring, err := s.builder.BoundaryFor(t)
	metrics.BoundaryBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "degenerate"
		switch {
		case errors.Is(err, coverage.ErrInvalidCenter):
			reason = "invalid_center"
		case errors.Is(err, coverage.ErrInvalidRadius):
			reason = "invalid_radius"
		}
		metrics.BoundariesDegenerate.WithLabelValues(reason).Inc()
		slog.WarnContext(ctx, "coverage boundary dropped, using radius fallback", "id", t.ID, "error", err)
		t.CoverageBoundary = nil
		return
	}
	metrics.BoundariesBuilt.Inc()
	t.CoverageBoundary = ring
}

func (s *TowerService) publish(ctx context.Context, kind string, ids []string, count int) {
	if s.events == nil {
		return
	}
	event := &domain.TowerEvent{
		Kind:     kind,
		TowerIDs: ids,
		Count:    count,
		Origin:   s.cfg.InstanceID,
		Time:     s.now(),
	}
	if err := s.events.PublishTowerEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "publish tower event failed", "kind", kind, "error", err)
		return
	}
	if data, err := json.Marshal(event); err == nil {
		_ = s.events.PublishBroadcast(ctx, data)
	}
}

// cacheKey scopes keys to this instance and index version so a mutation
// invalidates every cached answer at once.
func (s *TowerService) cacheKey(op, args string) string {
	return fmt.Sprintf("towers:%s:v%d:%s:%s", s.cfg.InstanceID, s.index.Version(), op, args)
}

// floatArgs joins vs in their shortest exact form. Rounding would let
// distinct queries share a cached answer.
func floatArgs(vs ...float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ":")
}

func (s *TowerService) cacheGet(ctx context.Context, op, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err == nil && json.Unmarshal(data, dst) == nil {
		metrics.CacheHits.WithLabelValues(op).Inc()
		return true
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return false
}

func (s *TowerService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil || s.cfg.CacheTTLSeconds <= 0 {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, s.cfg.CacheTTLSeconds)
	}
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func sameRing(a, b domain.Ring) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
