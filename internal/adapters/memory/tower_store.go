// Package memory keeps towers in process memory. It backs tests and the
// store.driver=memory setting; data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/towerlocator/internal/core/domain"
)

// TowerStore implements ports.TowerRepository with a map and an insertion-order slice.
type TowerStore struct {
	mu     sync.RWMutex
	towers map[string]domain.Tower
	order  []string
}

// NewTowerStore returns an empty store.
func NewTowerStore() *TowerStore {
	return &TowerStore{towers: make(map[string]domain.Tower)}
}

func clone(t domain.Tower) domain.Tower {
	if t.CoverageBoundary != nil {
		t.CoverageBoundary = append(domain.Ring(nil), t.CoverageBoundary...)
	}
	return t
}

func (s *TowerStore) put(t domain.Tower) domain.Tower {
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
	if _, ok := s.towers[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.towers[t.ID] = clone(t)
	return clone(t)
}

func (s *TowerStore) Save(ctx context.Context, t *domain.Tower) (*domain.Tower, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.put(*t)
	return &out, nil
}

func (s *TowerStore) SaveBatch(ctx context.Context, towers []domain.Tower) ([]domain.Tower, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Tower, len(towers))
	for i, t := range towers {
		out[i] = s.put(t)
	}
	return out, nil
}

func (s *TowerStore) GetByID(ctx context.Context, id string) (*domain.Tower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.towers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clone(t)
	return &out, nil
}

func (s *TowerStore) LoadActive(ctx context.Context) ([]domain.Tower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Tower, 0, len(s.order))
	for _, id := range s.order {
		if t := s.towers[id]; t.IsActive {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (s *TowerStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.towers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.towers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *TowerStore) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.towers)
	s.towers = make(map[string]domain.Tower)
	s.order = nil
	return n, nil
}

func (s *TowerStore) Ping(ctx context.Context) error { return nil }
