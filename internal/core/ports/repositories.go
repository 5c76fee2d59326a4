package ports

import (
	"context"

	"github.com/samirrijal/towerlocator/internal/core/domain"
)

// TowerRepository persists towers together with their derived boundary.
type TowerRepository interface {
	// Save inserts the tower, assigning an ID when empty, or replaces the stored row.
	Save(ctx context.Context, tower *domain.Tower) (*domain.Tower, error)
	// SaveBatch saves all towers atomically.
	SaveBatch(ctx context.Context, towers []domain.Tower) ([]domain.Tower, error)
	GetByID(ctx context.Context, id string) (*domain.Tower, error)
	// LoadActive returns active towers in insertion order.
	LoadActive(ctx context.Context) ([]domain.Tower, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}
