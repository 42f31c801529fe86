package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"gorm.io/gorm"
)

// GormBackend stores persistent values as rows of storage_entries.
type GormBackend struct {
	repo   repository.StorageEntryRepository
	origin string
}

func NewGormBackend(db *gorm.DB, origin string) *GormBackend {
	return &GormBackend{repo: repository.NewStorageEntryRepository(db), origin: origin}
}

func (g *GormBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := g.repo.FindByKey(ctx, g.origin, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value, true, nil
}

func (g *GormBackend) Set(ctx context.Context, key string, value []byte) error {
	return g.repo.Upsert(ctx, &model.StorageEntry{
		Origin:    g.origin,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	})
}

func (g *GormBackend) Delete(ctx context.Context, key string) error {
	return g.repo.Delete(ctx, g.origin, key)
}

// Keys lists the stored keys of this origin
func (g *GormBackend) Keys(ctx context.Context) ([]string, error) {
	return g.repo.ListKeys(ctx, g.origin)
}
