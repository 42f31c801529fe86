package repository

import (
	"context"
	"errors"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StorageEntryRepository interface {
	// FindByKey returns gorm.ErrRecordNotFound when the key was never written.
	FindByKey(ctx context.Context, origin, key string) (*model.StorageEntry, error)
	Upsert(ctx context.Context, entry *model.StorageEntry) error
	Delete(ctx context.Context, origin, key string) error
	ListKeys(ctx context.Context, origin string) ([]string, error)
}

type storageEntryRepository struct {
	db *gorm.DB
}

func NewStorageEntryRepository(db *gorm.DB) StorageEntryRepository {
	return &storageEntryRepository{db: db}
}

func (r *storageEntryRepository) FindByKey(ctx context.Context, origin, key string) (*model.StorageEntry, error) {
	var entry model.StorageEntry
	err := r.db.WithContext(ctx).
		Where("origin = ? AND key = ?", origin, key).
		First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find storage entry in database", err, map[string]interface{}{
				"origin": origin,
				"key":    key,
			})
		}
		return nil, err
	}
	return &entry, nil
}

// Upsert writes the entry, replacing the value of an existing key
func (r *storageEntryRepository) Upsert(ctx context.Context, entry *model.StorageEntry) error {
	logger.Debug("Writing storage entry to database", map[string]interface{}{
		"origin": entry.Origin,
		"key":    entry.Key,
		"size":   len(entry.Value),
	})

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "origin"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		logger.Error("Failed to write storage entry to database", err, map[string]interface{}{
			"origin": entry.Origin,
			"key":    entry.Key,
		})
		return err
	}
	return nil
}

func (r *storageEntryRepository) Delete(ctx context.Context, origin, key string) error {
	logger.Debug("Deleting storage entry from database", map[string]interface{}{
		"origin": origin,
		"key":    key,
	})

	if err := r.db.WithContext(ctx).
		Where("origin = ? AND key = ?", origin, key).
		Delete(&model.StorageEntry{}).Error; err != nil {
		logger.Error("Failed to delete storage entry from database", err, map[string]interface{}{
			"origin": origin,
			"key":    key,
		})
		return err
	}
	return nil
}

func (r *storageEntryRepository) ListKeys(ctx context.Context, origin string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).
		Model(&model.StorageEntry{}).
		Where("origin = ?", origin).
		Order("key").
		Pluck("key", &keys).Error
	if err != nil {
		logger.Error("Failed to list storage keys in database", err, map[string]interface{}{
			"origin": origin,
		})
		return nil, err
	}
	return keys, nil
}
