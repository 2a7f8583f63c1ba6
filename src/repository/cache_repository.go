package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeassistant/src/database"
	"tradeassistant/src/model"
)

// CacheRepository persists warm/cold cache tiers as rows in the ledger
// database. The hot tier never touches this repository.
type CacheRepository struct {
	db *gorm.DB
}

// NewCacheRepository creates a new repository instance using the main read/write database.
func NewCacheRepository() *CacheRepository {
	return &CacheRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *CacheRepository) WithDB(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// FindByKeyAndTier fetches one cache row.
// Returns (nil, nil) on a miss.
func (r *CacheRepository) FindByKeyAndTier(
	ctx context.Context,
	key string,
	tier string,
) (*model.CacheEntry, error) {

	var entry model.CacheEntry

	err := r.db.WithContext(ctx).
		Where("key = ? AND tier = ?", key, tier).
		First(&entry).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "CacheRepository",
			"op":   "FindByKeyAndTier",
			"key":  key,
			"tier": tier,
		}).WithError(err).Error("Failed to fetch cache entry")

		return nil, err
	}

	return &entry, nil
}

// Upsert writes a cache row, replacing any previous entry for (key, tier).
func (r *CacheRepository) Upsert(
	ctx context.Context,
	entry *model.CacheEntry,
) error {

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}, {Name: "tier"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payload", "source", "symbol", "category", "updated_at", "expires_at",
		}),
	}).Create(entry).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CacheRepository",
			"op":   "Upsert",
			"key":  entry.Key,
			"tier": entry.Tier,
		}).WithError(err).Error("Failed to upsert cache entry")

		return err
	}

	return nil
}

// DeleteByKey removes a key from every persisted tier.
func (r *CacheRepository) DeleteByKey(
	ctx context.Context,
	key string,
) error {

	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&model.CacheEntry{}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CacheRepository",
			"op":   "DeleteByKey",
			"key":  key,
		}).WithError(err).Error("Failed to delete cache entries for key")

		return err
	}

	return nil
}

// DeleteAll empties the persisted tiers.
func (r *CacheRepository) DeleteAll(
	ctx context.Context,
) error {

	err := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&model.CacheEntry{}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CacheRepository",
			"op":   "DeleteAll",
		}).WithError(err).Error("Failed to clear cache entries")

		return err
	}

	return nil
}
