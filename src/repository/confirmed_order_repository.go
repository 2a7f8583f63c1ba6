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

// ConfirmedOrderRepository handles the authoritative order rows delivered
// by the remote sync stream.
type ConfirmedOrderRepository struct {
	db *gorm.DB
}

// NewConfirmedOrderRepository creates a new repository instance using the main read/write database.
func NewConfirmedOrderRepository() *ConfirmedOrderRepository {
	return &ConfirmedOrderRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ConfirmedOrderRepository) WithDB(db *gorm.DB) *ConfirmedOrderRepository {
	return &ConfirmedOrderRepository{db: db}
}

// UpsertBatch stores a sync batch of confirmed orders in one transaction.
// Delivery is at-least-once, so rows are upserted by external id: a
// re-delivered order refreshes status fields instead of duplicating.
func (r *ConfirmedOrderRepository) UpsertBatch(
	ctx context.Context,
	orders []model.ConfirmedOrder,
) error {

	if len(orders) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range orders {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"status", "quantity", "limit_price", "updated_at",
				}),
			}).Create(&orders[i]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "ConfirmedOrderRepository",
			"op":    "UpsertBatch",
			"count": len(orders),
		}).WithError(err).Error("Failed to upsert confirmed orders")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "ConfirmedOrderRepository",
		"op":    "UpsertBatch",
		"count": len(orders),
	}).Debug("Confirmed order batch stored")

	return nil
}

// FindByExternalID fetches an order by its upstream id.
// Returns (nil, nil) if the order is not found.
func (r *ConfirmedOrderRepository) FindByExternalID(
	ctx context.Context,
	externalID string,
) (*model.ConfirmedOrder, error) {

	var order model.ConfirmedOrder

	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":        "ConfirmedOrderRepository",
			"op":          "FindByExternalID",
			"external_id": externalID,
		}).WithError(err).Error("Failed to fetch confirmed order")

		return nil, err
	}

	return &order, nil
}

// FindLatest returns the latest confirmed orders ordered from newest to oldest.
func (r *ConfirmedOrderRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.ConfirmedOrder, error) {

	if limit <= 0 {
		limit = 20
	}

	var orders []model.ConfirmedOrder

	err := r.db.WithContext(ctx).
		Order("placed_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "ConfirmedOrderRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest confirmed orders")

		return nil, err
	}

	return orders, nil
}
