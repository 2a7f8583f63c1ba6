package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeassistant/src/database"
	"tradeassistant/src/model"
)

// CorporateActionRepository stores corporate actions delivered by the sync
// stream. Re-delivered actions are absorbed by the action-id unique index;
// the processed_at marker is owned by the PositionAccountant.
type CorporateActionRepository struct {
	db *gorm.DB
}

// NewCorporateActionRepository creates a new repository instance using the main read/write database.
func NewCorporateActionRepository() *CorporateActionRepository {
	return &CorporateActionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *CorporateActionRepository) WithDB(db *gorm.DB) *CorporateActionRepository {
	return &CorporateActionRepository{db: db}
}

// StoreBatch inserts newly delivered actions, ignoring ones already stored.
// A duplicate never resets an existing processed_at marker.
func (r *CorporateActionRepository) StoreBatch(
	ctx context.Context,
	actions []model.CorporateAction,
) error {

	if len(actions) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range actions {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "action_id"}},
				DoNothing: true,
			}).Create(&actions[i]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "CorporateActionRepository",
			"op":    "StoreBatch",
			"count": len(actions),
		}).WithError(err).Error("Failed to store corporate actions")

		return err
	}

	return nil
}

// FindUnprocessed returns stored actions that have not been applied yet,
// oldest effective date first.
func (r *CorporateActionRepository) FindUnprocessed(
	ctx context.Context,
) ([]model.CorporateAction, error) {

	var actions []model.CorporateAction

	err := r.db.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("effective_at ASC, id ASC").
		Find(&actions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CorporateActionRepository",
			"op":   "FindUnprocessed",
		}).WithError(err).Error("Failed to fetch unprocessed corporate actions")

		return nil, err
	}

	return actions, nil
}
