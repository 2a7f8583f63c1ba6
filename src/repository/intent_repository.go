package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeassistant/src/database"
	"tradeassistant/src/model"
)

// IntentRepository handles read/write operations for optimistic order
// intents. Intents are client-only rows: the sync stream never sees them.
type IntentRepository struct {
	db *gorm.DB
}

// NewIntentRepository creates a new repository instance using the main read/write database.
func NewIntentRepository() *IntentRepository {
	return &IntentRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *IntentRepository) WithDB(db *gorm.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

// Create inserts a new intent row.
func (r *IntentRepository) Create(
	ctx context.Context,
	intent *model.OrderIntent,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":      "IntentRepository",
		"op":        "Create",
		"intent_id": intent.IntentID,
		"symbol":    intent.Symbol,
		"side":      intent.Side,
	}).Debug("Creating order intent")

	err := r.db.WithContext(ctx).Create(intent).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "IntentRepository",
			"op":        "Create",
			"intent_id": intent.IntentID,
		}).WithError(err).Error("Failed to create order intent")

		return err
	}

	return nil
}

// FindByIntentID fetches a single intent by its generated id.
// Returns (nil, nil) if the intent is not found.
func (r *IntentRepository) FindByIntentID(
	ctx context.Context,
	intentID string,
) (*model.OrderIntent, error) {

	var intent model.OrderIntent

	err := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		First(&intent).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":      "IntentRepository",
			"op":        "FindByIntentID",
			"intent_id": intentID,
		}).WithError(err).Error("Failed to fetch intent")

		return nil, err
	}

	return &intent, nil
}

// FindPending returns all pending intents, oldest first. The ordering is
// load-bearing: ambiguous reconciliation matches resolve to the earliest
// created intent.
func (r *IntentRepository) FindPending(
	ctx context.Context,
) ([]model.OrderIntent, error) {

	var intents []model.OrderIntent

	err := r.db.WithContext(ctx).
		Where("status = ?", model.IntentStatusPending).
		Order("created_at ASC, id ASC").
		Find(&intents).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "IntentRepository",
			"op":   "FindPending",
		}).WithError(err).Error("Failed to fetch pending intents")

		return nil, err
	}

	return intents, nil
}

// Update persists changed fields of an existing intent.
func (r *IntentRepository) Update(
	ctx context.Context,
	intent *model.OrderIntent,
) error {

	err := r.db.WithContext(ctx).Save(intent).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "IntentRepository",
			"op":        "Update",
			"intent_id": intent.IntentID,
		}).WithError(err).Error("Failed to update intent")

		return err
	}

	return nil
}

// DeleteByIntentID removes an intent row, either because it reconciled
// against a confirmed order or because the caller abandoned it.
func (r *IntentRepository) DeleteByIntentID(
	ctx context.Context,
	intentID string,
) error {

	err := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Delete(&model.OrderIntent{}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "IntentRepository",
			"op":        "DeleteByIntentID",
			"intent_id": intentID,
		}).WithError(err).Error("Failed to delete intent")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "IntentRepository",
		"op":        "DeleteByIntentID",
		"intent_id": intentID,
	}).Debug("Intent deleted")

	return nil
}

// DeleteOlderThan purges pending intents created before the cutoff.
// Returns the number of purged rows.
func (r *IntentRepository) DeleteOlderThan(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {

	result := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.IntentStatusPending, cutoff).
		Delete(&model.OrderIntent{})

	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "IntentRepository",
			"op":     "DeleteOlderThan",
			"cutoff": cutoff,
		}).WithError(result.Error).Error("Failed to purge expired intents")

		return 0, result.Error
	}

	return result.RowsAffected, nil
}
