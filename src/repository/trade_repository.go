package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeassistant/src/database"
	"tradeassistant/src/model"
)

// TradeRepository handles read operations over the immutable execution log.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main read/write database.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// FindByExecID fetches a trade by its upstream execution id.
// Returns (nil, nil) if the execution has not been recorded.
func (r *TradeRepository) FindByExecID(
	ctx context.Context,
	execID string,
) (*model.Trade, error) {

	var trade model.Trade

	err := r.db.WithContext(ctx).
		Where("exec_id = ?", execID).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "FindByExecID",
			"exec_id": execID,
		}).WithError(err).Error("Failed to fetch trade by exec id")

		return nil, err
	}

	return &trade, nil
}

// FindLatest returns the latest executions ordered from newest to oldest.
func (r *TradeRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.Trade, error) {

	if limit <= 0 {
		limit = 50
	}

	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Order("executed_at DESC, id DESC").
		Limit(limit).
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "TradeRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest trades")

		return nil, err
	}

	return trades, nil
}
