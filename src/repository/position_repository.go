package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeassistant/src/database"
	"tradeassistant/src/model"
)

// PositionRepository handles read/write operations for equity and option
// position aggregates. All mutation goes through the PositionAccountant;
// handlers use this repository for reads only.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindBySymbol fetches the equity position for a symbol.
// Returns (nil, nil) if no position is open.
func (r *PositionRepository) FindBySymbol(
	ctx context.Context,
	symbol string,
) (*model.Position, error) {

	var position model.Position

	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "FindBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch position")

		return nil, err
	}

	return &position, nil
}

// ListAll returns every open equity position ordered by symbol.
func (r *PositionRepository) ListAll(
	ctx context.Context,
) ([]model.Position, error) {

	var positions []model.Position

	err := r.db.WithContext(ctx).
		Order("symbol ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "ListAll",
		}).WithError(err).Error("Failed to list positions")

		return nil, err
	}

	return positions, nil
}

// FindOptionContract fetches the option position for an exact contract
// identity. Returns (nil, nil) if the contract is not held.
func (r *PositionRepository) FindOptionContract(
	ctx context.Context,
	symbol string,
	strike float64,
	expiration string,
	right string,
) (*model.OptionPosition, error) {

	var position model.OptionPosition

	err := r.db.WithContext(ctx).
		Where("symbol = ? AND strike = ? AND expiration = ? AND contract_right = ?",
			symbol, strike, expiration, right).
		First(&position).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "FindOptionContract",
			"symbol": symbol,
			"strike": strike,
		}).WithError(err).Error("Failed to fetch option position")

		return nil, err
	}

	return &position, nil
}

// ListOptions returns every open option position ordered by symbol then expiration.
func (r *PositionRepository) ListOptions(
	ctx context.Context,
) ([]model.OptionPosition, error) {

	var positions []model.OptionPosition

	err := r.db.WithContext(ctx).
		Order("symbol ASC, expiration ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "ListOptions",
		}).WithError(err).Error("Failed to list option positions")

		return nil, err
	}

	return positions, nil
}

// ListOptionsByUnderlying returns the option legs sharing one underlying.
func (r *PositionRepository) ListOptionsByUnderlying(
	ctx context.Context,
	symbol string,
) ([]model.OptionPosition, error) {

	var positions []model.OptionPosition

	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("expiration ASC, strike ASC").
		Find(&positions).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "ListOptionsByUnderlying",
			"symbol": symbol,
		}).WithError(err).Error("Failed to list option legs")

		return nil, err
	}

	return positions, nil
}
