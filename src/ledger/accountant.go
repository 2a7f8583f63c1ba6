package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeassistant/src/model"
	"tradeassistant/src/utils"
)

// PositionAccountant folds trade executions and corporate actions into the
// position book. Every mutation commits as one transaction so no reader
// observes a partially updated book, and every entry point is idempotent:
// re-delivered executions and actions are absorbed silently.
type PositionAccountant struct {
	db  *gorm.DB
	log *logger.Entry
	now func() time.Time
}

func NewPositionAccountant(db *gorm.DB) *PositionAccountant {
	return &PositionAccountant{
		db:  db,
		log: logger.WithField("component", "PositionAccountant"),
		now: time.Now,
	}
}

// WithClock overrides the accountant's clock.
// Useful for tests exercising effective-date behavior.
func (a *PositionAccountant) WithClock(now func() time.Time) *PositionAccountant {
	clone := *a
	clone.now = now
	return &clone
}

// ApplyExecution records one execution and folds it into the equity or
// option aggregate. A trade whose exec id is already stored is a no-op.
func (a *PositionAccountant) ApplyExecution(ctx context.Context, trade *model.Trade) error {
	if trade.ExecID == "" {
		a.log.Warn("execution without exec id ignored")
		return nil
	}
	if !utils.IsFinite(trade.Quantity) || !utils.IsFinite(trade.Price) || trade.Quantity <= 0 {
		a.log.WithFields(logger.Fields{
			"exec_id": trade.ExecID,
			"symbol":  trade.Symbol,
		}).Warn("execution with malformed quantity/price ignored")
		return nil
	}

	side := strings.ToUpper(strings.TrimSpace(trade.Side))
	if side != model.TradeSideBuy && side != model.TradeSideSell {
		a.log.WithFields(logger.Fields{
			"exec_id": trade.ExecID,
			"side":    trade.Side,
		}).Warn("execution with unknown side ignored")
		return nil
	}
	trade.Side = side
	trade.Symbol = strings.ToUpper(strings.TrimSpace(trade.Symbol))
	if trade.Expiration != nil {
		normalized := utils.NormalizeExpiration(*trade.Expiration)
		trade.Expiration = &normalized
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Trade
		err := tx.Where("exec_id = ?", trade.ExecID).First(&existing).Error
		if err == nil {
			a.log.WithField("exec_id", trade.ExecID).Debug("duplicate execution absorbed")
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(trade).Error; err != nil {
			return err
		}

		if trade.IsOption() {
			if err := a.applyOptionExecution(tx, trade); err != nil {
				return err
			}
		} else {
			if err := a.applyEquityExecution(tx, trade); err != nil {
				return err
			}
		}

		return a.refreshWheelAnnotations(tx, trade.Symbol)
	})
}

func (a *PositionAccountant) applyEquityExecution(tx *gorm.DB, trade *model.Trade) error {
	var position model.Position
	err := tx.Where("symbol = ?", trade.Symbol).First(&position).Error
	notFound := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !notFound {
		return err
	}

	if notFound {
		position = model.Position{Symbol: trade.Symbol}
	}

	newQty, newAvg := foldLot(position.Quantity, position.AverageCost, trade.SignedQuantity(), trade.Price)

	if newQty == 0 {
		if notFound {
			return nil
		}
		// A closed equity row survives only while open option legs still
		// reference the underlying.
		var legs int64
		if err := tx.Model(&model.OptionPosition{}).
			Where("symbol = ?", trade.Symbol).
			Count(&legs).Error; err != nil {
			return err
		}
		if legs == 0 {
			return tx.Delete(&position).Error
		}
	}

	position.Quantity = newQty
	position.AverageCost = newAvg
	position.CurrentPrice = trade.Price
	recomputePosition(&position)

	return tx.Save(&position).Error
}

func (a *PositionAccountant) applyOptionExecution(tx *gorm.DB, trade *model.Trade) error {
	expiration := utils.NormalizeExpiration(*trade.Expiration)

	var position model.OptionPosition
	err := tx.Where("symbol = ? AND strike = ? AND expiration = ? AND contract_right = ?",
		trade.Symbol, *trade.Strike, expiration, *trade.Right).
		First(&position).Error
	notFound := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !notFound {
		return err
	}

	if notFound {
		position = model.OptionPosition{
			Symbol:     trade.Symbol,
			Strike:     *trade.Strike,
			Expiration: expiration,
			Right:      *trade.Right,
			Multiplier: trade.OptionMultiplier(),
		}
	}

	newQty, newAvg := foldLot(position.Quantity, position.AverageCost, trade.SignedQuantity(), trade.Price)

	if newQty == 0 {
		if notFound {
			return nil
		}
		return tx.Delete(&position).Error
	}

	position.Quantity = newQty
	position.AverageCost = newAvg
	position.CurrentPrice = trade.Price
	recomputeOptionPosition(&position)

	return tx.Save(&position).Error
}

// foldLot applies one signed execution to an open lot.
//   - extension (same direction): weighted-average cost
//   - reduction: residual keeps the prior average cost
//   - flip: residual basis resets to the execution price
func foldLot(oldQty, oldAvg, tradeQty, price float64) (float64, float64) {
	dOldQty := decimal.NewFromFloat(oldQty)
	dTradeQty := decimal.NewFromFloat(tradeQty)
	newQty := dOldQty.Add(dTradeQty)

	switch {
	case dOldQty.IsZero():
		return mustFloat(newQty), price
	case dOldQty.Sign() == dTradeQty.Sign():
		oldCost := decimal.NewFromFloat(oldAvg).Mul(dOldQty.Abs())
		addCost := decimal.NewFromFloat(price).Mul(dTradeQty.Abs())
		avg := oldCost.Add(addCost).Div(newQty.Abs())
		return mustFloat(newQty), mustFloat(avg)
	case newQty.IsZero():
		return 0, 0
	case newQty.Sign() == dOldQty.Sign():
		return mustFloat(newQty), oldAvg
	default:
		return mustFloat(newQty), price
	}
}

// ApplyCorporateAction rescales the book for a stock split. Only splits
// with a usable ratio and an effective date not in the future are applied;
// the processed_at marker makes application exactly-once. The equity row
// and every option leg on the underlying commit in a single transaction.
func (a *PositionAccountant) ApplyCorporateAction(ctx context.Context, action *model.CorporateAction) error {
	if action.Type != model.CorporateActionSplit {
		a.log.WithFields(logger.Fields{
			"action_id": action.ActionID,
			"type":      action.Type,
		}).Debug("non-split corporate action ignored")
		return nil
	}
	if action.EffectiveAt.After(a.now()) {
		// Not effective yet; the next sync cycle picks it up again.
		return nil
	}

	ratioOK := utils.IsFinite(action.Ratio) && action.Ratio > 0 && action.Ratio != 1

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored model.CorporateAction
		err := tx.Where("action_id = ?", action.ActionID).First(&stored).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				stored = *action
				if createErr := tx.Create(&stored).Error; createErr != nil {
					return createErr
				}
			} else {
				return err
			}
		}
		if stored.ProcessedAt != nil {
			a.log.WithField("action_id", action.ActionID).Debug("duplicate corporate action absorbed")
			return nil
		}

		symbol := strings.ToUpper(strings.TrimSpace(stored.Symbol))

		if ratioOK {
			applied, err := a.rescaleBook(tx, symbol, stored.Ratio)
			if err != nil {
				return err
			}
			if !applied {
				// No position to adjust. Marked processed anyway so the
				// action does not re-fire on every sync; see DESIGN.md.
				a.log.WithFields(logger.Fields{
					"action_id": stored.ActionID,
					"symbol":    symbol,
				}).Warn("split for unknown symbol marked processed without adjustment")
			}
		} else {
			a.log.WithFields(logger.Fields{
				"action_id": stored.ActionID,
				"ratio":     stored.Ratio,
			}).Warn("split with unusable ratio left book unchanged")
		}

		now := a.now()
		return tx.Model(&model.CorporateAction{}).
			Where("action_id = ?", stored.ActionID).
			Update("processed_at", &now).Error
	})
}

// rescaleBook applies the split ratio to the equity row and all option
// legs on the underlying. Cost basis is invariant: quantity scales by the
// ratio while per-unit cost divides by it.
func (a *PositionAccountant) rescaleBook(tx *gorm.DB, symbol string, ratio float64) (bool, error) {
	dRatio := decimal.NewFromFloat(ratio)
	applied := false

	var position model.Position
	err := tx.Where("symbol = ?", symbol).First(&position).Error
	if err == nil {
		// Quantity scales up, per-share cost scales down; the quoted
		// price is left to the next market-data refresh.
		position.Quantity = mustFloat(decimal.NewFromFloat(position.Quantity).Mul(dRatio))
		position.AverageCost = mustFloat(decimal.NewFromFloat(position.AverageCost).Div(dRatio))
		recomputePosition(&position)
		if err := tx.Save(&position).Error; err != nil {
			return false, err
		}
		applied = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	var legs []model.OptionPosition
	if err := tx.Where("symbol = ?", symbol).Find(&legs).Error; err != nil {
		return false, err
	}

	for i := range legs {
		leg := &legs[i]
		leg.Strike = mustFloat(decimal.NewFromFloat(leg.Strike).Div(dRatio))
		leg.Multiplier = mustFloat(decimal.NewFromFloat(leg.Multiplier).Mul(dRatio))
		leg.AverageCost = mustFloat(decimal.NewFromFloat(leg.AverageCost).Div(dRatio))
		leg.CurrentPrice = mustFloat(decimal.NewFromFloat(leg.CurrentPrice).Div(dRatio))
		recomputeOptionPosition(leg)
		if err := tx.Save(leg).Error; err != nil {
			return false, err
		}
		applied = true
	}

	return applied, nil
}

// UpdateMarketPrice refreshes the quoted price on an equity row and its
// derived market value. Non-finite quotes leave the row unchanged.
func (a *PositionAccountant) UpdateMarketPrice(ctx context.Context, symbol string, price float64) error {
	if !utils.IsFinite(price) || price < 0 {
		a.log.WithField("symbol", symbol).Warn("malformed quote ignored")
		return nil
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var position model.Position
		err := tx.Where("symbol = ?", symbol).First(&position).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		position.CurrentPrice = price
		recomputePosition(&position)
		return tx.Save(&position).Error
	})
}

// refreshWheelAnnotations recomputes the covered-call / cash-secured-put
// markers on the equity row after a book mutation: a short call with at
// least 100 underlying shares marks the row covered-call, a short put
// marks it cash-secured-put.
func (a *PositionAccountant) refreshWheelAnnotations(tx *gorm.DB, symbol string) error {
	var position model.Position
	err := tx.Where("symbol = ?", symbol).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	var legs []model.OptionPosition
	if err := tx.Where("symbol = ?", symbol).Find(&legs).Error; err != nil {
		return err
	}

	position.CoveredCallStrike = nil
	position.CoveredCallPremium = nil
	position.PutStrike = nil
	position.PutPremium = nil

	for i := range legs {
		leg := legs[i]
		if leg.Quantity >= 0 {
			continue
		}
		switch leg.Right {
		case model.OptionRightCall:
			if position.Quantity >= 100 && position.CoveredCallStrike == nil {
				strike, premium := leg.Strike, leg.AverageCost
				position.CoveredCallStrike = &strike
				position.CoveredCallPremium = &premium
			}
		case model.OptionRightPut:
			if position.PutStrike == nil {
				strike, premium := leg.Strike, leg.AverageCost
				position.PutStrike = &strike
				position.PutPremium = &premium
			}
		}
	}

	return tx.Save(&position).Error
}

func recomputePosition(p *model.Position) {
	qty := decimal.NewFromFloat(p.Quantity)
	p.CostBasis = mustFloat(decimal.NewFromFloat(p.AverageCost).Mul(qty))
	p.MarketValue = mustFloat(decimal.NewFromFloat(p.CurrentPrice).Mul(qty))
}

func recomputeOptionPosition(p *model.OptionPosition) {
	scale := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(p.Multiplier))
	p.CostBasis = mustFloat(decimal.NewFromFloat(p.AverageCost).Mul(scale))
	p.MarketValue = mustFloat(decimal.NewFromFloat(p.CurrentPrice).Mul(scale))
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
