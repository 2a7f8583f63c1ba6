package syncer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradeassistant/src/connectors"
	"tradeassistant/src/database"
	"tradeassistant/src/ledger"
	"tradeassistant/src/model"
	"tradeassistant/src/syncer"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	return db
}

func ptrFloat(v float64) *float64 { return &v }

func TestApplyBatchFoldsTradesOrdersAndActions(t *testing.T) {
	db := newTestDB(t)
	orchestrator := syncer.NewOrchestrator(db, nil, nil)
	ctx := context.Background()

	_, err := orchestrator.Intents().CreateIntent(ctx, ledger.IntentSpec{
		Symbol:     "AVGO",
		Side:       "BUY",
		Quantity:   100,
		LimitPrice: 600,
	})
	require.NoError(t, err)

	batch := connectors.SyncBatch{
		Trades: []model.Trade{{
			ExecID:     "exec-1",
			Symbol:     "AVGO",
			Side:       model.TradeSideBuy,
			Quantity:   100,
			Price:      600,
			ExecutedAt: time.Now(),
		}},
		Orders: []model.ConfirmedOrder{{
			ExternalID: "ext-1",
			Symbol:     "AVGO",
			Side:       "BUY",
			Quantity:   100,
			LimitPrice: ptrFloat(600),
			Status:     model.OrderStatusFilled,
			PlacedAt:   time.Now(),
		}},
		Actions: []model.CorporateAction{{
			ActionID:    "split-1",
			Symbol:      "AVGO",
			Type:        model.CorporateActionSplit,
			Ratio:       2,
			EffectiveAt: time.Now().Add(-time.Hour),
		}},
	}

	require.NoError(t, orchestrator.ApplyBatch(ctx, batch))

	// The trade landed and the same-batch split rescaled it.
	var position model.Position
	require.NoError(t, db.Where("symbol = ?", "AVGO").First(&position).Error)
	require.InDelta(t, 200, position.Quantity, 1e-9)
	require.InDelta(t, 300, position.AverageCost, 1e-9)

	// The confirmed order was stored and reconciled the pending intent away.
	var orderCount int64
	require.NoError(t, db.Model(&model.ConfirmedOrder{}).Count(&orderCount).Error)
	require.EqualValues(t, 1, orderCount)

	pending, err := orchestrator.Intents().ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestApplyBatchIsSafeToReplay(t *testing.T) {
	db := newTestDB(t)
	orchestrator := syncer.NewOrchestrator(db, nil, nil)
	ctx := context.Background()

	batch := connectors.SyncBatch{
		Trades: []model.Trade{{
			ExecID:     "exec-1",
			Symbol:     "NVDA",
			Side:       model.TradeSideBuy,
			Quantity:   10,
			Price:      500,
			ExecutedAt: time.Now(),
		}},
		Actions: []model.CorporateAction{{
			ActionID:    "split-1",
			Symbol:      "NVDA",
			Type:        model.CorporateActionSplit,
			Ratio:       10,
			EffectiveAt: time.Now().Add(-time.Hour),
		}},
	}

	require.NoError(t, orchestrator.ApplyBatch(ctx, batch))

	// At-least-once delivery: the identical batch arrives again. Gorm has
	// assigned row ids during the first pass, so rebuild the value.
	replay := connectors.SyncBatch{
		Trades: []model.Trade{{
			ExecID:     "exec-1",
			Symbol:     "NVDA",
			Side:       model.TradeSideBuy,
			Quantity:   10,
			Price:      500,
			ExecutedAt: time.Now(),
		}},
		Actions: []model.CorporateAction{{
			ActionID:    "split-1",
			Symbol:      "NVDA",
			Type:        model.CorporateActionSplit,
			Ratio:       10,
			EffectiveAt: time.Now().Add(-time.Hour),
		}},
	}
	require.NoError(t, orchestrator.ApplyBatch(ctx, replay))

	var position model.Position
	require.NoError(t, db.Where("symbol = ?", "NVDA").First(&position).Error)
	require.InDelta(t, 100, position.Quantity, 1e-9)
	require.InDelta(t, 50, position.AverageCost, 1e-9)
}

func TestApplyBatchHoldsFutureDatedSplit(t *testing.T) {
	db := newTestDB(t)
	orchestrator := syncer.NewOrchestrator(db, nil, nil)
	ctx := context.Background()

	batch := connectors.SyncBatch{
		Trades: []model.Trade{{
			ExecID:     "exec-1",
			Symbol:     "TSLA",
			Side:       model.TradeSideBuy,
			Quantity:   50,
			Price:      200,
			ExecutedAt: time.Now(),
		}},
		Actions: []model.CorporateAction{{
			ActionID:    "split-future",
			Symbol:      "TSLA",
			Type:        model.CorporateActionSplit,
			Ratio:       3,
			EffectiveAt: time.Now().Add(24 * time.Hour),
		}},
	}

	require.NoError(t, orchestrator.ApplyBatch(ctx, batch))

	var position model.Position
	require.NoError(t, db.Where("symbol = ?", "TSLA").First(&position).Error)
	require.InDelta(t, 50, position.Quantity, 1e-9)

	// The action is stored, waiting for a later pass.
	var stored model.CorporateAction
	require.NoError(t, db.Where("action_id = ?", "split-future").First(&stored).Error)
	require.Nil(t, stored.ProcessedAt)
}
