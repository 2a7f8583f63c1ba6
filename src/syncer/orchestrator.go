package syncer

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeassistant/src/connectors"
	"tradeassistant/src/health"
	"tradeassistant/src/ledger"
	"tradeassistant/src/model"
	"tradeassistant/src/repository"
)

// Orchestrator feeds sync-stream batches into the ledger core. Within one
// batch the application order is fixed: executions first, then corporate
// actions, then intent reconciliation. Re-delivery and reordering across
// batches are absorbed by the idempotence guards underneath.
type Orchestrator struct {
	accountant *ledger.PositionAccountant
	intents    *ledger.OrderIntentLedger
	orders     *repository.ConfirmedOrderRepository
	actions    *repository.CorporateActionRepository
	monitor    *health.Monitor
	stream     *connectors.SyncStream
	log        *logger.Entry
}

func NewOrchestrator(
	db *gorm.DB,
	monitor *health.Monitor,
	stream *connectors.SyncStream,
) *Orchestrator {
	return &Orchestrator{
		accountant: ledger.NewPositionAccountant(db),
		intents:    ledger.NewOrderIntentLedger(db),
		orders:     repository.NewConfirmedOrderRepository().WithDB(db),
		actions:    repository.NewCorporateActionRepository().WithDB(db),
		monitor:    monitor,
		stream:     stream,
		log:        logger.WithField("component", "SyncOrchestrator"),
	}
}

// Accountant exposes the position accountant for read-side wiring.
func (o *Orchestrator) Accountant() *ledger.PositionAccountant {
	return o.accountant
}

// Intents exposes the intent ledger for the UI surface.
func (o *Orchestrator) Intents() *ledger.OrderIntentLedger {
	return o.intents
}

// Run checks bridge health once up front, then consumes stream batches
// until ctx is canceled. A housekeeping tick sweeps expired intents and
// replays stored-but-unprocessed corporate actions between batches.
func (o *Orchestrator) Run(ctx context.Context) error {
	config := GetConfig()

	state := o.monitor.PerformCheck(ctx, false)
	o.log.WithField("bridge_status", state.Status).Info("sync loop starting")

	batches := make(chan connectors.SyncBatch, 8)

	go func() {
		if err := o.stream.Run(ctx, batches); err != nil && ctx.Err() == nil {
			o.log.WithError(err).Error("sync stream terminated")
		}
	}()

	ticker := time.NewTicker(config.SweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info("sync loop stopped")
			return nil

		case batch := <-batches:
			if err := o.ApplyBatch(ctx, batch); err != nil {
				o.log.WithError(err).Error("failed to apply sync batch")
			}

		case <-ticker.C:
			if err := o.housekeep(ctx); err != nil {
				o.log.WithError(err).Error("housekeeping pass failed")
			}
		}
	}
}

// ApplyBatch folds one delivered batch into the local ledger.
func (o *Orchestrator) ApplyBatch(ctx context.Context, batch connectors.SyncBatch) error {
	o.log.WithFields(logger.Fields{
		"trades":  len(batch.Trades),
		"orders":  len(batch.Orders),
		"actions": len(batch.Actions),
	}).Debug("applying sync batch")

	for i := range batch.Trades {
		if err := o.accountant.ApplyExecution(ctx, &batch.Trades[i]); err != nil {
			return err
		}
	}

	if err := o.actions.StoreBatch(ctx, batch.Actions); err != nil {
		return err
	}
	if err := o.applyPendingActions(ctx); err != nil {
		return err
	}

	if err := o.orders.UpsertBatch(ctx, batch.Orders); err != nil {
		return err
	}

	return o.intents.Reconcile(ctx, batch.Orders)
}

// applyPendingActions replays every stored corporate action that has not
// been processed yet. Future-dated splits stay pending until effective.
func (o *Orchestrator) applyPendingActions(ctx context.Context) error {
	pending, err := o.actions.FindUnprocessed(ctx)
	if err != nil {
		return err
	}

	for i := range pending {
		if err := o.accountant.ApplyCorporateAction(ctx, &pending[i]); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) housekeep(ctx context.Context) error {
	if err := o.applyPendingActions(ctx); err != nil {
		return err
	}

	// An empty batch drives only the TTL sweep: nothing matches, expired
	// intents are purged.
	return o.intents.Reconcile(ctx, []model.ConfirmedOrder{})
}
