package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradeassistant/src/ledger"
	"tradeassistant/src/model"
)

func confirmedOrder(externalID, symbol string) model.ConfirmedOrder {
	return model.ConfirmedOrder{
		ExternalID: externalID,
		Symbol:     symbol,
		Side:       "SELL",
		Status:     model.OrderStatusSubmitted,
		PlacedAt:   time.Now(),
	}
}

func TestReconcileMatchesOptionIntent(t *testing.T) {
	db := newTestDB(t)
	intents := ledger.NewOrderIntentLedger(db)
	ctx := context.Background()

	_, err := intents.CreateIntent(ctx, ledger.IntentSpec{
		Symbol:     "msft",
		Side:       "sell",
		Quantity:   1,
		LimitPrice: 4.20,
		Strike:     ptrFloat(400),
		Expiration: ptrString("2026-03-20"),
		Right:      ptrString("P"),
	})
	require.NoError(t, err)

	order := confirmedOrder("ord-1", "MSFT")
	order.Strike = ptrFloat(400)
	order.Expiration = ptrString("20260320")
	order.Right = ptrString("p")

	require.NoError(t, intents.Reconcile(ctx, []model.ConfirmedOrder{order}))

	pending, err := intents.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReconcileDifferentStrikeKeepsIntent(t *testing.T) {
	db := newTestDB(t)
	intents := ledger.NewOrderIntentLedger(db)
	ctx := context.Background()

	_, err := intents.CreateIntent(ctx, ledger.IntentSpec{
		Symbol:     "MSFT",
		Side:       "SELL",
		Quantity:   1,
		LimitPrice: 4.20,
		Strike:     ptrFloat(400),
		Expiration: ptrString("20260320"),
		Right:      ptrString("P"),
	})
	require.NoError(t, err)

	order := confirmedOrder("ord-1", "MSFT")
	order.Strike = ptrFloat(410)
	order.Expiration = ptrString("20260320")
	order.Right = ptrString("P")

	require.NoError(t, intents.Reconcile(ctx, []model.ConfirmedOrder{order}))

	pending, err := intents.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestReconcileAbsentFieldsAreWildcards(t *testing.T) {
	db := newTestDB(t)
	intents := ledger.NewOrderIntentLedger(db)
	ctx := context.Background()

	// Equity intent with no option fields matches an order that carries them.
	_, err := intents.CreateIntent(ctx, ledger.IntentSpec{
		Symbol:     "AAPL",
		Side:       "BUY",
		Quantity:   10,
		LimitPrice: 150,
	})
	require.NoError(t, err)

	order := confirmedOrder("ord-1", "AAPL")
	order.Strike = ptrFloat(155)
	order.Right = ptrString("C")

	require.NoError(t, intents.Reconcile(ctx, []model.ConfirmedOrder{order}))

	pending, err := intents.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReconcileStrikeWithinTolerance(t *testing.T) {
	db := newTestDB(t)
	intents := ledger.NewOrderIntentLedger(db)
	ctx := context.Background()

	_, err := intents.CreateIntent(ctx, ledger.IntentSpec{
		Symbol:   "MSFT",
		Side:     "SELL",
		Quantity: 1,
		Strike:   ptrFloat(400),
	})
	require.NoError(t, err)

	order := confirmedOrder("ord-1", "MSFT")
	order.Strike = ptrFloat(400.005)

	require.NoError(t, intents.Reconcile(ctx, []model.ConfirmedOrder{order}))

	pending, err := intents.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReconcilePurgesExpiredIntents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Now()
	intents := ledger.NewOrderIntentLedger(db).WithClock(func() time.Time { return base })

	_, err := intents.CreateIntent(ctx, ledger.IntentSpec{
		Symbol:   "TSLA",
		Side:     "BUY",
		Quantity: 5,
	})
	require.NoError(t, err)

	// Within the TTL an unmatched intent survives.
	atMinute14 := intents.WithClock(func() time.Time { return base.Add(14 * time.Minute) })
	require.NoError(t, atMinute14.Reconcile(ctx, nil))

	pending, err := intents.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// Past the TTL it is purged as abandoned.
	atMinute16 := intents.WithClock(func() time.Time { return base.Add(16 * time.Minute) })
	require.NoError(t, atMinute16.Reconcile(ctx, nil))

	pending, err = intents.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestUpdateIntentMissingReturnsFalse(t *testing.T) {
	db := newTestDB(t)
	intents := ledger.NewOrderIntentLedger(db)
	ctx := context.Background()

	ok, err := intents.UpdateIntent(ctx, "no-such-intent", ledger.IntentSpec{Symbol: "AAPL", Side: "BUY"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveIntent(t *testing.T) {
	db := newTestDB(t)
	intents := ledger.NewOrderIntentLedger(db)
	ctx := context.Background()

	intentID, err := intents.CreateIntent(ctx, ledger.IntentSpec{
		Symbol:   "AAPL",
		Side:     "BUY",
		Quantity: 10,
	})
	require.NoError(t, err)

	require.NoError(t, intents.RemoveIntent(ctx, intentID))

	pending, err := intents.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}
