package ledger

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeassistant/src/model"
	"tradeassistant/src/repository"
	"tradeassistant/src/utils"
)

// Pending intents with no confirmed-order match are abandoned after this.
const intentTTL = 15 * time.Minute

// Strikes from different sources may round differently; equality within a
// cent is a match.
const strikeTolerance = 0.01

// OrderIntentLedger manages optimistic client-created order intents and
// reconciles them against authoritative confirmed orders from the sync
// stream. An intent is either reconciled away or TTL-expired, never both.
type OrderIntentLedger struct {
	intents *repository.IntentRepository
	log     *logger.Entry
	now     func() time.Time
}

func NewOrderIntentLedger(db *gorm.DB) *OrderIntentLedger {
	return &OrderIntentLedger{
		intents: repository.NewIntentRepository().WithDB(db),
		log:     logger.WithField("component", "OrderIntentLedger"),
		now:     time.Now,
	}
}

// WithClock overrides the ledger's clock. Useful for TTL tests.
func (l *OrderIntentLedger) WithClock(now func() time.Time) *OrderIntentLedger {
	clone := *l
	clone.now = now
	return &clone
}

// IntentSpec carries the user-initiated order parameters. Option fields are
// optional; absent fields act as wildcards during reconciliation.
type IntentSpec struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Quantity   float64  `json:"quantity"`
	LimitPrice float64  `json:"limit_price"`
	Strike     *float64 `json:"strike,omitempty"`
	Expiration *string  `json:"expiration,omitempty"`
	Right      *string  `json:"right,omitempty"`
}

// CreateIntent writes a new pending intent. This is a pure optimistic local
// write with no network dependency.
func (l *OrderIntentLedger) CreateIntent(ctx context.Context, spec IntentSpec) (string, error) {
	intent := &model.OrderIntent{
		IntentID:   uuid.NewString(),
		Symbol:     strings.ToUpper(strings.TrimSpace(spec.Symbol)),
		Side:       strings.ToUpper(strings.TrimSpace(spec.Side)),
		Quantity:   utils.FiniteOr(spec.Quantity, 0),
		LimitPrice: utils.FiniteOr(spec.LimitPrice, 0),
		Strike:     spec.Strike,
		Right:      spec.Right,
		Status:     model.IntentStatusPending,
		CreatedAt:  l.now(),
	}
	if spec.Expiration != nil {
		normalized := utils.NormalizeExpiration(*spec.Expiration)
		intent.Expiration = &normalized
	}

	if err := l.intents.Create(ctx, intent); err != nil {
		return "", err
	}

	l.log.WithFields(logger.Fields{
		"intent_id": intent.IntentID,
		"symbol":    intent.Symbol,
		"side":      intent.Side,
	}).Info("order intent created")

	return intent.IntentID, nil
}

// RemoveIntent deletes an intent the user abandoned.
func (l *OrderIntentLedger) RemoveIntent(ctx context.Context, intentID string) error {
	return l.intents.DeleteByIntentID(ctx, intentID)
}

// UpdateIntent replaces the mutable fields of a pending intent.
// Returns (false, nil) when the intent no longer exists.
func (l *OrderIntentLedger) UpdateIntent(ctx context.Context, intentID string, spec IntentSpec) (bool, error) {
	intent, err := l.intents.FindByIntentID(ctx, intentID)
	if err != nil {
		return false, err
	}
	if intent == nil {
		return false, nil
	}

	intent.Symbol = strings.ToUpper(strings.TrimSpace(spec.Symbol))
	intent.Side = strings.ToUpper(strings.TrimSpace(spec.Side))
	intent.Quantity = utils.FiniteOr(spec.Quantity, 0)
	intent.LimitPrice = utils.FiniteOr(spec.LimitPrice, 0)
	intent.Strike = spec.Strike
	intent.Right = spec.Right
	intent.Expiration = nil
	if spec.Expiration != nil {
		normalized := utils.NormalizeExpiration(*spec.Expiration)
		intent.Expiration = &normalized
	}

	if err := l.intents.Update(ctx, intent); err != nil {
		return false, err
	}
	return true, nil
}

// ListPending returns the pending intents, oldest first.
func (l *OrderIntentLedger) ListPending(ctx context.Context) ([]model.OrderIntent, error) {
	return l.intents.FindPending(ctx)
}

// Reconcile collapses pending intents against a batch of confirmed orders.
// Intents are visited oldest first, so when several intents satisfy the
// predicate against one order, the earliest-created intent wins. Pending
// intents older than the TTL with no match in the batch are purged as
// abandoned.
func (l *OrderIntentLedger) Reconcile(ctx context.Context, confirmed []model.ConfirmedOrder) error {
	pending, err := l.intents.FindPending(ctx)
	if err != nil {
		return err
	}

	matchedOrders := make(map[string]string, len(confirmed))

	for i := range pending {
		intent := &pending[i]

		var match *model.ConfirmedOrder
		for j := range confirmed {
			if matchesIntent(intent, &confirmed[j]) {
				match = &confirmed[j]
				break
			}
		}

		if match == nil {
			if l.now().Sub(intent.CreatedAt) > intentTTL {
				if err := l.intents.DeleteByIntentID(ctx, intent.IntentID); err != nil {
					return err
				}
				l.log.WithFields(logger.Fields{
					"intent_id": intent.IntentID,
					"symbol":    intent.Symbol,
				}).Info("expired intent purged")
			}
			continue
		}

		if prior, ok := matchedOrders[match.ExternalID]; ok {
			l.log.WithFields(logger.Fields{
				"external_id":  match.ExternalID,
				"intent_id":    intent.IntentID,
				"matched_also": prior,
			}).Warn("ambiguous reconciliation: confirmed order matches multiple intents")
		}
		matchedOrders[match.ExternalID] = intent.IntentID

		if err := l.intents.DeleteByIntentID(ctx, intent.IntentID); err != nil {
			return err
		}

		l.log.WithFields(logger.Fields{
			"intent_id":   intent.IntentID,
			"external_id": match.ExternalID,
			"symbol":      intent.Symbol,
		}).Info("intent reconciled against confirmed order")
	}

	return nil
}

// matchesIntent applies the reconciliation predicate: symbol equality is
// mandatory (case-insensitive); right, strike, and expiration only compare
// when both sides carry them — an absent field is a wildcard, never a
// mismatch.
func matchesIntent(intent *model.OrderIntent, order *model.ConfirmedOrder) bool {
	if !strings.EqualFold(intent.Symbol, order.Symbol) {
		return false
	}

	if intent.Right != nil && order.Right != nil {
		if !strings.EqualFold(*intent.Right, *order.Right) {
			return false
		}
	}

	if intent.Strike != nil && order.Strike != nil {
		if math.Abs(*intent.Strike-*order.Strike) > strikeTolerance {
			return false
		}
	}

	if intent.Expiration != nil && order.Expiration != nil {
		if utils.NormalizeExpiration(*intent.Expiration) != utils.NormalizeExpiration(*order.Expiration) {
			return false
		}
	}

	return true
}
