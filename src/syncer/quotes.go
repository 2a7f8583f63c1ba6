package syncer

import (
	"context"
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"

	"tradeassistant/src/cache"
	"tradeassistant/src/connectors"
	"tradeassistant/src/health"
	"tradeassistant/src/ledger"
)

// QuoteService is the read-through path between market-data consumers and
// the rate-limited bridge: cache tiers first, then one bridge fetch, and
// stale data only when the caller opts in while the bridge is down.
type QuoteService struct {
	cache      *cache.TieredCache
	bridge     *connectors.BridgeClient
	monitor    *health.Monitor
	accountant *ledger.PositionAccountant
	log        *logger.Entry
}

func NewQuoteService(
	tiered *cache.TieredCache,
	bridge *connectors.BridgeClient,
	monitor *health.Monitor,
	accountant *ledger.PositionAccountant,
) *QuoteService {
	return &QuoteService{
		cache:      tiered,
		bridge:     bridge,
		monitor:    monitor,
		accountant: accountant,
		log:        logger.WithField("component", "QuoteService"),
	}
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}

// GetQuote serves a quote from the freshest available tier, fetching from
// the bridge only on a full miss and only when the bridge is not offline.
// When the bridge is unreachable, allowStale turns an expired entry into a
// degraded answer instead of a failure.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string, allowStale bool) (*connectors.Quote, *cache.Result, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := quoteKey(symbol)

	if hit, ok := s.cache.Get(ctx, key, cache.GetOptions{}); ok {
		var quote connectors.Quote
		if err := hit.Decode(&quote); err == nil {
			return &quote, hit, nil
		}
	}

	if s.monitor.State().Status != health.StatusOffline {
		quote, err := s.bridge.FetchQuote(ctx, symbol)
		if err == nil {
			s.storeQuote(ctx, key, symbol, quote)
			if err := s.accountant.UpdateMarketPrice(ctx, symbol, quote.Last); err != nil {
				s.log.WithError(err).WithField("symbol", symbol).Warn("failed to refresh position price")
			}
			return quote, nil, nil
		}
		s.log.WithError(err).WithField("symbol", symbol).Warn("bridge quote fetch failed")
	}

	if allowStale {
		if hit, ok := s.cache.Get(ctx, key, cache.GetOptions{AllowStale: true}); ok {
			var quote connectors.Quote
			if err := hit.Decode(&quote); err == nil {
				return &quote, hit, nil
			}
		}
	}

	return nil, nil, fmt.Errorf("no quote available for %s", symbol)
}

// storeQuote writes the fresh quote to the hot tier and refreshes the warm
// tier so the next process start still has something recent.
func (s *QuoteService) storeQuote(ctx context.Context, key, symbol string, quote *connectors.Quote) {
	hotOpts := cache.SetOptions{
		Tier:     cache.TierHot,
		Source:   "bridge",
		Symbol:   symbol,
		Category: "quote",
	}
	if err := s.cache.Set(ctx, key, quote, hotOpts); err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("failed to cache quote in hot tier")
	}

	warmOpts := hotOpts
	warmOpts.Tier = cache.TierWarm
	if err := s.cache.Set(ctx, key, quote, warmOpts); err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("failed to cache quote in warm tier")
	}
}
