package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradeassistant/src/cache"
	"tradeassistant/src/connectors"
	"tradeassistant/src/health"
	"tradeassistant/src/ledger"
	"tradeassistant/src/repository"
)

type quoteReader interface {
	GetQuote(ctx context.Context, symbol string, allowStale bool) (*connectors.Quote, *cache.Result, error)
}

// Assistant bundles the read accessors and entry points exposed to the UI
// process. Everything here is a thin translation layer: the semantics live
// in the ledger, cache, and health packages.
type Assistant struct {
	positions *repository.PositionRepository
	orders    *repository.ConfirmedOrderRepository
	trades    *repository.TradeRepository
	intents   *ledger.OrderIntentLedger
	tiered    *cache.TieredCache
	monitor   *health.Monitor
	quotes    quoteReader
}

func NewAssistant(
	positions *repository.PositionRepository,
	orders *repository.ConfirmedOrderRepository,
	trades *repository.TradeRepository,
	intents *ledger.OrderIntentLedger,
	tiered *cache.TieredCache,
	monitor *health.Monitor,
	quotes quoteReader,
) *Assistant {
	return &Assistant{
		positions: positions,
		orders:    orders,
		trades:    trades,
		intents:   intents,
		tiered:    tiered,
		monitor:   monitor,
		quotes:    quotes,
	}
}

// Routes mounts every accessor under the given router.
func (a *Assistant) Routes(r chi.Router) {
	r.Get("/positions", a.listPositions)
	r.Get("/positions/options", a.listOptionPositions)
	r.Get("/orders", a.listOrders)
	r.Get("/trades", a.listTrades)

	r.Get("/intents", a.listIntents)
	r.Post("/intents", a.createIntent)
	r.Delete("/intents/{intentID}", a.deleteIntent)

	r.Get("/quote/{symbol}", a.getQuote)

	r.Get("/cache/{key}", a.getCacheEntry)
	r.Post("/cache/{key}", a.setCacheEntry)
	r.Delete("/cache/{key}", a.clearCacheKey)
	r.Delete("/cache", a.clearCache)

	r.Get("/health", a.healthState)
	r.Post("/health/check", a.healthCheck)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func (a *Assistant) listPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := a.positions.ListAll(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (a *Assistant) listOptionPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := a.positions.ListOptions(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (a *Assistant) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	orders, err := a.orders.FindLatest(r.Context(), limit)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (a *Assistant) listTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	trades, err := a.trades.FindLatest(r.Context(), limit)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (a *Assistant) listIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := a.intents.ListPending(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, intents)
}

func (a *Assistant) createIntent(w http.ResponseWriter, r *http.Request) {
	var spec ledger.IntentSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "invalid intent payload", http.StatusBadRequest)
		return
	}
	if spec.Symbol == "" || spec.Side == "" {
		http.Error(w, "symbol and side are required", http.StatusBadRequest)
		return
	}

	id, err := a.intents.CreateIntent(r.Context(), spec)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"intent_id": id})
}

func (a *Assistant) deleteIntent(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intentID")
	if err := a.intents.RemoveIntent(r.Context(), intentID); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Assistant) getQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	allowStale := r.URL.Query().Get("stale") == "true"

	quote, hit, err := a.quotes.GetQuote(r.Context(), symbol, allowStale)
	if err != nil {
		http.Error(w, "quote unavailable", http.StatusBadGateway)
		return
	}

	response := map[string]any{"quote": quote}
	if hit != nil {
		response["tier"] = hit.Tier
		response["is_stale"] = hit.IsStale
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *Assistant) getCacheEntry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	opts := cache.GetOptions{AllowStale: r.URL.Query().Get("stale") == "true"}

	if tierParam := r.URL.Query().Get("tier"); tierParam != "" {
		switch tier := cache.Tier(tierParam); tier {
		case cache.TierHot, cache.TierWarm, cache.TierCold:
			opts.Tiers = []cache.Tier{tier}
		default:
			http.Error(w, "invalid tier", http.StatusBadRequest)
			return
		}
	}

	hit, ok := a.tiered.Get(r.Context(), key, opts)
	if !ok {
		http.Error(w, "cache miss", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, hit)
}

type setCacheRequest struct {
	Value    json.RawMessage `json:"value"`
	Tier     string          `json:"tier,omitempty"`
	TTLMs    int64           `json:"ttl_ms,omitempty"`
	Source   string          `json:"source,omitempty"`
	Symbol   string          `json:"symbol,omitempty"`
	Category string          `json:"category,omitempty"`
}

func (a *Assistant) setCacheEntry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req setCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid cache payload", http.StatusBadRequest)
		return
	}

	opts := cache.SetOptions{
		Source:   req.Source,
		Symbol:   req.Symbol,
		Category: req.Category,
	}
	if req.Tier != "" {
		switch tier := cache.Tier(req.Tier); tier {
		case cache.TierHot, cache.TierWarm, cache.TierCold:
			opts.Tier = tier
		default:
			http.Error(w, "invalid tier", http.StatusBadRequest)
			return
		}
	}
	if req.TTLMs > 0 {
		opts.TTL = time.Duration(req.TTLMs) * time.Millisecond
	}

	if err := a.tiered.Set(r.Context(), key, req.Value, opts); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Assistant) clearCacheKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := a.tiered.Clear(r.Context(), key); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Assistant) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := a.tiered.Clear(r.Context(), ""); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Assistant) healthState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.monitor.State())
}

func (a *Assistant) healthCheck(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	state := a.monitor.PerformCheck(r.Context(), force)
	writeJSON(w, http.StatusOK, state)
}
