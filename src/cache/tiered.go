package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeassistant/src/model"
	"tradeassistant/src/repository"
)

// Tier identifies one cache level. Hot lives in memory for the process
// lifetime; warm and cold persist as rows in the ledger database.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// DefaultTierOrder is the lookup order when the caller does not narrow it.
var DefaultTierOrder = []Tier{TierHot, TierWarm, TierCold}

// DefaultTTL returns the per-tier freshness window.
func (t Tier) DefaultTTL() time.Duration {
	switch t {
	case TierHot:
		return 60 * time.Second
	case TierWarm:
		return time.Hour
	case TierCold:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

type hotEntry struct {
	payload   []byte
	source    string
	symbol    string
	category  string
	updatedAt time.Time
	expiresAt time.Time
}

// TieredCache bounds request volume against the rate-limited bridge by
// keeping market data in three tiers with independent TTLs. It is an
// injected service with an explicit lifecycle, never ambient state: tests
// construct isolated instances.
type TieredCache struct {
	mu   sync.Mutex
	hot  map[string]hotEntry
	rows *repository.CacheRepository
	log  *logger.Entry
	now  func() time.Time
}

func NewTieredCache(rows *repository.CacheRepository) *TieredCache {
	return &TieredCache{
		hot:  make(map[string]hotEntry),
		rows: rows,
		log:  logger.WithField("component", "TieredCache"),
		now:  time.Now,
	}
}

// WithClock overrides the cache's clock. Useful for TTL tests.
func (c *TieredCache) WithClock(now func() time.Time) *TieredCache {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// GetOptions narrows a lookup. Zero value means: all tiers in default
// order, fresh entries only.
type GetOptions struct {
	Tiers      []Tier
	AllowStale bool
}

// SetOptions directs a write. Zero value means: warm tier, tier-default TTL.
type SetOptions struct {
	Tier     Tier
	TTL      time.Duration
	Source   string
	Symbol   string
	Category string
}

// Result is one cache hit, tagged with where it came from and how fresh it is.
type Result struct {
	Key       string          `json:"key"`
	Tier      Tier            `json:"tier"`
	IsStale   bool            `json:"is_stale"`
	Source    string          `json:"source,omitempty"`
	Symbol    string          `json:"symbol,omitempty"`
	Category  string          `json:"category,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the hit payload into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}

// Get walks the tiers in order and returns the first non-expired entry, or
// any entry when opts.AllowStale. A tier whose payload no longer parses is
// a miss for that tier and the walk continues; corruption never surfaces
// as an error.
func (c *TieredCache) Get(ctx context.Context, key string, opts GetOptions) (*Result, bool) {
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTierOrder
	}

	now := c.now()

	for _, tier := range tiers {
		switch tier {
		case TierHot:
			c.mu.Lock()
			entry, ok := c.hot[key]
			c.mu.Unlock()
			if !ok {
				continue
			}
			stale := now.After(entry.expiresAt)
			if stale && !opts.AllowStale {
				continue
			}
			return &Result{
				Key:       key,
				Tier:      TierHot,
				IsStale:   stale,
				Source:    entry.source,
				Symbol:    entry.symbol,
				Category:  entry.category,
				UpdatedAt: entry.updatedAt,
				ExpiresAt: entry.expiresAt,
				Payload:   entry.payload,
			}, true

		case TierWarm, TierCold:
			row, err := c.rows.FindByKeyAndTier(ctx, key, string(tier))
			if err != nil || row == nil {
				continue
			}
			if !json.Valid([]byte(row.Payload)) {
				c.log.WithFields(logger.Fields{
					"key":  key,
					"tier": tier,
				}).Warn("corrupt cache payload treated as miss")
				continue
			}
			stale := now.After(row.ExpiresAt)
			if stale && !opts.AllowStale {
				continue
			}
			return &Result{
				Key:       key,
				Tier:      tier,
				IsStale:   stale,
				Source:    row.Source,
				Symbol:    row.Symbol,
				Category:  row.Category,
				UpdatedAt: row.UpdatedAt,
				ExpiresAt: row.ExpiresAt,
				Payload:   json.RawMessage(row.Payload),
			}, true
		}
	}

	return nil, false
}

// Set writes value to exactly one tier; there are no cascading writes.
func (c *TieredCache) Set(ctx context.Context, key string, value any, opts SetOptions) error {
	tier := opts.Tier
	if tier == "" {
		tier = TierWarm
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = tier.DefaultTTL()
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	now := c.now()
	expiresAt := now.Add(ttl)

	if tier == TierHot {
		c.mu.Lock()
		c.hot[key] = hotEntry{
			payload:   payload,
			source:    opts.Source,
			symbol:    opts.Symbol,
			category:  opts.Category,
			updatedAt: now,
			expiresAt: expiresAt,
		}
		c.mu.Unlock()
		return nil
	}

	return c.rows.Upsert(ctx, &model.CacheEntry{
		Key:       key,
		Tier:      string(tier),
		Payload:   string(payload),
		Source:    opts.Source,
		Symbol:    opts.Symbol,
		Category:  opts.Category,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	})
}

// Clear removes one key from every tier, or empties the whole cache when
// key is blank.
func (c *TieredCache) Clear(ctx context.Context, key string) error {
	c.mu.Lock()
	if key == "" {
		c.hot = make(map[string]hotEntry)
	} else {
		delete(c.hot, key)
	}
	c.mu.Unlock()

	if key == "" {
		return c.rows.DeleteAll(ctx)
	}
	return c.rows.DeleteByKey(ctx, key)
}

// Close drops the hot tier. Persisted tiers survive for the next run.
func (c *TieredCache) Close() {
	c.mu.Lock()
	c.hot = nil
	c.mu.Unlock()
}
