package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradeassistant/src/cache"
	"tradeassistant/src/database"
	"tradeassistant/src/model"
	"tradeassistant/src/repository"
)

func newTestCache(t *testing.T) (*cache.TieredCache, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	return cache.NewTieredCache(repository.NewCacheRepository().WithDB(db)), db
}

type quotePayload struct {
	Last float64 `json:"last"`
}

func TestGetFallsThroughToFresherTier(t *testing.T) {
	tiered, _ := newTestCache(t)
	ctx := context.Background()

	base := time.Now()
	tiered.WithClock(func() time.Time { return base })

	require.NoError(t, tiered.Set(ctx, "quote:AAPL", quotePayload{Last: 150}, cache.SetOptions{Tier: cache.TierHot}))
	require.NoError(t, tiered.Set(ctx, "quote:AAPL", quotePayload{Last: 149}, cache.SetOptions{Tier: cache.TierWarm}))

	// Two minutes later the hot entry (60s TTL) has expired while the warm
	// entry (1h TTL) is still fresh.
	tiered.WithClock(func() time.Time { return base.Add(2 * time.Minute) })

	result, ok := tiered.Get(ctx, "quote:AAPL", cache.GetOptions{})
	require.True(t, ok)
	require.Equal(t, cache.TierWarm, result.Tier)
	require.False(t, result.IsStale)

	var payload quotePayload
	require.NoError(t, result.Decode(&payload))
	require.InDelta(t, 149, payload.Last, 1e-9)
}

func TestGetAllowStaleReturnsExpiredEntry(t *testing.T) {
	tiered, _ := newTestCache(t)
	ctx := context.Background()

	base := time.Now()
	tiered.WithClock(func() time.Time { return base })

	require.NoError(t, tiered.Set(ctx, "quote:TSLA", quotePayload{Last: 240}, cache.SetOptions{Tier: cache.TierWarm}))

	tiered.WithClock(func() time.Time { return base.Add(2 * time.Hour) })

	_, ok := tiered.Get(ctx, "quote:TSLA", cache.GetOptions{})
	require.False(t, ok)

	result, ok := tiered.Get(ctx, "quote:TSLA", cache.GetOptions{AllowStale: true})
	require.True(t, ok)
	require.True(t, result.IsStale)
	require.Equal(t, cache.TierWarm, result.Tier)
}

func TestSetWritesExactlyOneTier(t *testing.T) {
	tiered, db := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, tiered.Set(ctx, "quote:NVDA", quotePayload{Last: 500}, cache.SetOptions{Tier: cache.TierHot}))

	// Hot writes never spill into the persisted tiers.
	var rows int64
	require.NoError(t, db.Model(&model.CacheEntry{}).Count(&rows).Error)
	require.EqualValues(t, 0, rows)

	_, ok := tiered.Get(ctx, "quote:NVDA", cache.GetOptions{Tiers: []cache.Tier{cache.TierWarm, cache.TierCold}})
	require.False(t, ok)

	result, ok := tiered.Get(ctx, "quote:NVDA", cache.GetOptions{})
	require.True(t, ok)
	require.Equal(t, cache.TierHot, result.Tier)
}

func TestCorruptPayloadIsAMissForThatTier(t *testing.T) {
	tiered, db := newTestCache(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, db.Create(&model.CacheEntry{
		Key:       "quote:AMD",
		Tier:      string(cache.TierWarm),
		Payload:   `{"last": 80`,
		UpdatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}).Error)
	require.NoError(t, tiered.Set(ctx, "quote:AMD", quotePayload{Last: 81}, cache.SetOptions{Tier: cache.TierCold}))

	result, ok := tiered.Get(ctx, "quote:AMD", cache.GetOptions{})
	require.True(t, ok)
	require.Equal(t, cache.TierCold, result.Tier)
}

func TestClearSingleKeyAndEverything(t *testing.T) {
	tiered, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, tiered.Set(ctx, "quote:AAPL", quotePayload{Last: 150}, cache.SetOptions{Tier: cache.TierHot}))
	require.NoError(t, tiered.Set(ctx, "quote:AAPL", quotePayload{Last: 150}, cache.SetOptions{Tier: cache.TierWarm}))
	require.NoError(t, tiered.Set(ctx, "quote:MSFT", quotePayload{Last: 400}, cache.SetOptions{Tier: cache.TierWarm}))

	require.NoError(t, tiered.Clear(ctx, "quote:AAPL"))

	_, ok := tiered.Get(ctx, "quote:AAPL", cache.GetOptions{})
	require.False(t, ok)
	_, ok = tiered.Get(ctx, "quote:MSFT", cache.GetOptions{})
	require.True(t, ok)

	require.NoError(t, tiered.Clear(ctx, ""))

	_, ok = tiered.Get(ctx, "quote:MSFT", cache.GetOptions{})
	require.False(t, ok)
}

func TestCustomTTLOverridesTierDefault(t *testing.T) {
	tiered, _ := newTestCache(t)
	ctx := context.Background()

	base := time.Now()
	tiered.WithClock(func() time.Time { return base })

	require.NoError(t, tiered.Set(ctx, "chain:AAPL", quotePayload{Last: 1}, cache.SetOptions{
		Tier: cache.TierWarm,
		TTL:  5 * time.Second,
	}))

	tiered.WithClock(func() time.Time { return base.Add(10 * time.Second) })

	_, ok := tiered.Get(ctx, "chain:AAPL", cache.GetOptions{})
	require.False(t, ok)
}
