package model

import "time"

// CacheEntry is one persisted warm/cold cache row. Hot-tier entries never
// reach this table; they live in memory for the process lifetime only.
// Payload is a JSON document; a row whose payload no longer parses is
// treated as a miss by the cache, never as an error.
type CacheEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"size:128;not null;uniqueIndex:idx_cache_key_tier" json:"key"`
	Tier      string    `gorm:"size:10;not null;uniqueIndex:idx_cache_key_tier" json:"tier"`
	Payload   string    `gorm:"type:text" json:"payload"`
	Source    string    `gorm:"size:50" json:"source,omitempty"`
	Symbol    string    `gorm:"size:32;index" json:"symbol,omitempty"`
	Category  string    `gorm:"size:50;index" json:"category,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
