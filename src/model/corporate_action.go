package model

import "time"

// Only splits affect accounting; other action types are stored but ignored.
const CorporateActionSplit = "split"

// CorporateAction is delivered by the sync stream and applied at most once.
// ProcessedAt is the exactly-once marker: a re-delivered action whose row is
// already marked is absorbed silently.
type CorporateAction struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ActionID    string     `gorm:"size:64;uniqueIndex;not null" json:"action_id"`
	Symbol      string     `gorm:"size:32;index;not null" json:"symbol"`
	Type        string     `gorm:"size:20;not null" json:"type"`
	Ratio       float64    `json:"ratio"`
	EffectiveAt time.Time  `json:"effective_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (CorporateAction) TableName() string {
	return "corporate_actions"
}
