package model

import "time"

const (
	IntentStatusPending = "PendingIntent"
)

// OrderIntent is a client-local optimistic order row. It exists only until
// it reconciles against a confirmed order from the sync stream or its TTL
// expires, whichever comes first.
type OrderIntent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IntentID   string    `gorm:"size:36;uniqueIndex;not null" json:"intent_id"`
	Symbol     string    `gorm:"size:32;index;not null" json:"symbol"`
	Side       string    `gorm:"size:10;not null" json:"side"`
	Quantity   float64   `json:"quantity"`
	LimitPrice float64   `json:"limit_price"`
	Strike     *float64  `json:"strike,omitempty"`
	Expiration *string   `gorm:"size:10" json:"expiration,omitempty"`
	Right      *string   `gorm:"column:contract_right;size:1" json:"right,omitempty"`
	Status     string    `gorm:"size:50;not null;default:PendingIntent" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (OrderIntent) TableName() string {
	return "order_intents"
}
