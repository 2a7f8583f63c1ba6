package model

import "time"

const (
	OrderStatusSubmitted = "Submitted"
	OrderStatusFilled    = "Filled"
	OrderStatusCancelled = "Cancelled"
)

// ConfirmedOrder is the authoritative order row from the remote service.
// ExternalID is upstream-stable and deduplicates re-delivery; a confirmed
// order supersedes any matching local intent.
type ConfirmedOrder struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Symbol     string    `gorm:"size:32;index;not null" json:"symbol"`
	Side       string    `gorm:"size:10;not null" json:"side"`
	OrderType  string    `gorm:"size:20" json:"order_type"`
	Quantity   float64   `json:"quantity"`
	LimitPrice *float64  `json:"limit_price,omitempty"`
	Strike     *float64  `json:"strike,omitempty"`
	Expiration *string   `gorm:"size:10" json:"expiration,omitempty"`
	Right      *string   `gorm:"column:contract_right;size:1" json:"right,omitempty"`
	Status     string    `gorm:"size:50;not null;default:Submitted" json:"status"`
	PlacedAt   time.Time `json:"placed_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ConfirmedOrder) TableName() string {
	return "confirmed_orders"
}
