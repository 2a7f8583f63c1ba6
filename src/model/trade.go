package model

import (
	"strings"
	"time"
)

const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)

const (
	OptionRightCall = "C"
	OptionRightPut  = "P"
)

// DefaultOptionMultiplier applies when the upstream execution omits one.
const DefaultOptionMultiplier = 100.0

// Trade is an immutable execution record delivered by the remote sync
// stream. ExecID is assigned upstream and is the dedup key: the same
// execution may be delivered more than once.
type Trade struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExecID     string    `gorm:"size:64;uniqueIndex;not null" json:"exec_id"`
	Symbol     string    `gorm:"size:32;index;not null" json:"symbol"`
	Side       string    `gorm:"size:10;not null" json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Right      *string   `gorm:"column:contract_right;size:1" json:"right,omitempty"`
	Strike     *float64  `json:"strike,omitempty"`
	Expiration *string   `gorm:"size:10" json:"expiration,omitempty"`
	Multiplier *float64  `json:"multiplier,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}

// IsOption reports whether the execution carries a full option descriptor.
func (t *Trade) IsOption() bool {
	return t.Right != nil && t.Strike != nil && t.Expiration != nil
}

// SignedQuantity folds the side into the quantity: sells are negative.
func (t *Trade) SignedQuantity() float64 {
	if strings.EqualFold(t.Side, TradeSideSell) {
		return -t.Quantity
	}
	return t.Quantity
}

// OptionMultiplier returns the contract multiplier, defaulting when absent.
func (t *Trade) OptionMultiplier() float64 {
	if t.Multiplier != nil && *t.Multiplier > 0 {
		return *t.Multiplier
	}
	return DefaultOptionMultiplier
}
