package model

import "time"

// Position is the per-underlying equity aggregate. Quantity is signed:
// negative means net short. The wheel annotation fields are optional and
// refreshed after every book mutation.
type Position struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Symbol       string  `gorm:"size:32;uniqueIndex;not null" json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	CostBasis    float64 `json:"cost_basis"`

	// Wheel strategy annotations: a short call against >=100 shares marks
	// the row covered-call, a short put marks it cash-secured-put.
	CoveredCallStrike  *float64 `json:"covered_call_strike,omitempty"`
	CoveredCallPremium *float64 `json:"covered_call_premium,omitempty"`
	PutStrike          *float64 `json:"put_strike,omitempty"`
	PutPremium         *float64 `json:"put_premium,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// OptionPosition is keyed by contract identity: one row per
// (symbol, strike, expiration, right). Quantity sign encodes long/short.
type OptionPosition struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Symbol       string    `gorm:"size:32;not null;uniqueIndex:idx_option_contract" json:"symbol"`
	Strike       float64   `gorm:"not null;uniqueIndex:idx_option_contract" json:"strike"`
	Expiration   string    `gorm:"size:10;not null;uniqueIndex:idx_option_contract" json:"expiration"`
	Right        string    `gorm:"column:contract_right;size:1;not null;uniqueIndex:idx_option_contract" json:"right"`
	Quantity     float64   `json:"quantity"`
	AverageCost  float64   `json:"average_cost"`
	CurrentPrice float64   `json:"current_price"`
	Multiplier   float64   `json:"multiplier"`
	MarketValue  float64   `json:"market_value"`
	CostBasis    float64   `json:"cost_basis"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (OptionPosition) TableName() string {
	return "option_positions"
}
