package models

import (
	"time"
)

// Bet is a single wager on one side of a round. Rows are immutable once
// created and never deleted; Impact is computed exactly once at placement.
type Bet struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	RoundID string `gorm:"type:uuid;not null;index" json:"round_id"`

	Side          string  `gorm:"type:varchar(8);not null;check:side IN ('left','right')" json:"side"`
	Amount        float64 `gorm:"not null" json:"amount"`
	Spell         string  `gorm:"type:varchar(256)" json:"spell"`
	WalletAddress string  `gorm:"type:varchar(96);not null;index" json:"wallet_address"`

	// Momentum delta applied when the bet was accepted.
	Impact float64 `gorm:"not null" json:"impact"`

	// Deposit transaction bookkeeping.
	Processed bool   `gorm:"not null;default:false" json:"processed"`
	TxID      string `gorm:"type:varchar(128)" json:"tx_id,omitempty"`

	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}
