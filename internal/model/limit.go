package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LimitType represents the period a spending limit applies to.
type LimitType string

const (
	LimitDaily   LimitType = "DAILY"
	LimitMonthly LimitType = "MONTHLY"
	LimitNone    LimitType = "NO_LIMIT"
)

// Limit caps the cumulative write-off amount on a card within a period.
// MaxAmount is present for DAILY and MONTHLY limits and absent for NO_LIMIT.
type Limit struct {
	ID        uint                `json:"id" gorm:"primaryKey"`
	CardID    uuid.UUID           `json:"card_id" gorm:"type:char(36);not null;uniqueIndex:idx_limits_card_type"`
	Type      LimitType           `json:"type" gorm:"size:16;not null;uniqueIndex:idx_limits_card_type"`
	MaxAmount decimal.NullDecimal `json:"max_amount,omitempty" gorm:"type:decimal(15,2)"`
}
