package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a transaction.
type TransactionType string

const (
	TransactionWriteOff      TransactionType = "WRITE_OFF"
	TransactionReplenishment TransactionType = "REPLENISHMENT"
)

// Transaction is an immutable record of a balance mutation. Records are never
// updated or deleted; they are the audit trail and the sole input for limit
// computation. CardID is a plain column, not a foreign key, so the trail
// survives card deletion.
type Transaction struct {
	ID               uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	CardID           uuid.UUID       `json:"card_id" gorm:"type:char(36);not null;index"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	Type             TransactionType `json:"type" gorm:"size:16;not null;index"`
	TargetMaskedCard string          `json:"target_masked_card,omitempty" gorm:"size:19"`
	OccurredAt       time.Time       `json:"occurred_at" gorm:"not null;index"`
	Description      string          `json:"description,omitempty" gorm:"type:text"`
}
