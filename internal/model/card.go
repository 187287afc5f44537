package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardStatus represents the lifecycle status of a card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// Card represents a payment card holding a monetary balance.
//
// The raw card number is never stored: EncryptedNumber carries the reversible
// AES-GCM ciphertext, NumberHash a deterministic keyed hash used for lookups,
// and MaskedNumber the display form derived once at creation time.
type Card struct {
	ID              uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	EncryptedNumber string          `json:"-" gorm:"size:512;not null"`
	NumberHash      string          `json:"-" gorm:"size:64;not null;uniqueIndex:idx_cards_owner_number"`
	MaskedNumber    string          `json:"masked_number" gorm:"size:19;not null"`
	ExpirationDate  time.Time       `json:"expiration_date" gorm:"not null"`
	UserID          uint            `json:"user_id" gorm:"not null;index;uniqueIndex:idx_cards_owner_number"`
	Status          CardStatus      `json:"status" gorm:"size:16;not null;index"`
	Balance         decimal.Decimal `json:"balance" gorm:"type:decimal(15,2);not null;default:0"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Relations
	User   User    `json:"-" gorm:"foreignKey:UserID"`
	Limits []Limit `json:"limits,omitempty" gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the card's expiration date has passed at the given
// time, regardless of the stored status.
func (c *Card) IsExpired(now time.Time) bool {
	return c.Status == CardStatusExpired || now.After(c.ExpirationDate)
}
