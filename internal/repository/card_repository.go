package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardledger/internal/model"
	"cardledger/internal/query"
)

// CardRepository defines card persistence operations. Balance mutations go
// through UpdateBalance only, and only inside a unit of work.
type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error)
	FindByOwnerAndHash(ctx context.Context, userID uint, numberHash string) (*model.Card, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.CardStatus) error
	UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error
	ReplaceLimits(ctx context.Context, cardID uuid.UUID, limits []model.Limit) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, criteria []query.Criterion, page query.Page, orderClauses []string) ([]model.Card, int64, error)
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create creates a new card together with its limits.
func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// FindByID finds a card by ID with its limits preloaded.
func (r *cardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Preload("Limits").
		Where("id = ?", id).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByIDForUpdate finds a card by ID with a row-level lock. Must run inside
// a unit of work.
func (r *cardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Preload("Limits").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByOwnerAndHash resolves a card by its owner and deterministic number
// hash, the indexed replacement for decrypting every stored number.
func (r *cardRepository) FindByOwnerAndHash(ctx context.Context, userID uint, numberHash string) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Preload("Limits").
		Where("user_id = ? AND number_hash = ?", userID, numberHash).
		First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateStatus updates the status of a card.
func (r *cardRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CardStatus) error {
	return r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// UpdateBalance updates the balance of a card.
func (r *cardRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&model.Card{}).
		Where("id = ?", id).
		Update("balance", newBalance).Error
}

// ReplaceLimits fully replaces the limit set of a card. Partial merges are not
// supported.
func (r *cardRepository) ReplaceLimits(ctx context.Context, cardID uuid.UUID, limits []model.Limit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("card_id = ?", cardID).Delete(&model.Limit{}).Error; err != nil {
			return err
		}
		for i := range limits {
			limits[i].CardID = cardID
		}
		return tx.Create(&limits).Error
	})
}

// Delete removes the card permanently. Limits cascade; transaction records are
// retained as the audit trail.
func (r *cardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("card_id = ?", id).Delete(&model.Limit{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Card{}).Error
	})
}

// List returns a page of cards matching the criteria plus the total count.
// The users join backs both the owner-email criterion and sort field.
func (r *cardRepository) List(ctx context.Context, criteria []query.Criterion, page query.Page, orderClauses []string) ([]model.Card, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Card{}).
		Joins("JOIN users ON users.id = cards.user_id").
		Scopes(query.Scope(criteria)).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var cards []model.Card
	if err := base.Preload("Limits").
		Scopes(query.Paginate(page, orderClauses)).
		Find(&cards).Error; err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}
