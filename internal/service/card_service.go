package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardledger/internal/cache"
	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/query"
	"cardledger/internal/repository"
	"cardledger/internal/vault"
)

const cardCacheTTL = 5 * time.Minute

// LimitParam describes one limit in a create or replace request.
type LimitParam struct {
	Type      model.LimitType
	MaxAmount *decimal.Decimal
}

// CreateCardParams carries the inputs of card creation.
type CreateCardParams struct {
	OwnerEmail     string
	Number         string
	ExpirationDate time.Time
	Limits         []LimitParam
}

// CardFilter holds the optional criteria of a card listing.
type CardFilter struct {
	Status     *model.CardStatus
	OwnerEmail string
}

// CardService owns the card lifecycle: creation, status transitions, deletion,
// ownership and availability checks, and limit configuration.
type CardService interface {
	CreateCard(ctx context.Context, params CreateCardParams) (*model.Card, error)
	BlockCard(ctx context.Context, id uuid.UUID) (*model.Card, error)
	ActivateCard(ctx context.Context, id uuid.UUID) (*model.Card, error)
	DeleteCard(ctx context.Context, id uuid.UUID) error
	ReplaceLimits(ctx context.Context, id uuid.UUID, limits []LimitParam) (*model.Card, error)
	GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error)
	ValidateOwnership(ctx context.Context, cardID uuid.UUID, user *model.User) error
	CheckAvailable(card *model.Card) error
	FindCardByNumber(ctx context.Context, number string, owner *model.User) (*model.Card, error)
	ListCards(ctx context.Context, filter CardFilter, page query.Page, sort query.Sort) ([]model.Card, int64, error)
}

type cardService struct {
	userRepo repository.UserRepository
	cardRepo repository.CardRepository
	vault    vault.Vault
	cache    *cache.Client
	locker   *CardLocker
}

// NewCardService creates a new card service.
func NewCardService(userRepo repository.UserRepository, cardRepo repository.CardRepository, v vault.Vault, cache *cache.Client, locker *CardLocker) CardService {
	return &cardService{
		userRepo: userRepo,
		cardRepo: cardRepo,
		vault:    v,
		cache:    cache,
		locker:   locker,
	}
}

// CreateCard issues a new ACTIVE card with zero balance for the owner. The
// raw number is validated, encrypted and hashed; a NO_LIMIT entry is attached
// when no limits are requested.
func (s *cardService) CreateCard(ctx context.Context, params CreateCardParams) (*model.Card, error) {
	owner, err := s.userRepo.FindByEmail(ctx, params.OwnerEmail)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find owner: %w", err)
	}

	number := vault.Normalize(params.Number)
	if err := validateCardNumber(number); err != nil {
		return nil, err
	}

	numberHash := s.vault.LookupKey(number)
	if _, err := s.cardRepo.FindByOwnerAndHash(ctx, owner.ID, numberHash); err == nil {
		return nil, errors.ErrCardDuplicate
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	limits, err := buildLimits(params.Limits)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.vault.Encrypt(number)
	if err != nil {
		return nil, fmt.Errorf("encrypt card number: %w", err)
	}

	card := &model.Card{
		EncryptedNumber: encrypted,
		NumberHash:      numberHash,
		MaskedNumber:    s.vault.Mask(number),
		ExpirationDate:  params.ExpirationDate,
		UserID:          owner.ID,
		Status:          model.CardStatusActive,
		Balance:         decimal.Zero,
		Limits:          limits,
	}

	if err := s.cardRepo.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return card, nil
}

// BlockCard sets the card status to BLOCKED.
func (s *cardService) BlockCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return s.setStatus(ctx, id, model.CardStatusBlocked)
}

// ActivateCard sets the card status to ACTIVE. A card whose expiration date
// has passed cannot be reactivated.
func (s *cardService) ActivateCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	card, err := s.findCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if time.Now().After(card.ExpirationDate) {
		return nil, errors.ErrCardExpired
	}
	return s.applyStatus(ctx, card, model.CardStatusActive)
}

func (s *cardService) setStatus(ctx context.Context, id uuid.UUID, status model.CardStatus) (*model.Card, error) {
	card, err := s.findCard(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, card, status)
}

func (s *cardService) applyStatus(ctx context.Context, card *model.Card, status model.CardStatus) (*model.Card, error) {
	if err := s.cardRepo.UpdateStatus(ctx, card.ID, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	card.Status = status
	_ = s.cache.Delete(ctx, cache.CardKey(card.ID))
	return card, nil
}

// DeleteCard removes a card permanently. Only zero-balance cards can be
// deleted; the transaction history is retained. The card lock is held across
// the balance check so a transfer cannot credit the card mid-delete.
func (s *cardService) DeleteCard(ctx context.Context, id uuid.UUID) error {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	card, err := s.findCard(ctx, id)
	if err != nil {
		return err
	}
	if card.Balance.Sign() != 0 {
		return errors.ErrNonZeroBalance
	}
	if err := s.cardRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	_ = s.cache.Delete(ctx, cache.CardKey(id))
	return nil
}

// ReplaceLimits fully replaces the card's limit set.
func (s *cardService) ReplaceLimits(ctx context.Context, id uuid.UUID, params []LimitParam) (*model.Card, error) {
	card, err := s.findCard(ctx, id)
	if err != nil {
		return nil, err
	}
	limits, err := buildLimits(params)
	if err != nil {
		return nil, err
	}
	if err := s.cardRepo.ReplaceLimits(ctx, id, limits); err != nil {
		return nil, fmt.Errorf("replace limits: %w", err)
	}
	card.Limits = limits
	_ = s.cache.Delete(ctx, cache.CardKey(id))
	return card, nil
}

// GetCard returns a card by id, served from cache when possible.
func (s *cardService) GetCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var cached model.Card
	if s.cache.GetJSON(ctx, cache.CardKey(id), &cached) {
		return &cached, nil
	}

	card, err := s.findCard(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, cache.CardKey(id), card, cardCacheTTL)
	return card, nil
}

// ValidateOwnership fails with ErrAccessDenied unless the card belongs to the
// user. Ownership failure is always an actionable error for callers, so the
// registry raises instead of returning false.
func (s *cardService) ValidateOwnership(ctx context.Context, cardID uuid.UUID, user *model.User) error {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return err
	}
	if card.UserID != user.ID {
		return errors.ErrAccessDenied
	}
	return nil
}

// CheckAvailable fails when the card cannot take part in transactions. A card
// whose expiration date has passed counts as expired even while its stored
// status still says ACTIVE.
func (s *cardService) CheckAvailable(card *model.Card) error {
	switch {
	case card.Status == model.CardStatusBlocked:
		return errors.ErrCardBlocked
	case card.IsExpired(time.Now()):
		return errors.ErrCardExpired
	default:
		return nil
	}
}

// FindCardByNumber resolves a card by raw number within the owner's cards via
// the deterministic lookup hash.
func (s *cardService) FindCardByNumber(ctx context.Context, number string, owner *model.User) (*model.Card, error) {
	number = vault.Normalize(number)
	if err := validateCardNumber(number); err != nil {
		return nil, err
	}
	card, err := s.cardRepo.FindByOwnerAndHash(ctx, owner.ID, s.vault.LookupKey(number))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrCardNotFound
		}
		return nil, fmt.Errorf("find card by number: %w", err)
	}
	return card, nil
}

// ListCards returns a page of cards matching the filter.
func (s *cardService) ListCards(ctx context.Context, filter CardFilter, page query.Page, sort query.Sort) ([]model.Card, int64, error) {
	orderClauses, err := sort.OrderClauses(query.CardSortFields)
	if err != nil {
		return nil, 0, err
	}

	var criteria []query.Criterion
	if filter.Status != nil {
		criteria = append(criteria, query.CardStatusIs(*filter.Status))
	}
	if filter.OwnerEmail != "" {
		criteria = append(criteria, query.CardOwnerEmailIs(filter.OwnerEmail))
	}

	return s.cardRepo.List(ctx, criteria, page, orderClauses)
}

func (s *cardService) findCard(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	card, err := s.cardRepo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrCardNotFound
		}
		return nil, fmt.Errorf("find card: %w", err)
	}
	return card, nil
}

// validateCardNumber requires a normalized 16-digit number.
func validateCardNumber(number string) error {
	if len(number) != 16 {
		return errors.ErrInvalidCardNumber
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return errors.ErrInvalidCardNumber
		}
	}
	return nil
}

// buildLimits validates limit params and materializes them. An empty set
// defaults to a single NO_LIMIT entry; at most one limit per type; NO_LIMIT
// never carries a max amount, DAILY and MONTHLY always carry a positive one.
func buildLimits(params []LimitParam) ([]model.Limit, error) {
	if len(params) == 0 {
		return []model.Limit{{Type: model.LimitNone}}, nil
	}

	seen := make(map[model.LimitType]bool, len(params))
	limits := make([]model.Limit, 0, len(params))
	for _, p := range params {
		switch p.Type {
		case model.LimitNone:
			if p.MaxAmount != nil {
				return nil, fmt.Errorf("%w: NO_LIMIT cannot have a max amount", errors.ErrInvalidLimit)
			}
		case model.LimitDaily, model.LimitMonthly:
			if p.MaxAmount == nil || !p.MaxAmount.IsPositive() {
				return nil, fmt.Errorf("%w: %s requires a positive max amount", errors.ErrInvalidLimit, p.Type)
			}
		default:
			return nil, fmt.Errorf("%w: unknown type %q", errors.ErrInvalidLimit, p.Type)
		}
		if seen[p.Type] {
			return nil, fmt.Errorf("%w: duplicate type %s", errors.ErrInvalidLimit, p.Type)
		}
		seen[p.Type] = true

		limit := model.Limit{Type: p.Type}
		if p.MaxAmount != nil {
			limit.MaxAmount = decimal.NewNullDecimal(*p.MaxAmount)
		}
		limits = append(limits, limit)
	}
	return limits, nil
}
