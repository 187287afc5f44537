package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardledger/internal/cache"
	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/query"
	"cardledger/internal/repository"
)

// TransactionFilter holds the optional criteria of a transaction listing.
// Bounds are strict: strictly after From, strictly before To.
type TransactionFilter struct {
	Type *model.TransactionType
	From *time.Time
	To   *time.Time
}

// TransactionService executes write-offs and transfers as indivisible
// operations and serves the transaction history. Balances are mutated here
// and nowhere else.
type TransactionService interface {
	WriteOff(ctx context.Context, actingEmail, cardNumber string, amount decimal.Decimal, description string) (*model.Transaction, error)
	Transfer(ctx context.Context, actingEmail, fromNumber, toNumber string, amount decimal.Decimal, description string) (*model.Transaction, error)
	ListByCard(ctx context.Context, actingEmail string, cardID uuid.UUID, filter TransactionFilter, page query.Page, sort query.Sort, enforceOwnership bool) ([]model.Transaction, int64, error)
}

type transactionService struct {
	userRepo     repository.UserRepository
	cardRepo     repository.CardRepository
	txnRepo      repository.TransactionRepository
	cardService  CardService
	limitService LimitService
	uow          repository.UnitOfWork
	locker       *CardLocker
	cache        *cache.Client
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(
	userRepo repository.UserRepository,
	cardRepo repository.CardRepository,
	txnRepo repository.TransactionRepository,
	cardService CardService,
	limitService LimitService,
	uow repository.UnitOfWork,
	locker *CardLocker,
	cache *cache.Client,
) TransactionService {
	return &transactionService{
		userRepo:     userRepo,
		cardRepo:     cardRepo,
		txnRepo:      txnRepo,
		cardService:  cardService,
		limitService: limitService,
		uow:          uow,
		locker:       locker,
		cache:        cache,
	}
}

// WriteOff debits a single card. The check-then-mutate sequence runs under the
// card's exclusive lock and a single database transaction: the row is re-read
// FOR UPDATE, ownership, availability, funds and limits are verified, then the
// WRITE_OFF record and the balance update commit together.
func (s *transactionService) WriteOff(ctx context.Context, actingEmail, cardNumber string, amount decimal.Decimal, description string) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	user, err := s.resolveUser(ctx, actingEmail)
	if err != nil {
		return nil, err
	}
	card, err := s.cardService.FindCardByNumber(ctx, cardNumber, user)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *model.Transaction
	err = s.uow.Do(ctx, func(ctx context.Context, repos repository.Repos) error {
		fresh, err := repos.Cards.FindByIDForUpdate(ctx, card.ID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrCardNotFound
			}
			return fmt.Errorf("lock card: %w", err)
		}
		if fresh.UserID != user.ID {
			return errors.ErrAccessDenied
		}
		if err := s.cardService.CheckAvailable(fresh); err != nil {
			return err
		}
		if fresh.Balance.LessThan(amount) {
			return errors.ErrInsufficientBalance
		}
		if err := s.limitService.CheckCardLimits(ctx, repos.Transactions, fresh, amount); err != nil {
			return err
		}

		txn := &model.Transaction{
			CardID:      fresh.ID,
			Amount:      amount,
			Type:        model.TransactionWriteOff,
			OccurredAt:  time.Now(),
			Description: description,
		}
		if err := repos.Transactions.Create(ctx, txn); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		if err := repos.Cards.UpdateBalance(ctx, fresh.ID, fresh.Balance.Sub(amount)); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, mapBusyError(err)
	}

	_ = s.cache.Delete(ctx, cache.CardKey(card.ID))
	return result, nil
}

// Transfer moves amount between two cards of the acting user. Both locks are
// taken in ascending id order, both rows are read FOR UPDATE in that same
// order, and the two balance updates plus the two transaction records commit
// as one unit sharing a single timestamp. The debit leg gets the full
// availability, funds and limit checks; the credit leg is re-validated for
// availability only, since limits cap write-offs, not replenishments.
func (s *transactionService) Transfer(ctx context.Context, actingEmail, fromNumber, toNumber string, amount decimal.Decimal, description string) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	user, err := s.resolveUser(ctx, actingEmail)
	if err != nil {
		return nil, err
	}
	sender, err := s.cardService.FindCardByNumber(ctx, fromNumber, user)
	if err != nil {
		return nil, err
	}
	receiver, err := s.cardService.FindCardByNumber(ctx, toNumber, user)
	if err != nil {
		return nil, err
	}
	if sender.ID == receiver.ID {
		return nil, errors.ErrSameCard
	}

	release, err := s.locker.Acquire(ctx, sender.ID, receiver.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *model.Transaction
	err = s.uow.Do(ctx, func(ctx context.Context, repos repository.Repos) error {
		freshSender, freshReceiver, err := lockPair(ctx, repos.Cards, sender.ID, receiver.ID)
		if err != nil {
			return err
		}
		if freshSender.UserID != user.ID || freshReceiver.UserID != user.ID {
			return errors.ErrAccessDenied
		}
		if err := s.cardService.CheckAvailable(freshSender); err != nil {
			return err
		}
		if err := s.cardService.CheckAvailable(freshReceiver); err != nil {
			return err
		}
		if freshSender.Balance.LessThan(amount) {
			return errors.ErrInsufficientBalance
		}
		if err := s.limitService.CheckCardLimits(ctx, repos.Transactions, freshSender, amount); err != nil {
			return err
		}

		now := time.Now()
		senderTxn := &model.Transaction{
			CardID:           freshSender.ID,
			Amount:           amount,
			Type:             model.TransactionWriteOff,
			TargetMaskedCard: freshReceiver.MaskedNumber,
			OccurredAt:       now,
			Description:      description,
		}
		receiverTxn := &model.Transaction{
			CardID:           freshReceiver.ID,
			Amount:           amount,
			Type:             model.TransactionReplenishment,
			TargetMaskedCard: freshSender.MaskedNumber,
			OccurredAt:       now,
			Description:      description,
		}

		if err := repos.Transactions.Create(ctx, senderTxn); err != nil {
			return fmt.Errorf("create sender transaction: %w", err)
		}
		if err := repos.Transactions.Create(ctx, receiverTxn); err != nil {
			return fmt.Errorf("create receiver transaction: %w", err)
		}
		if err := repos.Cards.UpdateBalance(ctx, freshSender.ID, freshSender.Balance.Sub(amount)); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if err := repos.Cards.UpdateBalance(ctx, freshReceiver.ID, freshReceiver.Balance.Add(amount)); err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}
		result = senderTxn
		return nil
	})
	if err != nil {
		return nil, mapBusyError(err)
	}

	_ = s.cache.Delete(ctx, cache.CardKey(sender.ID))
	_ = s.cache.Delete(ctx, cache.CardKey(receiver.ID))
	return result, nil
}

// ListByCard returns a page of the card's transactions. With enforceOwnership
// the acting user must own the card; admins list without the ownership check.
func (s *transactionService) ListByCard(ctx context.Context, actingEmail string, cardID uuid.UUID, filter TransactionFilter, page query.Page, sort query.Sort, enforceOwnership bool) ([]model.Transaction, int64, error) {
	orderClauses, err := sort.OrderClauses(query.TransactionSortFields)
	if err != nil {
		return nil, 0, err
	}

	user, err := s.resolveUser(ctx, actingEmail)
	if err != nil {
		return nil, 0, err
	}

	if _, err := s.cardRepo.FindByID(ctx, cardID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, errors.ErrCardNotFound
		}
		return nil, 0, fmt.Errorf("find card: %w", err)
	}

	criteria := []query.Criterion{query.ForCard(cardID)}
	if enforceOwnership {
		if err := s.cardService.ValidateOwnership(ctx, cardID, user); err != nil {
			return nil, 0, err
		}
		criteria = append(criteria, query.OwnedBy(user.ID))
	}
	if filter.Type != nil {
		criteria = append(criteria, query.TypeIs(*filter.Type))
	}
	if filter.From != nil {
		criteria = append(criteria, query.OccurredAfter(*filter.From))
	}
	if filter.To != nil {
		criteria = append(criteria, query.OccurredStrictlyBefore(*filter.To))
	}

	return s.txnRepo.List(ctx, criteria, page, orderClauses)
}

func (s *transactionService) resolveUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

// lockPair reads both cards FOR UPDATE in ascending id order, matching the
// lock manager's acquisition order.
func lockPair(ctx context.Context, cards repository.CardRepository, a, b uuid.UUID) (*model.Card, *model.Card, error) {
	first, second := a, b
	if second.String() < first.String() {
		first, second = second, first
	}

	byID := make(map[uuid.UUID]*model.Card, 2)
	for _, id := range []uuid.UUID{first, second} {
		card, err := cards.FindByIDForUpdate(ctx, id)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, errors.ErrCardNotFound
			}
			return nil, nil, fmt.Errorf("lock card: %w", err)
		}
		byID[id] = card
	}
	return byID[a], byID[b], nil
}

// mapBusyError converts driver-level lock contention into the retryable busy
// condition. 1205 is lock wait timeout, 1213 a deadlock victim.
func mapBusyError(err error) error {
	var mysqlErr *mysqldriver.MySQLError
	if stderrors.As(err, &mysqlErr) && (mysqlErr.Number == 1205 || mysqlErr.Number == 1213) {
		return errors.ErrCardBusy
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrCardBusy
	}
	return err
}
