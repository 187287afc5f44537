package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/query"
	"cardledger/internal/repository"
)

// LimitService decides whether a proposed debit would breach any of a card's
// configured spending caps.
type LimitService interface {
	// CheckCardLimits verifies amount against every configured limit on the
	// card. txns must be the transaction repository bound to the unit of work
	// that will commit the debit, so the rolling sums are read under the same
	// database transaction.
	CheckCardLimits(ctx context.Context, txns repository.TransactionRepository, card *model.Card, amount decimal.Decimal) error
}

type limitService struct {
	now func() time.Time
}

// NewLimitService creates a new limit service.
func NewLimitService() LimitService {
	return &limitService{now: time.Now}
}

// CheckCardLimits checks all configured limits; the first breach aborts.
// Windows are half-open [period start, next period start) and always computed
// from the wall clock at invocation.
func (s *limitService) CheckCardLimits(ctx context.Context, txns repository.TransactionRepository, card *model.Card, amount decimal.Decimal) error {
	now := s.now()

	for _, limit := range card.Limits {
		if limit.Type == model.LimitNone {
			continue
		}
		if !limit.MaxAmount.Valid {
			return fmt.Errorf("%w: %s limit without max amount", errors.ErrInvalidLimit, limit.Type)
		}

		var from, to time.Time
		switch limit.Type {
		case model.LimitDaily:
			from = startOfDay(now)
			to = from.AddDate(0, 0, 1)
		case model.LimitMonthly:
			from = startOfMonth(now)
			to = from.AddDate(0, 1, 0)
		default:
			return fmt.Errorf("%w: unknown type %s", errors.ErrInvalidLimit, limit.Type)
		}

		spent, err := txns.SumAmounts(ctx, []query.Criterion{
			query.ForCard(card.ID),
			query.TypeIs(model.TransactionWriteOff),
			query.OccurredOnOrAfter(from),
			query.OccurredBefore(to),
		})
		if err != nil {
			return fmt.Errorf("sum %s window: %w", limit.Type, err)
		}

		if spent.Add(amount).GreaterThan(limit.MaxAmount.Decimal) {
			return &errors.LimitExceededError{
				Type:      string(limit.Type),
				Max:       limit.MaxAmount.Decimal,
				Spent:     spent,
				Attempted: amount,
			}
		}
	}

	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
