package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardledger/internal/model"
	"cardledger/internal/query"
)

// TransactionRepository defines persistence operations for the append-only
// transaction log. Records are created, listed and aggregated, never mutated.
type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) error
	List(ctx context.Context, criteria []query.Criterion, page query.Page, orderClauses []string) ([]model.Transaction, int64, error)
	SumAmounts(ctx context.Context, criteria []query.Criterion) (decimal.Decimal, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create appends a transaction record.
func (r *transactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// List returns a page of transactions matching the criteria plus the total
// count. The cards join backs the ownership-scoping criterion.
func (r *transactionRepository) List(ctx context.Context, criteria []query.Criterion, page query.Page, orderClauses []string) ([]model.Transaction, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Joins("JOIN cards ON cards.id = transactions.card_id").
		Scopes(query.Scope(criteria)).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []model.Transaction
	if err := base.Scopes(query.Paginate(page, orderClauses)).
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// SumAmounts returns the sum of amounts of all transactions matching the
// criteria. Used for limit-window aggregation.
func (r *transactionRepository) SumAmounts(ctx context.Context, criteria []query.Criterion) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("COALESCE(SUM(transactions.amount), 0)").
		Scopes(query.Scope(criteria)).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
