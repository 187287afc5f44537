package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos bundles the repositories bound to one database transaction.
type Repos struct {
	Cards        CardRepository
	Transactions TransactionRepository
}

// UnitOfWork opens an explicit transactional boundary: every repository call
// made through the Repos passed to fn commits or rolls back as one unit.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a unit of work backed by gorm transactions.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

// Do executes fn inside a single database transaction.
func (u *gormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, Repos{
			Cards:        NewCardRepository(tx),
			Transactions: NewTransactionRepository(tx),
		})
	})
}
