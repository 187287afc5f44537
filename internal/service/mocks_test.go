package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"cardledger/internal/model"
	"cardledger/internal/query"
	"cardledger/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockCardRepository is a mock implementation of CardRepository.
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Create(ctx context.Context, card *model.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardRepository) FindByOwnerAndHash(ctx context.Context, userID uint, numberHash string) (*model.Card, error) {
	args := m.Called(ctx, userID, numberHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Card), args.Error(1)
}

func (m *MockCardRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CardStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockCardRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	args := m.Called(ctx, id, newBalance)
	return args.Error(0)
}

func (m *MockCardRepository) ReplaceLimits(ctx context.Context, cardID uuid.UUID, limits []model.Limit) error {
	args := m.Called(ctx, cardID, limits)
	return args.Error(0)
}

func (m *MockCardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCardRepository) List(ctx context.Context, criteria []query.Criterion, page query.Page, orderClauses []string) ([]model.Card, int64, error) {
	args := m.Called(ctx, criteria, page, orderClauses)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Card), args.Get(1).(int64), args.Error(2)
}

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) List(ctx context.Context, criteria []query.Criterion, page query.Page, orderClauses []string) ([]model.Transaction, int64, error) {
	args := m.Called(ctx, criteria, page, orderClauses)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) SumAmounts(ctx context.Context, criteria []query.Criterion) (decimal.Decimal, error) {
	args := m.Called(ctx, criteria)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// stubUnitOfWork runs fn directly against the given repositories, without a
// database transaction.
type stubUnitOfWork struct {
	repos repository.Repos
}

func (u *stubUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	return fn(ctx, u.repos)
}
