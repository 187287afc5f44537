package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/query"
	"cardledger/internal/vault"
)

func newTestVault(t *testing.T) vault.Vault {
	t.Helper()
	v, err := vault.New("0123456789abcdef0123456789abcdef", "lookup-secret")
	require.NoError(t, err)
	return v
}

func futureDate() time.Time {
	return time.Now().AddDate(3, 0, 0)
}

func TestCardService_CreateCard(t *testing.T) {
	owner := &model.User{ID: 1, Email: "alice@example.com", Role: model.RoleUser}

	tests := []struct {
		name          string
		params        CreateCardParams
		setupMock     func(*MockUserRepository, *MockCardRepository)
		expectedError error
		check         func(*testing.T, *model.Card)
	}{
		{
			name: "successful creation with default limit",
			params: CreateCardParams{
				OwnerEmail:     "alice@example.com",
				Number:         "4000 0012 3456 7890",
				ExpirationDate: futureDate(),
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "alice@example.com").Return(owner, nil)
				mCard.On("FindByOwnerAndHash", mock.Anything, uint(1), mock.Anything).Return(nil, gorm.ErrRecordNotFound)
				mCard.On("Create", mock.Anything, mock.AnythingOfType("*model.Card")).Return(nil)
			},
			check: func(t *testing.T, card *model.Card) {
				assert.Equal(t, "**** **** **** 7890", card.MaskedNumber)
				assert.Equal(t, model.CardStatusActive, card.Status)
				assert.True(t, card.Balance.IsZero())
				assert.NotEmpty(t, card.EncryptedNumber)
				assert.NotEmpty(t, card.NumberHash)
				require.Len(t, card.Limits, 1)
				assert.Equal(t, model.LimitNone, card.Limits[0].Type)
			},
		},
		{
			name: "successful creation with explicit limits",
			params: CreateCardParams{
				OwnerEmail:     "alice@example.com",
				Number:         "4000001234567890",
				ExpirationDate: futureDate(),
				Limits: []LimitParam{
					{Type: model.LimitDaily, MaxAmount: decimalPtr("150.00")},
					{Type: model.LimitMonthly, MaxAmount: decimalPtr("2000.00")},
				},
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "alice@example.com").Return(owner, nil)
				mCard.On("FindByOwnerAndHash", mock.Anything, uint(1), mock.Anything).Return(nil, gorm.ErrRecordNotFound)
				mCard.On("Create", mock.Anything, mock.AnythingOfType("*model.Card")).Return(nil)
			},
			check: func(t *testing.T, card *model.Card) {
				require.Len(t, card.Limits, 2)
				assert.Equal(t, model.LimitDaily, card.Limits[0].Type)
				assert.True(t, card.Limits[0].MaxAmount.Valid)
			},
		},
		{
			name: "owner not found",
			params: CreateCardParams{
				OwnerEmail:     "ghost@example.com",
				Number:         "4000001234567890",
				ExpirationDate: futureDate(),
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: errors.ErrUserNotFound,
		},
		{
			name: "malformed card number",
			params: CreateCardParams{
				OwnerEmail:     "alice@example.com",
				Number:         "1234",
				ExpirationDate: futureDate(),
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "alice@example.com").Return(owner, nil)
			},
			expectedError: errors.ErrInvalidCardNumber,
		},
		{
			name: "duplicate card for owner",
			params: CreateCardParams{
				OwnerEmail:     "alice@example.com",
				Number:         "4000001234567890",
				ExpirationDate: futureDate(),
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "alice@example.com").Return(owner, nil)
				mCard.On("FindByOwnerAndHash", mock.Anything, uint(1), mock.Anything).Return(&model.Card{}, nil)
			},
			expectedError: errors.ErrCardDuplicate,
		},
		{
			name: "NO_LIMIT cannot carry a max amount",
			params: CreateCardParams{
				OwnerEmail:     "alice@example.com",
				Number:         "4000001234567890",
				ExpirationDate: futureDate(),
				Limits:         []LimitParam{{Type: model.LimitNone, MaxAmount: decimalPtr("10")}},
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "alice@example.com").Return(owner, nil)
				mCard.On("FindByOwnerAndHash", mock.Anything, uint(1), mock.Anything).Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: errors.ErrInvalidLimit,
		},
		{
			name: "DAILY requires a positive max amount",
			params: CreateCardParams{
				OwnerEmail:     "alice@example.com",
				Number:         "4000001234567890",
				ExpirationDate: futureDate(),
				Limits:         []LimitParam{{Type: model.LimitDaily}},
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "alice@example.com").Return(owner, nil)
				mCard.On("FindByOwnerAndHash", mock.Anything, uint(1), mock.Anything).Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: errors.ErrInvalidLimit,
		},
		{
			name: "duplicate limit type",
			params: CreateCardParams{
				OwnerEmail:     "alice@example.com",
				Number:         "4000001234567890",
				ExpirationDate: futureDate(),
				Limits: []LimitParam{
					{Type: model.LimitDaily, MaxAmount: decimalPtr("100")},
					{Type: model.LimitDaily, MaxAmount: decimalPtr("200")},
				},
			},
			setupMock: func(mUser *MockUserRepository, mCard *MockCardRepository) {
				mUser.On("FindByEmail", mock.Anything, "alice@example.com").Return(owner, nil)
				mCard.On("FindByOwnerAndHash", mock.Anything, uint(1), mock.Anything).Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: errors.ErrInvalidLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserRepo := new(MockUserRepository)
			mockCardRepo := new(MockCardRepository)
			tt.setupMock(mockUserRepo, mockCardRepo)

			service := NewCardService(mockUserRepo, mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
			card, err := service.CreateCard(context.Background(), tt.params)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, card)
			} else {
				require.NoError(t, err)
				require.NotNil(t, card)
				tt.check(t, card)
			}

			mockUserRepo.AssertExpectations(t)
			mockCardRepo.AssertExpectations(t)
		})
	}
}

func TestCardService_DeleteCard(t *testing.T) {
	cardID := uuid.New()

	t.Run("non-zero balance refused", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByID", mock.Anything, cardID).Return(&model.Card{
			ID:      cardID,
			Balance: decimal.RequireFromString("10.00"),
		}, nil)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		err := service.DeleteCard(context.Background(), cardID)
		assert.ErrorIs(t, err, errors.ErrNonZeroBalance)
		mockCardRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("zero balance deleted", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByID", mock.Anything, cardID).Return(&model.Card{ID: cardID, Balance: decimal.Zero}, nil)
		mockCardRepo.On("Delete", mock.Anything, cardID).Return(nil)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		err := service.DeleteCard(context.Background(), cardID)
		assert.NoError(t, err)
		mockCardRepo.AssertExpectations(t)
	})

	t.Run("card not found", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByID", mock.Anything, cardID).Return(nil, gorm.ErrRecordNotFound)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		err := service.DeleteCard(context.Background(), cardID)
		assert.ErrorIs(t, err, errors.ErrCardNotFound)
	})

	t.Run("busy while a transaction holds the card lock", func(t *testing.T) {
		locker := NewCardLocker(20 * time.Millisecond)
		release, err := locker.Acquire(context.Background(), cardID)
		require.NoError(t, err)
		defer release()

		mockCardRepo := new(MockCardRepository)
		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, locker)

		err = service.DeleteCard(context.Background(), cardID)
		assert.ErrorIs(t, err, errors.ErrCardBusy)
		mockCardRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		mockCardRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestCardService_StatusTransitions(t *testing.T) {
	cardID := uuid.New()

	t.Run("block", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByID", mock.Anything, cardID).Return(&model.Card{
			ID:             cardID,
			Status:         model.CardStatusActive,
			ExpirationDate: futureDate(),
		}, nil)
		mockCardRepo.On("UpdateStatus", mock.Anything, cardID, model.CardStatusBlocked).Return(nil)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		card, err := service.BlockCard(context.Background(), cardID)
		require.NoError(t, err)
		assert.Equal(t, model.CardStatusBlocked, card.Status)
		mockCardRepo.AssertExpectations(t)
	})

	t.Run("activate", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByID", mock.Anything, cardID).Return(&model.Card{
			ID:             cardID,
			Status:         model.CardStatusBlocked,
			ExpirationDate: futureDate(),
		}, nil)
		mockCardRepo.On("UpdateStatus", mock.Anything, cardID, model.CardStatusActive).Return(nil)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		card, err := service.ActivateCard(context.Background(), cardID)
		require.NoError(t, err)
		assert.Equal(t, model.CardStatusActive, card.Status)
	})

	t.Run("activating a past-expiration card refused", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByID", mock.Anything, cardID).Return(&model.Card{
			ID:             cardID,
			Status:         model.CardStatusBlocked,
			ExpirationDate: time.Now().AddDate(-1, 0, 0),
		}, nil)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		_, err := service.ActivateCard(context.Background(), cardID)
		assert.ErrorIs(t, err, errors.ErrCardExpired)
		mockCardRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCardService_CheckAvailable(t *testing.T) {
	service := NewCardService(new(MockUserRepository), new(MockCardRepository), newTestVault(t), nil, NewCardLocker(time.Second))

	tests := []struct {
		name          string
		card          *model.Card
		expectedError error
	}{
		{
			name: "active card with future expiration",
			card: &model.Card{Status: model.CardStatusActive, ExpirationDate: futureDate()},
		},
		{
			name:          "blocked card",
			card:          &model.Card{Status: model.CardStatusBlocked, ExpirationDate: futureDate()},
			expectedError: errors.ErrCardBlocked,
		},
		{
			name:          "expired status",
			card:          &model.Card{Status: model.CardStatusExpired, ExpirationDate: futureDate()},
			expectedError: errors.ErrCardExpired,
		},
		{
			name:          "active status but expiration date passed",
			card:          &model.Card{Status: model.CardStatusActive, ExpirationDate: time.Now().AddDate(0, -1, 0)},
			expectedError: errors.ErrCardExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.CheckAvailable(tt.card)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCardService_ValidateOwnership(t *testing.T) {
	cardID := uuid.New()
	mockCardRepo := new(MockCardRepository)
	mockCardRepo.On("FindByID", mock.Anything, cardID).Return(&model.Card{ID: cardID, UserID: 1}, nil)

	service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))

	assert.NoError(t, service.ValidateOwnership(context.Background(), cardID, &model.User{ID: 1}))
	assert.ErrorIs(t, service.ValidateOwnership(context.Background(), cardID, &model.User{ID: 2}), errors.ErrAccessDenied)
}

func TestCardService_FindCardByNumber(t *testing.T) {
	owner := &model.User{ID: 1, Email: "alice@example.com"}

	t.Run("not found", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByOwnerAndHash", mock.Anything, uint(1), mock.Anything).Return(nil, gorm.ErrRecordNotFound)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		_, err := service.FindCardByNumber(context.Background(), "4000001234567890", owner)
		assert.ErrorIs(t, err, errors.ErrCardNotFound)
	})

	t.Run("spacing does not change the lookup", func(t *testing.T) {
		v := newTestVault(t)
		card := &model.Card{ID: uuid.New(), UserID: 1}

		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("FindByOwnerAndHash", mock.Anything, uint(1), v.LookupKey("4000001234567890")).Return(card, nil)

		service := NewCardService(new(MockUserRepository), mockCardRepo, v, nil, NewCardLocker(time.Second))
		found, err := service.FindCardByNumber(context.Background(), "4000 0012 3456 7890", owner)
		require.NoError(t, err)
		assert.Equal(t, card.ID, found.ID)
	})
}

func TestCardService_ListCards(t *testing.T) {
	t.Run("invalid sort field rejected before querying", func(t *testing.T) {
		mockCardRepo := new(MockCardRepository)
		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))

		_, _, err := service.ListCards(context.Background(), CardFilter{}, query.Page{}, query.Sort{Fields: []string{"balance"}})
		assert.ErrorIs(t, err, errors.ErrInvalidSortField)
		mockCardRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("filter becomes criteria", func(t *testing.T) {
		status := model.CardStatusActive
		expected := []query.Criterion{
			query.CardStatusIs(status),
			query.CardOwnerEmailIs("alice@example.com"),
		}

		mockCardRepo := new(MockCardRepository)
		mockCardRepo.On("List", mock.Anything, expected, query.Page{Number: 0, Size: 10}, []string{"cards.id ASC"}).
			Return([]model.Card{}, int64(0), nil)

		service := NewCardService(new(MockUserRepository), mockCardRepo, newTestVault(t), nil, NewCardLocker(time.Second))
		_, _, err := service.ListCards(context.Background(),
			CardFilter{Status: &status, OwnerEmail: "alice@example.com"},
			query.Page{Number: 0, Size: 10},
			query.Sort{Fields: []string{"id"}})
		assert.NoError(t, err)
		mockCardRepo.AssertExpectations(t)
	})
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
