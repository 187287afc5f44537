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

	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/query"
)

func dailyLimitCard(id uuid.UUID, max string) *model.Card {
	return &model.Card{
		ID: id,
		Limits: []model.Limit{{
			Type:      model.LimitDaily,
			MaxAmount: decimal.NewNullDecimal(decimal.RequireFromString(max)),
		}},
	}
}

func TestLimitService_WindowBounds(t *testing.T) {
	// Fixed mid-month, mid-day wall clock.
	now := time.Date(2026, time.March, 15, 14, 30, 0, 0, time.UTC)
	cardID := uuid.New()

	tests := []struct {
		name     string
		limit    model.Limit
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name: "daily window is the calendar day",
			limit: model.Limit{
				Type:      model.LimitDaily,
				MaxAmount: decimal.NewNullDecimal(decimal.RequireFromString("100")),
			},
			wantFrom: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly window is the calendar month",
			limit: model.Limit{
				Type:      model.LimitMonthly,
				MaxAmount: decimal.NewNullDecimal(decimal.RequireFromString("100")),
			},
			wantFrom: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &model.Card{ID: cardID, Limits: []model.Limit{tt.limit}}
			expected := []query.Criterion{
				query.ForCard(cardID),
				query.TypeIs(model.TransactionWriteOff),
				query.OccurredOnOrAfter(tt.wantFrom),
				query.OccurredBefore(tt.wantTo),
			}

			mockTxnRepo := new(MockTransactionRepository)
			mockTxnRepo.On("SumAmounts", mock.Anything, expected).Return(decimal.Zero, nil)

			service := &limitService{now: func() time.Time { return now }}
			err := service.CheckCardLimits(context.Background(), mockTxnRepo, card, decimal.RequireFromString("10"))
			assert.NoError(t, err)
			mockTxnRepo.AssertExpectations(t)
		})
	}
}

func TestLimitService_Breach(t *testing.T) {
	cardID := uuid.New()

	tests := []struct {
		name      string
		max       string
		spent     string
		amount    string
		wantError bool
	}{
		{name: "within limit", max: "150", spent: "100", amount: "40", wantError: false},
		{name: "exactly reaching the limit allowed", max: "150", spent: "100", amount: "50", wantError: false},
		{name: "breach", max: "150", spent: "100", amount: "60", wantError: true},
		{name: "first spend above limit", max: "150", spent: "0", amount: "151", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTxnRepo := new(MockTransactionRepository)
			mockTxnRepo.On("SumAmounts", mock.Anything, mock.Anything).Return(decimal.RequireFromString(tt.spent), nil)

			service := NewLimitService()
			err := service.CheckCardLimits(context.Background(), mockTxnRepo, dailyLimitCard(cardID, tt.max), decimal.RequireFromString(tt.amount))

			if tt.wantError {
				var limitErr *errors.LimitExceededError
				require.ErrorAs(t, err, &limitErr)
				assert.Equal(t, string(model.LimitDaily), limitErr.Type)
				assert.True(t, limitErr.Spent.Equal(decimal.RequireFromString(tt.spent)))
				assert.True(t, limitErr.Attempted.Equal(decimal.RequireFromString(tt.amount)))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLimitService_NoLimitSkipsAggregation(t *testing.T) {
	card := &model.Card{
		ID:     uuid.New(),
		Limits: []model.Limit{{Type: model.LimitNone}},
	}

	mockTxnRepo := new(MockTransactionRepository)
	service := NewLimitService()

	err := service.CheckCardLimits(context.Background(), mockTxnRepo, card, decimal.RequireFromString("1000000"))
	assert.NoError(t, err)
	mockTxnRepo.AssertNotCalled(t, "SumAmounts", mock.Anything, mock.Anything)
}

func TestLimitService_FirstBreachAborts(t *testing.T) {
	card := &model.Card{
		ID: uuid.New(),
		Limits: []model.Limit{
			{Type: model.LimitDaily, MaxAmount: decimal.NewNullDecimal(decimal.RequireFromString("50"))},
			{Type: model.LimitMonthly, MaxAmount: decimal.NewNullDecimal(decimal.RequireFromString("1000"))},
		},
	}

	mockTxnRepo := new(MockTransactionRepository)
	mockTxnRepo.On("SumAmounts", mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()

	service := NewLimitService()
	err := service.CheckCardLimits(context.Background(), mockTxnRepo, card, decimal.RequireFromString("60"))

	var limitErr *errors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, string(model.LimitDaily), limitErr.Type)
	mockTxnRepo.AssertNumberOfCalls(t, "SumAmounts", 1)
}

func TestLimitService_MalformedStoredLimit(t *testing.T) {
	card := &model.Card{
		ID:     uuid.New(),
		Limits: []model.Limit{{Type: model.LimitDaily}}, // no max amount
	}

	service := NewLimitService()
	err := service.CheckCardLimits(context.Background(), new(MockTransactionRepository), card, decimal.RequireFromString("1"))
	assert.ErrorIs(t, err, errors.ErrInvalidLimit)
}
