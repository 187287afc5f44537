package handler

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"cardledger/internal/model"
)

// PageResponse is the envelope of every paginated listing.
type PageResponse struct {
	Items interface{} `json:"items"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Total int64       `json:"total"`
}

// LimitResponse represents a card limit in responses.
type LimitResponse struct {
	Type      string `json:"type"`
	MaxAmount string `json:"max_amount,omitempty"`
}

// CardResponse represents a card in responses. Only the masked number ever
// leaves the service.
type CardResponse struct {
	ID             string          `json:"id"`
	MaskedNumber   string          `json:"masked_number"`
	ExpirationDate time.Time       `json:"expiration_date"`
	Status         string          `json:"status"`
	Balance        string          `json:"balance"`
	Limits         []LimitResponse `json:"limits"`
}

func newCardResponse(card *model.Card) CardResponse {
	limits := make([]LimitResponse, 0, len(card.Limits))
	for _, limit := range card.Limits {
		lr := LimitResponse{Type: string(limit.Type)}
		if limit.MaxAmount.Valid {
			lr.MaxAmount = limit.MaxAmount.Decimal.StringFixed(2)
		}
		limits = append(limits, lr)
	}
	return CardResponse{
		ID:             card.ID.String(),
		MaskedNumber:   card.MaskedNumber,
		ExpirationDate: card.ExpirationDate,
		Status:         string(card.Status),
		Balance:        card.Balance.StringFixed(2),
		Limits:         limits,
	}
}

func newCardResponses(cards []model.Card) []CardResponse {
	out := make([]CardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, newCardResponse(&cards[i]))
	}
	return out
}

// TransactionResponse represents a transaction in responses.
type TransactionResponse struct {
	ID               uint64    `json:"id"`
	CardID           string    `json:"card_id"`
	Amount           string    `json:"amount"`
	Type             string    `json:"type"`
	TargetMaskedCard string    `json:"target_masked_card,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
	Description      string    `json:"description,omitempty"`
}

func newTransactionResponse(txn *model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:               txn.ID,
		CardID:           txn.CardID.String(),
		Amount:           txn.Amount.StringFixed(2),
		Type:             string(txn.Type),
		TargetMaskedCard: txn.TargetMaskedCard,
		OccurredAt:       txn.OccurredAt,
		Description:      txn.Description,
	}
}

func newTransactionResponses(txns []model.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, newTransactionResponse(&txns[i]))
	}
	return out
}

// actingUser extracts the authenticated user's email and role from the JWT
// middleware token.
func actingUser(c echo.Context) (email string, role model.UserRole, ok bool) {
	token, tokenOK := c.Get("user").(*jwtv5.Token)
	if !tokenOK {
		return "", "", false
	}
	claims, claimsOK := token.Claims.(jwtv5.MapClaims)
	if !claimsOK {
		return "", "", false
	}
	email, emailOK := claims["email"].(string)
	roleStr, _ := claims["role"].(string)
	return email, model.UserRole(roleStr), emailOK && email != ""
}
