package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrCardNotFound is returned when a card is not found.
	ErrCardNotFound = errors.New("card not found")
	// ErrCardDuplicate is returned when the owner already holds a card with the same number.
	ErrCardDuplicate = errors.New("a card with this number already exists")
	// ErrNonZeroBalance is returned when deleting a card whose balance is not zero.
	ErrNonZeroBalance = errors.New("cannot delete a card with a non-zero balance")
	// ErrAccessDenied is returned when a card does not belong to the acting user.
	ErrAccessDenied = errors.New("card does not belong to the user")
	// ErrCardBlocked is returned when operating on a blocked card.
	ErrCardBlocked = errors.New("card is blocked")
	// ErrCardExpired is returned when operating on an expired card.
	ErrCardExpired = errors.New("card is expired")
	// ErrInsufficientBalance is returned when a debit exceeds the card balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount is returned when an operation amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidCardNumber is returned when a card number is malformed.
	ErrInvalidCardNumber = errors.New("invalid card number")
	// ErrInvalidLimit is returned when a limit definition is malformed.
	ErrInvalidLimit = errors.New("invalid limit definition")
	// ErrInvalidSortField is returned when a sort field is not in the allow-list.
	ErrInvalidSortField = errors.New("sorting by this field is not supported")
	// ErrSameCard is returned when transferring a card to itself.
	ErrSameCard = errors.New("cannot transfer to the same card")
	// ErrCardBusy is returned when a card lock cannot be acquired within the
	// bounded wait. The caller may safely retry.
	ErrCardBusy = errors.New("card is busy, retry later")
)

// LimitExceededError is returned when a proposed debit would breach a
// configured spending limit.
type LimitExceededError struct {
	Type      string
	Max       decimal.Decimal
	Spent     decimal.Decimal
	Attempted decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit %s exceeded: max %s, already spent %s, attempted %s",
		e.Type, e.Max, e.Spent, e.Attempted)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Not-found, validation and
// policy conditions are client errors with distinct codes so callers can tell
// "doesn't exist" from "exists but not permitted"; ErrCardBusy is the one
// retryable condition.
func MapErrorToHTTP(err error) *HTTPError {
	var limitErr *LimitExceededError
	if errors.As(err, &limitErr) {
		return NewHTTPError(http.StatusBadRequest, limitErr.Error(), "LIMIT_EXCEEDED")
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrCardNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "CARD_NOT_FOUND")
	case errors.Is(err, ErrCardDuplicate):
		return NewHTTPError(http.StatusConflict, err.Error(), "CARD_DUPLICATE")
	case errors.Is(err, ErrNonZeroBalance):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "NON_ZERO_BALANCE")
	case errors.Is(err, ErrAccessDenied):
		return NewHTTPError(http.StatusForbidden, err.Error(), "ACCESS_DENIED")
	case errors.Is(err, ErrCardBlocked):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "CARD_BLOCKED")
	case errors.Is(err, ErrCardExpired):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "CARD_EXPIRED")
	case errors.Is(err, ErrInsufficientBalance):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INSUFFICIENT_BALANCE")
	case errors.Is(err, ErrInvalidAmount):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_AMOUNT")
	case errors.Is(err, ErrInvalidCardNumber):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_CARD_NUMBER")
	case errors.Is(err, ErrInvalidLimit):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_LIMIT")
	case errors.Is(err, ErrInvalidSortField):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_SORT_FIELD")
	case errors.Is(err, ErrSameCard):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "SAME_CARD")
	case errors.Is(err, ErrCardBusy):
		return NewHTTPError(http.StatusServiceUnavailable, err.Error(), "CARD_BUSY")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
