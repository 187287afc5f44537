package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/service"
)

// TransactionHandler handles write-offs, transfers and transaction history.
type TransactionHandler struct {
	txnService service.TransactionService
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(txnService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{txnService: txnService}
}

// WriteOffRequest represents a write-off request against one of the
// acting user's cards.
type WriteOffRequest struct {
	CardNumber  string `json:"card_number" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

// TransferRequest represents a transfer between two of the acting
// user's cards.
type TransferRequest struct {
	FromCardNumber string `json:"from_card_number" validate:"required"`
	ToCardNumber   string `json:"to_card_number" validate:"required"`
	Amount         string `json:"amount" validate:"required"`
	Description    string `json:"description" validate:"max=255"`
}

// WriteOff godoc
// @Summary Write off funds from one of the acting user's cards
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WriteOffRequest true "Write-off data"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /users/transactions/write-off [post]
func (h *TransactionHandler) WriteOff(c echo.Context) error {
	email, _, ok := actingUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var req WriteOffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(errors.ErrInvalidAmount)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	txn, err := h.txnService.WriteOff(c.Request().Context(), email, req.CardNumber, amount, req.Description)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusCreated, newTransactionResponse(txn))
}

// Transfer godoc
// @Summary Transfer funds between two of the acting user's cards
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransferRequest true "Transfer data"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /users/transactions/transfer [post]
func (h *TransactionHandler) Transfer(c echo.Context) error {
	email, _, ok := actingUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(errors.ErrInvalidAmount)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	txn, err := h.txnService.Transfer(c.Request().Context(), email, req.FromCardNumber, req.ToCardNumber, amount, req.Description)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusCreated, newTransactionResponse(txn))
}

// ListCardTransactions godoc
// @Summary List transactions of one of the acting user's cards
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param type query string false "Transaction type (WRITE_OFF, REPLENISHMENT)"
// @Param from query string false "Exclusive lower bound, strictly after (RFC 3339)"
// @Param to query string false "Exclusive upper bound (RFC 3339)"
// @Param page query int false "Zero-based page index"
// @Param size query int false "Page size"
// @Param sort query string false "Comma-separated sort fields (id, type, amount)"
// @Param order query string false "ASC or DESC"
// @Success 200 {object} PageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/cards/{id}/transactions [get]
func (h *TransactionHandler) ListCardTransactions(c echo.Context) error {
	return h.listCardTransactions(c, true)
}

// ListCardTransactionsAdmin godoc
// @Summary List transactions of any card
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param type query string false "Transaction type (WRITE_OFF, REPLENISHMENT)"
// @Param from query string false "Exclusive lower bound, strictly after (RFC 3339)"
// @Param to query string false "Exclusive upper bound (RFC 3339)"
// @Param page query int false "Zero-based page index"
// @Param size query int false "Page size"
// @Param sort query string false "Comma-separated sort fields (id, type, amount)"
// @Param order query string false "ASC or DESC"
// @Success 200 {object} PageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/transactions [get]
func (h *TransactionHandler) ListCardTransactionsAdmin(c echo.Context) error {
	return h.listCardTransactions(c, false)
}

func (h *TransactionHandler) listCardTransactions(c echo.Context, enforceOwnership bool) error {
	email, _, ok := actingUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid card ID",
			Code:  "INVALID_UUID",
		})
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_FILTER",
		})
	}

	page, sort := parsePageSort(c)

	txns, total, err := h.txnService.ListByCard(c.Request().Context(), email, cardID, filter, page, sort, enforceOwnership)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	page = page.Normalize()
	return c.JSON(http.StatusOK, PageResponse{
		Items: newTransactionResponses(txns),
		Page:  page.Number,
		Size:  page.Size,
		Total: total,
	})
}

func parseTransactionFilter(c echo.Context) (service.TransactionFilter, error) {
	var filter service.TransactionFilter
	if raw := c.QueryParam("type"); raw != "" {
		txnType := model.TransactionType(strings.ToUpper(raw))
		filter.Type = &txnType
	}
	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}
	return filter, nil
}
