package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/query"
	"cardledger/internal/service"
)

// CardHandler handles card lifecycle endpoints.
type CardHandler struct {
	cardService service.CardService
}

// NewCardHandler creates a new card handler.
func NewCardHandler(cardService service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// LimitRequest represents one limit in card creation or replacement.
type LimitRequest struct {
	Type      string `json:"type" validate:"required,oneof=DAILY MONTHLY NO_LIMIT"`
	MaxAmount string `json:"max_amount,omitempty"`
}

// CreateCardRequest represents a card creation request.
type CreateCardRequest struct {
	OwnerEmail     string         `json:"owner_email" validate:"required,email"`
	CardNumber     string         `json:"card_number" validate:"required"`
	ExpirationDate time.Time      `json:"expiration_date" validate:"required"`
	Limits         []LimitRequest `json:"limits" validate:"omitempty,dive"`
}

// ReplaceLimitsRequest represents a limit replacement request.
type ReplaceLimitsRequest struct {
	Limits []LimitRequest `json:"limits" validate:"required,min=1,dive"`
}

func parseLimitParams(reqs []LimitRequest) ([]service.LimitParam, error) {
	params := make([]service.LimitParam, 0, len(reqs))
	for _, lr := range reqs {
		param := service.LimitParam{Type: model.LimitType(lr.Type)}
		if lr.MaxAmount != "" {
			amount, err := decimal.NewFromString(lr.MaxAmount)
			if err != nil {
				return nil, errors.ErrInvalidLimit
			}
			param.MaxAmount = &amount
		}
		params = append(params, param)
	}
	return params, nil
}

// CreateCard godoc
// @Summary Create a card for a user
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCardRequest true "Card data"
// @Success 201 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/cards [post]
func (h *CardHandler) CreateCard(c echo.Context) error {
	var req CreateCardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	limits, err := parseLimitParams(req.Limits)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	card, err := h.cardService.CreateCard(c.Request().Context(), service.CreateCardParams{
		OwnerEmail:     req.OwnerEmail,
		Number:         req.CardNumber,
		ExpirationDate: req.ExpirationDate,
		Limits:         limits,
	})
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusCreated, newCardResponse(card))
}

// BlockCard godoc
// @Summary Block a card
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/block [put]
func (h *CardHandler) BlockCard(c echo.Context) error {
	return h.respondWithCard(c, h.cardService.BlockCard)
}

// ActivateCard godoc
// @Summary Activate a card
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/activate [put]
func (h *CardHandler) ActivateCard(c echo.Context) error {
	return h.respondWithCard(c, h.cardService.ActivateCard)
}

// respondWithCard parses the card id, runs fn and renders the resulting card.
func (h *CardHandler) respondWithCard(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*model.Card, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid card ID",
			Code:  "INVALID_UUID",
		})
	}

	card, err := fn(c.Request().Context(), id)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, newCardResponse(card))
}

// GetCard godoc
// @Summary Get a card by ID
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id} [get]
func (h *CardHandler) GetCard(c echo.Context) error {
	return h.respondWithCard(c, h.cardService.GetCard)
}

// DeleteCard godoc
// @Summary Delete a zero-balance card permanently
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id} [delete]
func (h *CardHandler) DeleteCard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid card ID",
			Code:  "INVALID_UUID",
		})
	}

	if err := h.cardService.DeleteCard(c.Request().Context(), id); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "card deleted"})
}

// ReplaceLimits godoc
// @Summary Replace the limit set of a card
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body ReplaceLimitsRequest true "New limits"
// @Success 200 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/limits [put]
func (h *CardHandler) ReplaceLimits(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid card ID",
			Code:  "INVALID_UUID",
		})
	}

	var req ReplaceLimitsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	limits, err := parseLimitParams(req.Limits)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	card, err := h.cardService.ReplaceLimits(c.Request().Context(), id, limits)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, newCardResponse(card))
}

// ListCards godoc
// @Summary List cards with filtering, pagination and sorting
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param status query string false "Card status"
// @Param owner_email query string false "Owner email"
// @Param page query int false "Zero-based page index"
// @Param size query int false "Page size"
// @Param sort query string false "Comma-separated sort fields (id, owner_email, status)"
// @Param order query string false "ASC or DESC"
// @Success 200 {object} PageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /admin/cards [get]
func (h *CardHandler) ListCards(c echo.Context) error {
	filter := service.CardFilter{OwnerEmail: c.QueryParam("owner_email")}
	if raw := c.QueryParam("status"); raw != "" {
		status := model.CardStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	return h.listCards(c, filter)
}

// ListMyCards godoc
// @Summary List the acting user's cards
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param status query string false "Card status"
// @Param page query int false "Zero-based page index"
// @Param size query int false "Page size"
// @Param sort query string false "Comma-separated sort fields (id, owner_email, status)"
// @Param order query string false "ASC or DESC"
// @Success 200 {object} PageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /users/cards [get]
func (h *CardHandler) ListMyCards(c echo.Context) error {
	email, _, ok := actingUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	filter := service.CardFilter{OwnerEmail: email}
	if raw := c.QueryParam("status"); raw != "" {
		status := model.CardStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	return h.listCards(c, filter)
}

func (h *CardHandler) listCards(c echo.Context, filter service.CardFilter) error {
	page, sort := parsePageSort(c)

	cards, total, err := h.cardService.ListCards(c.Request().Context(), filter, page, sort)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	page = page.Normalize()
	return c.JSON(http.StatusOK, PageResponse{
		Items: newCardResponses(cards),
		Page:  page.Number,
		Size:  page.Size,
		Total: total,
	})
}

// parsePageSort reads shared pagination and sorting query params. Sort
// defaults to ascending id.
func parsePageSort(c echo.Context) (query.Page, query.Sort) {
	page := query.Page{Size: query.DefaultPageSize}
	if raw := c.QueryParam("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			page.Number = n
		}
	}
	if raw := c.QueryParam("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			page.Size = n
		}
	}

	sort := query.Sort{Fields: []string{"id"}}
	if raw := c.QueryParam("sort"); raw != "" {
		sort.Fields = strings.Split(raw, ",")
	}
	sort.Desc = strings.EqualFold(c.QueryParam("order"), "DESC")
	return page, sort
}
