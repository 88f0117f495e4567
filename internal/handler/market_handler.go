package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CaffeineDuck/multiverse-market/internal/market"
	"github.com/CaffeineDuck/multiverse-market/internal/middleware"
	"github.com/CaffeineDuck/multiverse-market/internal/models"
)

// MarketBackend is the engine surface the HTTP layer consumes.
type MarketBackend interface {
	ExchangeCurrency(ctx context.Context, req market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error)
	BuyItem(ctx context.Context, req market.ItemPurchaseRequest) (*models.Transaction, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListItems(ctx context.Context, universeID *int64) ([]models.Item, error)
	ListUniverses(ctx context.Context) ([]models.Universe, error)
	GetUserTrades(ctx context.Context, userID int64) ([]models.Transaction, error)
	InvalidateUniverseRates(ctx context.Context, universeID int64) error
}

type MarketHandler struct {
	market MarketBackend
}

func NewMarketHandler(market MarketBackend) *MarketHandler {
	return &MarketHandler{market: market}
}

type ExchangeCurrencyRequest struct {
	UserID         int64   `json:"userId" validate:"required,gt=0"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	FromUniverseID int64   `json:"fromUniverseId" validate:"required,gt=0"`
	ToUniverseID   int64   `json:"toUniverseId" validate:"required,gt=0"`
}

type BuyItemRequest struct {
	BuyerID  int64 `json:"buyerId" validate:"required,gt=0"`
	ItemID   int64 `json:"itemId" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

func (h *MarketHandler) ExchangeCurrency(c *gin.Context) {
	var req ExchangeCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	resp, err := h.market.ExchangeCurrency(c.Request.Context(), market.CurrencyExchangeRequest{
		UserID:         req.UserID,
		Amount:         req.Amount,
		FromUniverseID: req.FromUniverseID,
		ToUniverseID:   req.ToUniverseID,
	})
	if err != nil {
		respondWithMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MarketHandler) BuyItem(c *gin.Context) {
	var req BuyItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	transaction, err := h.market.BuyItem(c.Request.Context(), market.ItemPurchaseRequest{
		BuyerID:  req.BuyerID,
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
	})
	if err != nil {
		respondWithMarketError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

func (h *MarketHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.market.GetUser(c.Request.Context(), id)
	if err != nil {
		respondWithMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *MarketHandler) ListItems(c *gin.Context) {
	var universeID *int64
	if raw := c.Query("universeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid universeId filter")
			return
		}
		universeID = &id
	}

	items, err := h.market.ListItems(c.Request.Context(), universeID)
	if err != nil {
		respondWithMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MarketHandler) ListUniverses(c *gin.Context) {
	universes, err := h.market.ListUniverses(c.Request.Context())
	if err != nil {
		respondWithMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, universes)
}

func (h *MarketHandler) GetUserTrades(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	trades, err := h.market.GetUserTrades(c.Request.Context(), userID)
	if err != nil {
		respondWithMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *MarketHandler) InvalidateRates(c *gin.Context) {
	universeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.market.InvalidateUniverseRates(c.Request.Context(), universeID); err != nil {
		respondWithMarketError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// respondWithMarketError maps the engine's error taxonomy to HTTP statuses.
// Anything outside the taxonomy is an opaque internal failure.
func respondWithMarketError(c *gin.Context, err error) {
	var notFound *market.NotFoundError
	switch {
	case errors.As(err, &notFound):
		middleware.RespondWithError(c, http.StatusNotFound, notFoundMessage(notFound))
	case errors.Is(err, market.ErrInsufficientBalance):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient balance")
	case errors.Is(err, market.ErrInsufficientStock):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient stock")
	case errors.Is(err, market.ErrInvalidArgument):
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func notFoundMessage(err *market.NotFoundError) string {
	switch err.Entity {
	case market.EntityUser:
		return "User not found"
	case market.EntityItem:
		return "Item not found"
	case market.EntityUniverse:
		return "Universe not found"
	default:
		return "Not found"
	}
}
