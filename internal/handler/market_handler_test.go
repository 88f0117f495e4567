package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CaffeineDuck/multiverse-market/internal/market"
	"github.com/CaffeineDuck/multiverse-market/internal/models"
)

// ---- mock implementation ----

type mockMarketBackend struct {
	exchangeFn        func(market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error)
	buyFn             func(market.ItemPurchaseRequest) (*models.Transaction, error)
	getUserFn         func(int64) (*models.User, error)
	listItemsFn       func(*int64) ([]models.Item, error)
	listUniversesFn   func() ([]models.Universe, error)
	getUserTradesFn   func(int64) ([]models.Transaction, error)
	invalidateRatesFn func(int64) error
}

func (m *mockMarketBackend) ExchangeCurrency(_ context.Context, req market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(req)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockMarketBackend) BuyItem(_ context.Context, req market.ItemPurchaseRequest) (*models.Transaction, error) {
	if m.buyFn != nil {
		return m.buyFn(req)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockMarketBackend) GetUser(_ context.Context, id int64) (*models.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(id)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockMarketBackend) ListItems(_ context.Context, universeID *int64) ([]models.Item, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(universeID)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockMarketBackend) ListUniverses(_ context.Context) ([]models.Universe, error) {
	if m.listUniversesFn != nil {
		return m.listUniversesFn()
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockMarketBackend) GetUserTrades(_ context.Context, userID int64) ([]models.Transaction, error) {
	if m.getUserTradesFn != nil {
		return m.getUserTradesFn(userID)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockMarketBackend) InvalidateUniverseRates(_ context.Context, universeID int64) error {
	if m.invalidateRatesFn != nil {
		return m.invalidateRatesFn(universeID)
	}
	return fmt.Errorf("not configured")
}

// ---- helpers ----

func newTestRouter(backend MarketBackend) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewMarketHandler(backend)
	v1 := r.Group("/v1")
	v1.GET("/universes", h.ListUniverses)
	v1.POST("/universes/:id/rates/invalidate", h.InvalidateRates)
	v1.GET("/users/:id", h.GetUser)
	v1.GET("/items", h.ListItems)
	v1.POST("/exchange", h.ExchangeCurrency)
	v1.POST("/buy", h.BuyItem)
	v1.GET("/trades/:userId", h.GetUserTrades)
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- test data ----

var testTransaction = &models.Transaction{
	ID: 1, BuyerID: 1, SellerID: 1, ItemID: 1,
	Amount: 200.0, Quantity: 2, FromUniverseID: 1, ToUniverseID: 1,
	TransactionTime: time.Now().UTC(),
}

func exchangeBody() map[string]interface{} {
	return map[string]interface{}{"userId": 1, "amount": 100.0, "fromUniverseId": 1, "toUniverseId": 2}
}

func buyBody() map[string]interface{} {
	return map[string]interface{}{"buyerId": 1, "itemId": 1, "quantity": 2}
}

// ---- tests ----

func TestExchangeCurrencyHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		exchangeFn     func(market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error)
		expectedStatus int
	}{
		{
			name: "success",
			body: exchangeBody(),
			exchangeFn: func(req market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error) {
				return &market.CurrencyExchangeResponse{
					ConvertedAmount: 250.0, FromUniverseID: 1, ToUniverseID: 2, ExchangeRate: 2.5,
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "insufficient balance",
			body: exchangeBody(),
			exchangeFn: func(market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error) {
				return nil, fmt.Errorf("%w: user 1", market.ErrInsufficientBalance)
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "user not found",
			body: exchangeBody(),
			exchangeFn: func(market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error) {
				return nil, &market.NotFoundError{Entity: market.EntityUser, ID: 1}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "same universe",
			body: map[string]interface{}{"userId": 1, "amount": 100.0, "fromUniverseId": 2, "toUniverseId": 2},
			exchangeFn: func(market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error) {
				return nil, fmt.Errorf("%w: from and to universe are both 2", market.ErrInvalidArgument)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative amount rejected by validation",
			body:           map[string]interface{}{"userId": 1, "amount": -5.0, "fromUniverseId": 1, "toUniverseId": 2},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			body:           "not json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "storage failure",
			body: exchangeBody(),
			exchangeFn: func(market.CurrencyExchangeRequest) (*market.CurrencyExchangeResponse, error) {
				return nil, fmt.Errorf("connection refused")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockMarketBackend{exchangeFn: tt.exchangeFn})
			w := doRequest(router, http.MethodPost, "/v1/exchange", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}
}

func TestBuyItemHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		buyFn          func(market.ItemPurchaseRequest) (*models.Transaction, error)
		expectedStatus int
	}{
		{
			name: "success",
			body: buyBody(),
			buyFn: func(market.ItemPurchaseRequest) (*models.Transaction, error) {
				return testTransaction, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "insufficient stock",
			body: buyBody(),
			buyFn: func(market.ItemPurchaseRequest) (*models.Transaction, error) {
				return nil, fmt.Errorf("%w: item 1", market.ErrInsufficientStock)
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "item not found",
			body: buyBody(),
			buyFn: func(market.ItemPurchaseRequest) (*models.Transaction, error) {
				return nil, &market.NotFoundError{Entity: market.EntityItem, ID: 1}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "zero quantity rejected by validation",
			body:           map[string]interface{}{"buyerId": 1, "itemId": 1, "quantity": 0},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockMarketBackend{buyFn: tt.buyFn})
			w := doRequest(router, http.MethodPost, "/v1/buy", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}
}

func TestGetUserHandler(t *testing.T) {
	backend := &mockMarketBackend{
		getUserFn: func(id int64) (*models.User, error) {
			if id != 1 {
				return nil, &market.NotFoundError{Entity: market.EntityUser, ID: id}
			}
			return &models.User{ID: 1, Username: "john_earth", UniverseID: 1, Balance: 1000.0}, nil
		},
	}
	router := newTestRouter(backend)

	w := doRequest(router, http.MethodGet, "/v1/users/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var user models.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if user.Username != "john_earth" {
		t.Errorf("username = %q, want john_earth", user.Username)
	}

	if w := doRequest(router, http.MethodGet, "/v1/users/42", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := doRequest(router, http.MethodGet, "/v1/users/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric id", w.Code)
	}
}

func TestListItemsHandler(t *testing.T) {
	var gotFilter *int64
	backend := &mockMarketBackend{
		listItemsFn: func(universeID *int64) ([]models.Item, error) {
			gotFilter = universeID
			return []models.Item{{ID: 1, Name: "Earth Coffee", UniverseID: 1, Price: 5.0, Stock: 100}}, nil
		},
	}
	router := newTestRouter(backend)

	if w := doRequest(router, http.MethodGet, "/v1/items", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if gotFilter != nil {
		t.Errorf("filter = %v, want nil without query param", *gotFilter)
	}

	if w := doRequest(router, http.MethodGet, "/v1/items?universeId=2", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if gotFilter == nil || *gotFilter != 2 {
		t.Errorf("filter = %v, want 2", gotFilter)
	}

	if w := doRequest(router, http.MethodGet, "/v1/items?universeId=bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad filter", w.Code)
	}
}

func TestListUniversesHandler(t *testing.T) {
	backend := &mockMarketBackend{
		listUniversesFn: func() ([]models.Universe, error) {
			return []models.Universe{{ID: 1, Name: "Earth", CurrencyType: "USD", ExchangeRate: 1.0}}, nil
		},
	}
	router := newTestRouter(backend)

	w := doRequest(router, http.MethodGet, "/v1/universes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var universes []models.Universe
	if err := json.Unmarshal(w.Body.Bytes(), &universes); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(universes) != 1 || universes[0].Name != "Earth" {
		t.Errorf("universes = %+v, want just Earth", universes)
	}
}

func TestGetUserTradesHandler(t *testing.T) {
	backend := &mockMarketBackend{
		getUserTradesFn: func(userID int64) ([]models.Transaction, error) {
			return []models.Transaction{*testTransaction}, nil
		},
	}
	router := newTestRouter(backend)

	w := doRequest(router, http.MethodGet, "/v1/trades/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var trades []models.Transaction
	if err := json.Unmarshal(w.Body.Bytes(), &trades); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(trades) != 1 || trades[0].ID != 1 {
		t.Errorf("trades = %+v, want one trade with id 1", trades)
	}
}

func TestInvalidateRatesHandler(t *testing.T) {
	var invalidated int64
	backend := &mockMarketBackend{
		invalidateRatesFn: func(universeID int64) error {
			invalidated = universeID
			if universeID == 42 {
				return &market.NotFoundError{Entity: market.EntityUniverse, ID: universeID}
			}
			return nil
		},
	}
	router := newTestRouter(backend)

	if w := doRequest(router, http.MethodPost, "/v1/universes/2/rates/invalidate", nil); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if invalidated != 2 {
		t.Errorf("invalidated universe %d, want 2", invalidated)
	}

	if w := doRequest(router, http.MethodPost, "/v1/universes/42/rates/invalidate", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
