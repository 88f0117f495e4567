// Package market implements the transactional market engine: currency
// exchange between universes, stocked item purchase, and the read-through
// caching of exchange rates and item snapshots.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CaffeineDuck/multiverse-market/internal/events"
	"github.com/CaffeineDuck/multiverse-market/internal/models"
)

// cacheTTL applies to exchange rates, item snapshots and user snapshots
// alike.
const cacheTTL = time.Hour

func userKey(id int64) string {
	return fmt.Sprintf("user:view:%d", id)
}

func itemKey(id int64) string {
	return fmt.Sprintf("item:%d", id)
}

// Engine owns the market's business rules. It orchestrates the persistence
// and cache gateways injected at construction and holds no other state, so a
// single instance serves concurrent requests.
type Engine struct {
	store  Store
	cache  Cache
	events EventPublisher
}

// NewEngine builds an Engine around the given gateways. events may be nil
// when no stream is wired (tests, seed tooling).
func NewEngine(store Store, cache Cache, events EventPublisher) *Engine {
	return &Engine{store: store, cache: cache, events: events}
}

// CurrencyExchangeRequest asks to convert amount from the user's balance into
// another universe's currency.
type CurrencyExchangeRequest struct {
	UserID         int64
	Amount         float64
	FromUniverseID int64
	ToUniverseID   int64
}

// CurrencyExchangeResponse reports the outcome of an exchange. Amounts are
// display floats; the engine computes them in decimal internally.
type CurrencyExchangeResponse struct {
	ConvertedAmount float64 `json:"convertedAmount"`
	FromUniverseID  int64   `json:"fromUniverseId"`
	ToUniverseID    int64   `json:"toUniverseId"`
	ExchangeRate    float64 `json:"exchangeRate"`
}

// ItemPurchaseRequest asks to buy quantity units of an item.
type ItemPurchaseRequest struct {
	BuyerID  int64
	ItemID   int64
	Quantity int
}

// ExchangeCurrency converts part of a user's balance into another universe's
// currency. The amount leaves the home balance; the converted amount is
// reported but not credited anywhere, since users hold a single wallet.
func (e *Engine) ExchangeCurrency(ctx context.Context, req CurrencyExchangeRequest) (*CurrencyExchangeResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %v", ErrInvalidArgument, req.Amount)
	}
	// Self-exchange is rejected before any I/O.
	if req.FromUniverseID == req.ToUniverseID {
		return nil, fmt.Errorf("%w: from and to universe are both %d", ErrInvalidArgument, req.FromUniverseID)
	}

	var resp *CurrencyExchangeResponse
	err := e.store.Transact(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return &NotFoundError{Entity: EntityUser, ID: req.UserID}
		}

		amount := decimal.NewFromFloat(req.Amount)
		balance := decimal.NewFromFloat(user.Balance)
		if balance.LessThan(amount) {
			return fmt.Errorf("%w: user %d holds %s, exchange needs %s",
				ErrInsufficientBalance, user.ID, balance, amount)
		}

		rate, err := e.resolveRate(ctx, tx, req.FromUniverseID, req.ToUniverseID)
		if err != nil {
			return err
		}

		if err := tx.UpdateUserBalance(ctx, user.ID, balance.Sub(amount).InexactFloat64()); err != nil {
			return err
		}

		resp = &CurrencyExchangeResponse{
			ConvertedAmount: amount.Mul(rate).InexactFloat64(),
			FromUniverseID:  req.FromUniverseID,
			ToUniverseID:    req.ToUniverseID,
			ExchangeRate:    rate.InexactFloat64(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.Del(ctx, userKey(req.UserID))
	e.publish(ctx, events.CurrencyExchanged, events.CurrencyExchangedEvent{
		UserID:          req.UserID,
		Amount:          req.Amount,
		ConvertedAmount: resp.ConvertedAmount,
		FromUniverseID:  req.FromUniverseID,
		ToUniverseID:    req.ToUniverseID,
		ExchangeRate:    resp.ExchangeRate,
	})
	return resp, nil
}

// BuyItem purchases quantity units of an item, converting the price into the
// buyer's currency when buyer and item live in different universes. Balance
// debit, stock decrement and the Transaction append happen in one storage
// transaction; cache maintenance happens after commit.
func (e *Engine) BuyItem(ctx context.Context, req ItemPurchaseRequest) (*models.Transaction, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, req.Quantity)
	}

	var (
		purchase *models.Transaction
		snapshot models.ItemSnapshot
	)
	err := e.store.Transact(ctx, func(tx Store) error {
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return &NotFoundError{Entity: EntityItem, ID: req.ItemID}
		}

		// The cached snapshot is advisory only: drop it as soon as it
		// disagrees with the row just read. The authoritative read wins.
		if cached, ok := e.cache.Get(ctx, itemKey(item.ID)); ok {
			var snap models.ItemSnapshot
			if err := json.Unmarshal([]byte(cached), &snap); err != nil ||
				snap.Stock != item.Stock || snap.Price != item.Price {
				e.cache.Del(ctx, itemKey(item.ID))
			}
		}

		buyer, err := tx.GetUser(ctx, req.BuyerID)
		if err != nil {
			return err
		}
		if buyer == nil {
			return &NotFoundError{Entity: EntityUser, ID: req.BuyerID}
		}

		if item.Stock < req.Quantity {
			return fmt.Errorf("%w: item %d has %d in stock, wanted %d",
				ErrInsufficientStock, item.ID, item.Stock, req.Quantity)
		}

		total := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(req.Quantity)))
		if buyer.UniverseID != item.UniverseID {
			rate, err := e.resolveRate(ctx, tx, buyer.UniverseID, item.UniverseID)
			if err != nil {
				return err
			}
			total = total.Mul(rate)
		}

		balance := decimal.NewFromFloat(buyer.Balance)
		if balance.LessThan(total) {
			return fmt.Errorf("%w: user %d holds %s, purchase costs %s",
				ErrInsufficientBalance, buyer.ID, balance, total)
		}

		if err := tx.UpdateUserBalance(ctx, buyer.ID, balance.Sub(total).InexactFloat64()); err != nil {
			return err
		}
		newStock := item.Stock - req.Quantity
		if err := tx.UpdateItemStock(ctx, item.ID, newStock); err != nil {
			return err
		}

		purchase, err = tx.SaveTransaction(ctx, &models.Transaction{
			BuyerID:        buyer.ID,
			SellerID:       item.UniverseID,
			ItemID:         item.ID,
			Amount:         total.InexactFloat64(),
			Quantity:       req.Quantity,
			FromUniverseID: buyer.UniverseID,
			ToUniverseID:   item.UniverseID,
		})
		if err != nil {
			return err
		}

		snapshot = models.ItemSnapshot{ID: item.ID, Stock: newStock, Price: item.Price}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.Del(ctx, userKey(req.BuyerID))
	e.cache.Del(ctx, itemKey(req.ItemID))
	if data, err := json.Marshal(snapshot); err == nil {
		e.cache.SetEx(ctx, itemKey(req.ItemID), cacheTTL, string(data))
	}
	e.publish(ctx, events.ItemPurchased, events.ItemPurchasedEvent{
		TransactionID:  purchase.ID,
		BuyerID:        purchase.BuyerID,
		ItemID:         purchase.ItemID,
		Quantity:       purchase.Quantity,
		Amount:         purchase.Amount,
		FromUniverseID: purchase.FromUniverseID,
		ToUniverseID:   purchase.ToUniverseID,
	})
	return purchase, nil
}

// GetUser returns a user, reading through the cached snapshot when present.
func (e *Engine) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if cached, ok := e.cache.Get(ctx, userKey(id)); ok {
		var user models.User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			return &user, nil
		}
	}

	user, err := e.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &NotFoundError{Entity: EntityUser, ID: id}
	}
	if data, err := json.Marshal(user); err == nil {
		e.cache.SetEx(ctx, userKey(id), cacheTTL, string(data))
	}
	return user, nil
}

// ListItems returns items for sale, optionally restricted to one universe.
func (e *Engine) ListItems(ctx context.Context, universeID *int64) ([]models.Item, error) {
	return e.store.ListItems(ctx, universeID)
}

// ListUniverses returns every known universe.
func (e *Engine) ListUniverses(ctx context.Context) ([]models.Universe, error) {
	return e.store.ListUniverses(ctx)
}

// GetUserTrades returns every transaction the user participated in, most
// recent first. Unknown users simply have no trades.
func (e *Engine) GetUserTrades(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return e.store.GetUserTrades(ctx, userID)
}

// publish emits an event best-effort: failures are logged, never surfaced,
// since the commit has already happened.
func (e *Engine) publish(ctx context.Context, eventType string, data any) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, events.MarketEventsStream, eventType, data); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}
