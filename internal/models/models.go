package models

import "time"

// Universe is a self-contained economy with its own currency. ExchangeRate is
// relative to an implicit base unit and is seeded once; no API mutates it.
type Universe struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	CurrencyType string  `json:"currencyType"`
	ExchangeRate float64 `json:"exchangeRate"`
}

// User holds a single balance denominated in the currency of its home
// universe. The balance is only mutated by the market engine and never goes
// negative.
type User struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	UniverseID int64   `json:"universeId"`
	Balance    float64 `json:"balance"`
}

// Item is stock offered for sale by a universe, priced in that universe's
// currency.
type Item struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	UniverseID int64   `json:"universeId"`
	Price      float64 `json:"price"`
	Stock      int     `json:"stock"`
}

// Transaction is the append-only record of a completed purchase. Amount is
// the total cost in the buyer's currency, already rate-converted.
//
// SellerID holds the id of the universe selling the item, not a user id.
// Trade history queries filter on it, so the field keeps those semantics.
type Transaction struct {
	ID              int64     `json:"id"`
	BuyerID         int64     `json:"buyerId"`
	SellerID        int64     `json:"sellerId"`
	ItemID          int64     `json:"itemId"`
	Amount          float64   `json:"amount"`
	Quantity        int       `json:"quantity"`
	FromUniverseID  int64     `json:"fromUniverseId"`
	ToUniverseID    int64     `json:"toUniverseId"`
	TransactionTime time.Time `json:"transactionTime"`
}

// ItemSnapshot is the cached view of an item's sellable state. It is advisory
// only: purchase decisions are always re-validated against the store.
type ItemSnapshot struct {
	ID    int64   `json:"id"`
	Stock int     `json:"stock"`
	Price float64 `json:"price"`
}
