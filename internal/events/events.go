package events

import "time"

// Event types
const (
	CurrencyExchanged = "market.currency_exchanged"
	ItemPurchased     = "market.item_purchased"
)

// Stream names
const (
	MarketEventsStream = "market.events"
)

// Event is the envelope written to the stream.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type CurrencyExchangedEvent struct {
	UserID          int64   `json:"userId"`
	Amount          float64 `json:"amount"`
	ConvertedAmount float64 `json:"convertedAmount"`
	FromUniverseID  int64   `json:"fromUniverseId"`
	ToUniverseID    int64   `json:"toUniverseId"`
	ExchangeRate    float64 `json:"exchangeRate"`
}

type ItemPurchasedEvent struct {
	TransactionID  int64   `json:"transactionId"`
	BuyerID        int64   `json:"buyerId"`
	ItemID         int64   `json:"itemId"`
	Quantity       int     `json:"quantity"`
	Amount         float64 `json:"amount"`
	FromUniverseID int64   `json:"fromUniverseId"`
	ToUniverseID   int64   `json:"toUniverseId"`
}
