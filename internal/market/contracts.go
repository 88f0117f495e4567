package market

import (
	"context"
	"time"

	"github.com/CaffeineDuck/multiverse-market/internal/models"
)

// Store is the persistence gateway the engine consumes. Get methods return
// (nil, nil) when no such row exists; a non-nil error always means a storage
// failure, never a missing entity.
type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetUniverse(ctx context.Context, id int64) (*models.Universe, error)
	ListUniverses(ctx context.Context) ([]models.Universe, error)
	ListItems(ctx context.Context, universeID *int64) ([]models.Item, error)
	UpdateUserBalance(ctx context.Context, id int64, newBalance float64) error
	UpdateItemStock(ctx context.Context, id int64, newStock int) error
	SaveTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetUserTrades(ctx context.Context, userID int64) ([]models.Transaction, error)

	// Transact runs fn inside one storage transaction. Rows read through the
	// scoped Store stay locked until the transaction ends, so two operations
	// touching the same user or item cannot interleave between read and
	// write. Any error or panic from fn rolls everything back.
	Transact(ctx context.Context, fn func(tx Store) error) error
}

// Cache is the advisory key/value gateway. Implementations absorb their own
// write and delete failures: a degraded cache must never fail a market
// operation.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	SetEx(ctx context.Context, key string, ttl time.Duration, value string)
	Del(ctx context.Context, key string)
}

// EventPublisher emits market events after successful commits.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}
