package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CaffeineDuck/multiverse-market/internal/market"
	"github.com/CaffeineDuck/multiverse-market/internal/models"
)

// storeStats is shared between a MemoryStore and its transaction clones so
// tests can observe store traffic regardless of transaction scope.
type storeStats struct {
	universeGets atomic.Int64
}

// MemoryStore is an in-memory market.Store for unit tests and local runs.
// Transact copies the maps, runs the callback against the copy and swaps it
// in on success, so a failed operation leaves no partial effects. The single
// mutex stands in for row locks: it serializes concurrent transactions the
// same way the Postgres FOR UPDATE locks do.
type MemoryStore struct {
	mu           sync.Mutex
	users        map[int64]models.User
	items        map[int64]models.Item
	universes    map[int64]models.Universe
	transactions []models.Transaction
	nextTxID     int64
	inTx         bool
	stats        *storeStats

	// SaveTransactionErr, when set, is returned by the next SaveTransaction
	// call. Tests use it to force a mid-transaction failure.
	SaveTransactionErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]models.User),
		items:     make(map[int64]models.Item),
		universes: make(map[int64]models.Universe),
		nextTxID:  1,
		stats:     &storeStats{},
	}
}

// PutUser inserts or replaces a user. Seeding/test helper.
func (s *MemoryStore) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// PutItem inserts or replaces an item. Seeding/test helper.
func (s *MemoryStore) PutItem(item models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// PutUniverse inserts or replaces a universe. Seeding/test helper.
func (s *MemoryStore) PutUniverse(universe models.Universe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.universes[universe.ID] = universe
}

// UniverseGets reports how many universe reads the store has served,
// transaction scopes included.
func (s *MemoryStore) UniverseGets() int64 {
	return s.stats.universeGets.Load()
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(tx market.Store) error) error {
	if s.inTx {
		return fmt.Errorf("nested transaction not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scope := s.cloneLocked()
	if err := fn(scope); err != nil {
		return err
	}

	s.users = scope.users
	s.items = scope.items
	s.universes = scope.universes
	s.transactions = scope.transactions
	s.nextTxID = scope.nextTxID
	return nil
}

// cloneLocked copies the store state into a transaction scope. Caller holds
// s.mu.
func (s *MemoryStore) cloneLocked() *MemoryStore {
	scope := &MemoryStore{
		users:              make(map[int64]models.User, len(s.users)),
		items:              make(map[int64]models.Item, len(s.items)),
		universes:          make(map[int64]models.Universe, len(s.universes)),
		transactions:       append([]models.Transaction(nil), s.transactions...),
		nextTxID:           s.nextTxID,
		inTx:               true,
		stats:              s.stats,
		SaveTransactionErr: s.SaveTransactionErr,
	}
	for id, user := range s.users {
		scope.users[id] = user
	}
	for id, item := range s.items {
		scope.items[id] = item
	}
	for id, universe := range s.universes {
		scope.universes[id] = universe
	}
	return scope
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		// Transaction scopes are single-goroutine and already guarded by the
		// parent's mutex.
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	defer s.lock()()
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	defer s.lock()()
	if item, ok := s.items[id]; ok {
		return &item, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetUniverse(ctx context.Context, id int64) (*models.Universe, error) {
	defer s.lock()()
	s.stats.universeGets.Add(1)
	if universe, ok := s.universes[id]; ok {
		return &universe, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListUniverses(ctx context.Context) ([]models.Universe, error) {
	defer s.lock()()
	universes := make([]models.Universe, 0, len(s.universes))
	for _, universe := range s.universes {
		universes = append(universes, universe)
	}
	sort.Slice(universes, func(i, j int) bool { return universes[i].ID < universes[j].ID })
	return universes, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, universeID *int64) ([]models.Item, error) {
	defer s.lock()()
	items := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		if universeID != nil && item.UniverseID != *universeID {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) UpdateUserBalance(ctx context.Context, id int64, newBalance float64) error {
	defer s.lock()()
	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d not found for balance update", id)
	}
	user.Balance = newBalance
	s.users[id] = user
	return nil
}

func (s *MemoryStore) UpdateItemStock(ctx context.Context, id int64, newStock int) error {
	defer s.lock()()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %d not found for stock update", id)
	}
	item.Stock = newStock
	s.items[id] = item
	return nil
}

func (s *MemoryStore) SaveTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	defer s.lock()()
	if s.SaveTransactionErr != nil {
		return nil, s.SaveTransactionErr
	}
	saved := *tx
	saved.ID = s.nextTxID
	saved.TransactionTime = time.Now().UTC()
	s.nextTxID++
	s.transactions = append(s.transactions, saved)
	return &saved, nil
}

func (s *MemoryStore) GetUserTrades(ctx context.Context, userID int64) ([]models.Transaction, error) {
	defer s.lock()()
	trades := make([]models.Transaction, 0)
	for _, trade := range s.transactions {
		if trade.BuyerID == userID || trade.SellerID == userID {
			trades = append(trades, trade)
		}
	}
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].TransactionTime.Equal(trades[j].TransactionTime) {
			return trades[i].TransactionTime.After(trades[j].TransactionTime)
		}
		return trades[i].ID > trades[j].ID
	})
	return trades, nil
}
