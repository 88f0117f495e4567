// Package repository implements the market.Store persistence gateway: a
// PostgreSQL backend for real deployments and an in-memory backend for unit
// tests and local runs.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CaffeineDuck/multiverse-market/internal/market"
	"github.com/CaffeineDuck/multiverse-market/internal/models"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresStore implements market.Store over PostgreSQL. Inside Transact the
// user and item reads take row locks (SELECT ... FOR UPDATE) so concurrent
// operations on the same entity serialize instead of losing updates.
type PostgresStore struct {
	db   *sql.DB
	q    querier
	inTx bool
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// Transact runs fn against a transaction-scoped store. The transaction is
// rolled back on every exit path except a successful commit, including a
// panic inside fn.
func (s *PostgresStore) Transact(ctx context.Context, fn func(tx market.Store) error) (err error) {
	if s.inTx {
		return fmt.Errorf("nested transaction not supported")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&PostgresStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, universe_id, balance FROM users WHERE id = $1`
	if s.inTx {
		query += ` FOR UPDATE`
	}
	var user models.User
	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.UniverseID, &user.Balance,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT id, name, universe_id, price, stock FROM items WHERE id = $1`
	if s.inTx {
		query += ` FOR UPDATE`
	}
	var item models.Item
	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.Name, &item.UniverseID, &item.Price, &item.Stock,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// GetUniverse never locks: universes are immutable after seeding.
func (s *PostgresStore) GetUniverse(ctx context.Context, id int64) (*models.Universe, error) {
	query := `SELECT id, name, currency_type, exchange_rate FROM universes WHERE id = $1`
	var universe models.Universe
	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&universe.ID, &universe.Name, &universe.CurrencyType, &universe.ExchangeRate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get universe: %w", err)
	}
	return &universe, nil
}

func (s *PostgresStore) ListUniverses(ctx context.Context) ([]models.Universe, error) {
	query := `SELECT id, name, currency_type, exchange_rate FROM universes ORDER BY id`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list universes: %w", err)
	}
	defer rows.Close()

	universes := make([]models.Universe, 0)
	for rows.Next() {
		var universe models.Universe
		if err := rows.Scan(&universe.ID, &universe.Name, &universe.CurrencyType, &universe.ExchangeRate); err != nil {
			return nil, fmt.Errorf("failed to scan universe: %w", err)
		}
		universes = append(universes, universe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list universes: %w", err)
	}
	return universes, nil
}

func (s *PostgresStore) ListItems(ctx context.Context, universeID *int64) ([]models.Item, error) {
	query := `SELECT id, name, universe_id, price, stock FROM items`
	args := []any{}
	if universeID != nil {
		query += ` WHERE universe_id = $1`
		args = append(args, *universeID)
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]models.Item, 0)
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.UniverseID, &item.Price, &item.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateUserBalance(ctx context.Context, id int64, newBalance float64) error {
	query := `UPDATE users SET balance = $2 WHERE id = $1`
	result, err := s.q.ExecContext(ctx, query, id, newBalance)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d not found for balance update", id)
	}
	return nil
}

func (s *PostgresStore) UpdateItemStock(ctx context.Context, id int64, newStock int) error {
	query := `UPDATE items SET stock = $2 WHERE id = $1`
	result, err := s.q.ExecContext(ctx, query, id, newStock)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %d not found for stock update", id)
	}
	return nil
}

// SaveTransaction appends a transaction, letting the database assign the id
// and the UTC timestamp.
func (s *PostgresStore) SaveTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	query := `
		INSERT INTO transactions (buyer_id, seller_id, item_id, amount, quantity, from_universe_id, to_universe_id, transaction_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, transaction_time
	`
	saved := *tx
	err := s.q.QueryRowContext(ctx, query,
		tx.BuyerID, tx.SellerID, tx.ItemID,
		tx.Amount, tx.Quantity, tx.FromUniverseID, tx.ToUniverseID,
	).Scan(&saved.ID, &saved.TransactionTime)
	if err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	return &saved, nil
}

func (s *PostgresStore) GetUserTrades(ctx context.Context, userID int64) ([]models.Transaction, error) {
	query := `
		SELECT id, buyer_id, seller_id, item_id, amount, quantity, from_universe_id, to_universe_id, transaction_time
		FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY transaction_time DESC, id DESC
	`
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	trades := make([]models.Transaction, 0)
	for rows.Next() {
		var trade models.Transaction
		if err := rows.Scan(
			&trade.ID, &trade.BuyerID, &trade.SellerID, &trade.ItemID,
			&trade.Amount, &trade.Quantity, &trade.FromUniverseID, &trade.ToUniverseID,
			&trade.TransactionTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	return trades, nil
}
