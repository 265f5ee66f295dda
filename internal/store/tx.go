package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"backoffice-api/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicateIdempotencyKey is returned when an order with the same idempotency key exists
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// InventoryTx is the set of writes order creation performs as one unit
type InventoryTx interface {
	LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	DecrementStock(ctx context.Context, productID int64, quantity int) (int, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
}

// Tx implements InventoryTx on a database transaction
type Tx struct {
	tx *sqlx.Tx
}

// WithinTx runs fn in a transaction. The transaction is committed only if fn
// returns nil and is rolled back on every other path.
func (s *Store) WithinTx(ctx context.Context, fn func(InventoryTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockProducts loads the given products with row locks held until the transaction ends.
// Rows are locked in id order so concurrent orders cannot deadlock each other.
func (t *Tx) LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	var products []models.Product
	err := t.tx.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE",
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	locked := make(map[int64]*models.Product, len(products))
	for i := range products {
		locked[products[i].ID] = &products[i]
	}
	return locked, nil
}

// DecrementStock subtracts quantity only if enough stock remains and returns the new level
func (t *Tx) DecrementStock(ctx context.Context, productID int64, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, models.Validationf("quantity must be positive, got %d", quantity)
	}

	var remaining int
	err := t.tx.QueryRowxContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1
		RETURNING stock_quantity`, quantity, productID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrInsufficientStock
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return remaining, nil
}

// InsertOrder inserts the order header and sets its ID
func (t *Tx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, order_date, status, total_amount, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := t.tx.QueryRowxContext(ctx, query,
		order.CustomerID, order.OrderDate, order.Status, order.TotalAmount, order.IdempotencyKey).
		Scan(&order.ID)
	switch {
	case isForeignKeyViolation(err):
		return models.ErrCustomerNotFound
	case isUniqueViolation(err):
		return ErrDuplicateIdempotencyKey
	case err != nil:
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// InsertOrderItem inserts one line item and sets its ID
func (t *Tx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if err := t.tx.QueryRowxContext(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&item.ID); err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}
