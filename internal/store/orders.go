package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"backoffice-api/internal/models"

	"github.com/lib/pq"
)

const orderSelect = `
	SELECT o.id, o.customer_id, COALESCE(c.name, '') AS customer_name, o.order_date,
	       o.status, o.total_amount, o.idempotency_key
	FROM orders o
	LEFT JOIN customers c ON c.id = o.customer_id`

// GetOrderByID retrieves an order with its line items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, orderSelect+" WHERE o.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, or nil if there is none
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, orderSelect+" WHERE o.idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrders retrieves all orders, newest first
func (s *Store) GetOrders(ctx context.Context) ([]models.Order, error) {
	return s.selectOrders(ctx, orderSelect+" ORDER BY o.order_date DESC, o.id")
}

// GetOrdersByCustomerID retrieves the orders of one customer, newest first
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	return s.selectOrders(ctx,
		orderSelect+" WHERE o.customer_id = $1 ORDER BY o.order_date DESC, o.id", customerID)
}

// UpdateOrderStatus moves an order from one status to another.
// It returns false if the order no longer has the expected status.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *Store) selectOrders(ctx context.Context, query string, args ...interface{}) ([]models.Order, error) {
	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.attachItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the line items of all given orders in one query
func (s *Store) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		o.Items = []models.OrderItem{}
		byID[o.ID] = o
	}

	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, '') AS product_name,
		       oi.quantity, oi.unit_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}
