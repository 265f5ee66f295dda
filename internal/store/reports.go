package store

import (
	"context"
	"time"

	"backoffice-api/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// GetRecentOrders retrieves the most recent orders with customer and item details.
// Orders with the same date are returned in id order.
func (s *Store) GetRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	return s.selectOrders(ctx,
		orderSelect+" ORDER BY o.order_date DESC, o.id ASC LIMIT $1", limit)
}

// SumSales totals the orders dated in [from, to) whose status is not excluded
func (s *Store) SumSales(ctx context.Context, from, to time.Time, excludedStatuses []string) (decimal.Decimal, error) {
	if excludedStatuses == nil {
		excludedStatuses = []string{}
	}

	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE order_date >= $1 AND order_date < $2 AND NOT (status = ANY($3))`,
		from, to, pq.Array(excludedStatuses))
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
