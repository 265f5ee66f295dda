package store

import (
	"context"

	"backoffice-api/internal/models"
)

// RecordRestockAlert stores an alert once per event id.
// It returns false when the event was already recorded.
func (s *Store) RecordRestockAlert(ctx context.Context, alert *models.RestockAlert) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO restock_alerts (event_id, product_id, product_name, stock_quantity, reorder_level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`,
		alert.EventID, alert.ProductID, alert.ProductName, alert.StockQuantity, alert.ReorderLevel)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// GetRestockAlerts retrieves the newest alerts
func (s *Store) GetRestockAlerts(ctx context.Context, limit int) ([]models.RestockAlert, error) {
	alerts := []models.RestockAlert{}
	err := s.db.SelectContext(ctx, &alerts, `
		SELECT id, event_id, product_id, product_name, stock_quantity, reorder_level, created_at
		FROM restock_alerts
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	return alerts, err
}
