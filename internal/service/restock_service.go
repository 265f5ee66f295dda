package service

import (
	"context"
	"fmt"

	"backoffice-api/internal/models"
	"backoffice-api/internal/util"

	"go.uber.org/zap"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// RestockService turns stock-low events into restock alerts
type RestockService struct {
	store  AlertStore
	logger *zap.Logger
}

// NewRestockService creates a new restock service
func NewRestockService(store AlertStore) *RestockService {
	return &RestockService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandleStockLow records an alert for the event. Redelivered events are ignored.
func (s *RestockService) HandleStockLow(ctx context.Context, event *models.StockLowEvent) error {
	ctx, span := util.StartSpan(ctx, "RestockService.HandleStockLow")
	defer span.End()

	alert := &models.RestockAlert{
		EventID:       event.EventID,
		ProductID:     event.ProductID,
		ProductName:   event.Name,
		StockQuantity: event.StockQuantity,
		ReorderLevel:  event.ReorderLevel,
	}

	inserted, err := s.store.RecordRestockAlert(ctx, alert)
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to record restock alert: %w", err)
	}
	if !inserted {
		s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	util.RestockAlertsTotal.Inc()
	s.logger.Warn("Product below reorder level",
		zap.Int64("product_id", event.ProductID),
		zap.String("name", event.Name),
		zap.Int("stock_quantity", event.StockQuantity),
		zap.Int("reorder_level", event.ReorderLevel))
	return nil
}

// ListAlerts returns the newest restock alerts
func (s *RestockService) ListAlerts(ctx context.Context, limit int) ([]models.RestockAlert, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}
	return s.store.GetRestockAlerts(ctx, limit)
}
