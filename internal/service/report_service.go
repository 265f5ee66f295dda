package service

import (
	"context"
	"strings"
	"time"

	"backoffice-api/internal/models"
	"backoffice-api/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultRecentOrders = 5
	maxRecentOrders     = 100
)

// ReportService answers read-only sales questions
type ReportService struct {
	store            ReportStore
	excludedStatuses []string
	recentDefault    int
	logger           *zap.Logger
}

// NewReportService creates a report service. Orders in excludedStatuses do not count as sales.
func NewReportService(store ReportStore, excludedStatuses []string, recentDefault int) *ReportService {
	excluded := make([]string, 0, len(excludedStatuses))
	for _, status := range excludedStatuses {
		if status = strings.TrimSpace(status); status != "" {
			excluded = append(excluded, status)
		}
	}
	if recentDefault <= 0 || recentDefault > maxRecentOrders {
		recentDefault = defaultRecentOrders
	}

	return &ReportService{
		store:            store,
		excludedStatuses: excluded,
		recentDefault:    recentDefault,
		logger:           util.GetLogger(),
	}
}

// GetRecentOrders returns the count most recent orders.
// A non-positive count falls back to the default; large counts are capped.
func (s *ReportService) GetRecentOrders(ctx context.Context, count int) ([]models.Order, error) {
	if count <= 0 {
		count = s.recentDefault
	}
	if count > maxRecentOrders {
		count = maxRecentOrders
	}

	ctx, span := util.StartSpan(ctx, "ReportService.GetRecentOrders", attribute.Int("count", count))
	defer span.End()

	orders, err := s.store.GetRecentOrders(ctx, count)
	util.RecordError(span, err)
	return orders, err
}

// GetDailySales totals the orders placed on the calendar day of date, in UTC
func (s *ReportService) GetDailySales(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	ctx, span := util.StartSpan(ctx, "ReportService.GetDailySales",
		attribute.String("date", from.Format("2006-01-02")))
	defer span.End()

	total, err := s.store.SumSales(ctx, from, to, s.excludedStatuses)
	if err != nil {
		util.RecordError(span, err)
		return decimal.Zero, err
	}
	return total, nil
}

// GetLowStock lists products below their reorder level
func (s *ReportService) GetLowStock(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.GetLowStock")
	defer span.End()

	return s.store.GetLowStockProducts(ctx)
}
