package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backoffice-api/internal/models"
	"backoffice-api/internal/store"
	"backoffice-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	store     OrderStore
	cache     ProductCache
	locker    Locker
	publisher EventPublisher
	lockTTL   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	cache ProductCache,
	locker Locker,
	publisher EventPublisher,
	lockTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:     store,
		cache:     cache,
		locker:    locker,
		publisher: publisher,
		lockTTL:   lockTTL,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID     int64              `json:"customerId"`
	Items          []OrderItemRequest `json:"orderItems"`
	InitialStatus  string             `json:"initialStatus,omitempty"`
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateOrder validates stock, prices the items, decrements inventory and
// records the order. Either all of it happens or none of it does.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder",
		attribute.Int64("customer_id", req.CustomerID),
		attribute.Int("items", len(req.Items)))
	defer span.End()

	status, err := validateCreateOrder(req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		order, err := s.createOrder(ctx, req, status)
		util.RecordError(span, err)
		return order, err
	}

	existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		return existing, nil
	}

	lockKey := "order:" + req.IdempotencyKey
	token, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}
	if token == "" {
		util.OrdersFailedTotal.WithLabelValues("in_progress").Inc()
		return nil, models.ErrOrderInProgress
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("Failed to release idempotency lock",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}()

	// the previous holder may have committed between the first check and the lock
	existing, err = s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	order, err := s.createOrder(ctx, req, status)
	if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
		return s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	}
	util.RecordError(span, err)
	return order, err
}

func (s *OrderService) createOrder(ctx context.Context, req *CreateOrderRequest, status models.OrderStatus) (*models.Order, error) {
	var (
		order    *models.Order
		lowStock []models.Product
	)

	start := time.Now()
	err := s.store.WithinTx(ctx, func(tx store.InventoryTx) error {
		var err error
		order, lowStock, err = s.placeOrder(ctx, tx, req, status)
		return err
	})
	util.OrderCreationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	productIDs := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		util.StockUnitsSoldTotal.Add(float64(item.Quantity))
		productIDs = append(productIDs, item.ProductID)
	}
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", order.CustomerID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))

	if err := s.cache.InvalidateProducts(ctx, productIDs...); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
	s.publishOrderCreated(ctx, order)
	for i := range lowStock {
		s.publishStockLow(ctx, &lowStock[i])
	}

	persisted, err := s.store.GetOrderByID(ctx, order.ID)
	if err != nil {
		s.logger.Warn("Failed to reload created order", zap.Int64("order_id", order.ID), zap.Error(err))
		return order, nil
	}
	return persisted, nil
}

// placeOrder runs inside the transaction. Every item is checked before any
// stock is touched.
func (s *OrderService) placeOrder(
	ctx context.Context,
	tx store.InventoryTx,
	req *CreateOrderRequest,
	status models.OrderStatus,
) (*models.Order, []models.Product, error) {
	products, err := tx.LockProducts(ctx, distinctProductIDs(req.Items))
	if err != nil {
		return nil, nil, err
	}

	initial := make(map[int64]int, len(products))
	remaining := make(map[int64]int, len(products))
	for id, p := range products {
		initial[id] = p.StockQuantity
		remaining[id] = p.StockQuantity
	}

	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, nil, &models.ProductNotFoundError{ProductID: item.ProductID}
		}
		if remaining[item.ProductID] < item.Quantity {
			return nil, nil, &models.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   remaining[item.ProductID],
				Requested:   item.Quantity,
			}
		}
		remaining[item.ProductID] -= item.Quantity
	}

	order := &models.Order{
		CustomerID:  req.CustomerID,
		OrderDate:   s.now().UTC(),
		Status:      status,
		TotalAmount: decimal.Zero,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product := products[item.ProductID]
		left, err := tx.DecrementStock(ctx, product.ID, item.Quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("product %d: %w", product.ID, err)
		}
		product.StockQuantity = left

		line := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
		}
		order.TotalAmount = order.TotalAmount.Add(line.LineTotal())
		items = append(items, line)
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, nil, err
	}
	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
			return nil, nil, err
		}
	}
	order.Items = items

	var lowStock []models.Product
	for _, id := range distinctProductIDs(req.Items) {
		p := products[id]
		if initial[id] >= p.ReorderLevel && p.IsLowStock() {
			lowStock = append(lowStock, *p)
		}
	}

	return order, lowStock, nil
}

// UpdateOrderStatus moves an order to a new status along the allowed transitions
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus",
		attribute.Int64("order_id", orderID))
	defer span.End()

	next, err := models.ParseOrderStatus(newStatus)
	if err != nil {
		return nil, err
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot change status from %s to %s",
			models.ErrInvalidTransition, order.Status, next)
	}

	previous := order.Status
	ok, err := s.store.UpdateOrderStatus(ctx, orderID, previous, next)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %d was modified concurrently",
			models.ErrInvalidTransition, orderID)
	}
	order.Status = next

	util.OrderStatusUpdatesTotal.WithLabelValues(next.String()).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", previous.String()),
		zap.String("to", next.String()))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged, s.now()),
		OrderID:   orderID,
		From:      previous,
		To:        next,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return order, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.store.GetOrderByID(ctx, orderID)
}

// ListOrders retrieves all orders
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.store.GetOrders(ctx)
}

// ListOrdersByCustomer retrieves the orders of one customer
func (s *OrderService) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrdersByCustomer")
	defer span.End()

	return s.store.GetOrdersByCustomerID(ctx, customerID)
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated, s.now()),
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *OrderService) publishStockLow(ctx context.Context, product *models.Product) {
	event := &models.StockLowEvent{
		BaseEvent:     newBaseEvent(models.EventTypeStockLow, s.now()),
		ProductID:     product.ID,
		Name:          product.Name,
		StockQuantity: product.StockQuantity,
		ReorderLevel:  product.ReorderLevel,
	}
	if err := s.publisher.PublishStockLow(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockLow event",
			zap.Int64("product_id", product.ID),
			zap.Error(err))
	}
}

func validateCreateOrder(req *CreateOrderRequest) (models.OrderStatus, error) {
	if req.CustomerID <= 0 {
		return "", models.Validationf("customer ID must be positive")
	}
	if len(req.Items) == 0 {
		return "", models.Validationf("order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return "", models.Validationf("quantity for product %d must be greater than zero", item.ProductID)
		}
	}

	if strings.TrimSpace(req.InitialStatus) == "" {
		return models.OrderStatusPending, nil
	}
	return models.ParseOrderStatus(req.InitialStatus)
}

func distinctProductIDs(items []OrderItemRequest) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, models.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, store.ErrDuplicateIdempotencyKey):
		return "duplicate"
	default:
		return "db_error"
	}
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now.UTC(),
	}
}
