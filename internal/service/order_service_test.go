package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backoffice-api/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	store     *memStore
	cache     *fakeCache
	locker    *fakeLocker
	publisher *fakePublisher
	svc       *OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		store:     newMemStore(),
		cache:     newFakeCache(),
		locker:    newFakeLocker(),
		publisher: &fakePublisher{},
	}
	f.svc = NewOrderService(f.store, f.cache, f.locker, f.publisher, 30*time.Second)
	return f
}

func orderFor(items ...OrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{CustomerID: 1, Items: items}
}

func TestCreateOrder_DecrementsStockAndPricesItems(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, orderFor(OrderItemRequest{ProductID: 1, Quantity: 3}))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("30.00").Equal(order.TotalAmount))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "Ada Lovelace", order.CustomerName)
	require.Len(t, order.Items, 1)
	assert.True(t, decimal.RequireFromString("10.00").Equal(order.Items[0].UnitPrice))
	assert.Equal(t, "Widget", order.Items[0].ProductName)
	assert.Equal(t, 2, f.store.stock(1))

	_, err = f.svc.CreateOrder(ctx, orderFor(OrderItemRequest{ProductID: 1, Quantity: 3}))
	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, "insufficient stock for product Widget. Available: 2, Requested: 3", err.Error())
	assert.ErrorIs(t, err, models.ErrBusinessRule)
	assert.Equal(t, 2, f.store.stock(1))
	assert.Equal(t, 1, f.store.orderCount())
}

func TestCreateOrder_TotalIsSumOfLines(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.25", 10, 0)
	f.store.addProduct(2, "Gadget", "0.10", 10, 0)

	order, err := f.svc.CreateOrder(context.Background(), orderFor(
		OrderItemRequest{ProductID: 1, Quantity: 2},
		OrderItemRequest{ProductID: 2, Quantity: 3},
	))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.LineTotal())
	}
	assert.True(t, sum.Equal(order.TotalAmount))
	assert.Equal(t, "20.80", order.TotalAmount.StringFixed(2))
	assert.Equal(t, 8, f.store.stock(1))
	assert.Equal(t, 7, f.store.stock(2))
}

func TestCreateOrder_FailingItemLeavesAllStockUntouched(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)
	f.store.addProduct(2, "Gadget", "5.00", 1, 0)

	_, err := f.svc.CreateOrder(context.Background(), orderFor(
		OrderItemRequest{ProductID: 1, Quantity: 2},
		OrderItemRequest{ProductID: 2, Quantity: 2},
	))

	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Equal(t, 5, f.store.stock(1))
	assert.Equal(t, 1, f.store.stock(2))
	assert.Zero(t, f.store.orderCount())
	assert.Empty(t, f.publisher.created)
}

func TestCreateOrder_RepeatedProductCountsAgainstSameStock(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)

	_, err := f.svc.CreateOrder(context.Background(), orderFor(
		OrderItemRequest{ProductID: 1, Quantity: 3},
		OrderItemRequest{ProductID: 1, Quantity: 3},
	))

	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 5, f.store.stock(1))
}

func TestCreateOrder_RollsBackWhenWriteFails(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)
	f.store.failItemInsert = true

	_, err := f.svc.CreateOrder(context.Background(), orderFor(OrderItemRequest{ProductID: 1, Quantity: 2}))

	require.Error(t, err)
	assert.Equal(t, 5, f.store.stock(1))
	assert.Zero(t, f.store.orderCount())
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)

	_, err := f.svc.CreateOrder(context.Background(), orderFor(
		OrderItemRequest{ProductID: 1, Quantity: 1},
		OrderItemRequest{ProductID: 99, Quantity: 1},
	))

	var notFound *models.ProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, int64(99), notFound.ProductID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 5, f.store.stock(1))
}

func TestCreateOrder_UnknownCustomer(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		CustomerID: 42,
		Items:      []OrderItemRequest{{ProductID: 1, Quantity: 1}},
	})

	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
	assert.Equal(t, 5, f.store.stock(1))
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *CreateOrderRequest
	}{
		{"no items", &CreateOrderRequest{CustomerID: 1}},
		{"zero quantity", orderFor(OrderItemRequest{ProductID: 1, Quantity: 0})},
		{"negative quantity", orderFor(OrderItemRequest{ProductID: 1, Quantity: -2})},
		{"missing customer", &CreateOrderRequest{Items: []OrderItemRequest{{ProductID: 1, Quantity: 1}}}},
		{"unknown initial status", &CreateOrderRequest{
			CustomerID:    1,
			Items:         []OrderItemRequest{{ProductID: 1, Quantity: 1}},
			InitialStatus: "Teleported",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			f.store.addProduct(1, "Widget", "10.00", 5, 0)

			_, err := f.svc.CreateOrder(context.Background(), tt.req)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Equal(t, 5, f.store.stock(1))
		})
	}
}

func TestCreateOrder_InitialStatus(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)

	req := orderFor(OrderItemRequest{ProductID: 1, Quantity: 1})
	req.InitialStatus = "paid"

	order, err := f.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)
	ctx := context.Background()

	req := orderFor(OrderItemRequest{ProductID: 1, Quantity: 2})
	req.IdempotencyKey = "retry-1"

	first, err := f.svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, f.store.stock(1))
	assert.Equal(t, 1, f.store.orderCount())
	assert.Empty(t, f.locker.locks)
}

func TestCreateOrder_IdempotencyKeyInProgress(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)
	ctx := context.Background()

	_, err := f.locker.AcquireLock(ctx, "order:retry-1", time.Minute)
	require.NoError(t, err)

	req := orderFor(OrderItemRequest{ProductID: 1, Quantity: 2})
	req.IdempotencyKey = "retry-1"

	_, err = f.svc.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, models.ErrOrderInProgress)
	assert.Equal(t, 5, f.store.stock(1))
}

func TestCreateOrder_PublishesEventsAndInvalidatesCache(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 12, 10)
	f.store.addProduct(2, "Gadget", "5.00", 3, 10)

	order, err := f.svc.CreateOrder(context.Background(), orderFor(
		OrderItemRequest{ProductID: 1, Quantity: 5},
		OrderItemRequest{ProductID: 2, Quantity: 1},
	))
	require.NoError(t, err)

	require.Len(t, f.publisher.created, 1)
	assert.Equal(t, order.ID, f.publisher.created[0].OrderID)
	assert.Equal(t, models.EventTypeOrderCreated, f.publisher.created[0].EventType)
	assert.Len(t, f.publisher.created[0].Items, 2)

	// only the product that crossed its reorder level raises an event
	require.Len(t, f.publisher.stockLow, 1)
	assert.Equal(t, int64(1), f.publisher.stockLow[0].ProductID)
	assert.Equal(t, 7, f.publisher.stockLow[0].StockQuantity)

	assert.ElementsMatch(t, []int64{1, 2}, f.cache.invalidated)
}

func TestCreateOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)
	f.publisher.err = errors.New("broker unavailable")

	order, err := f.svc.CreateOrder(context.Background(), orderFor(OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, 4, f.store.stock(1))
}

func TestCreateOrder_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateOrder(context.Background(), orderFor(OrderItemRequest{ProductID: 1, Quantity: 1}))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, f.store.stock(1))
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newOrderFixture()
	f.store.addProduct(1, "Widget", "10.00", 5, 0)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, orderFor(OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	updated, err := f.svc.UpdateOrderStatus(ctx, order.ID, "Paid")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, updated.Status)
	require.Len(t, f.publisher.statusChanged, 1)
	assert.Equal(t, models.OrderStatusPending, f.publisher.statusChanged[0].From)
	assert.Equal(t, models.OrderStatusPaid, f.publisher.statusChanged[0].To)

	// same status is a no-op
	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, "paid")
	require.NoError(t, err)
	assert.Len(t, f.publisher.statusChanged, 1)

	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, "Pending")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.ErrorIs(t, err, models.ErrBusinessRule)

	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, "Shipped")
	require.NoError(t, err)
	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, "Delivered")
	require.NoError(t, err)
	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, "Cancelled")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
}

func TestUpdateOrderStatus_Errors(t *testing.T) {
	f := newOrderFixture()
	f.store.putOrder(&models.Order{ID: 7, CustomerID: 1, Status: "Pending Payment"})
	ctx := context.Background()

	_, err := f.svc.UpdateOrderStatus(ctx, 404, "Paid")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.UpdateOrderStatus(ctx, 7, "Lost")
	assert.ErrorIs(t, err, models.ErrValidation)

	// statuses outside the known set accept no transitions
	_, err = f.svc.UpdateOrderStatus(ctx, 7, "Paid")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := f.svc.GetOrder(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatus("Pending Payment"), stored.Status)
	assert.Empty(t, f.publisher.statusChanged)
}

func TestListOrders(t *testing.T) {
	f := newOrderFixture()
	f.store.customers[2] = "Grace Hopper"
	f.store.putOrder(&models.Order{ID: 1, CustomerID: 1, Status: models.OrderStatusPaid})
	f.store.putOrder(&models.Order{ID: 2, CustomerID: 2, Status: models.OrderStatusPaid})
	ctx := context.Background()

	all, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.ListOrdersByCustomer(ctx, 2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Grace Hopper", mine[0].CustomerName)
}
