package service

import (
	"context"
	"time"

	"backoffice-api/internal/models"
	"backoffice-api/internal/store"

	"github.com/shopspring/decimal"
)

// OrderStore is the order ledger plus the transactional inventory surface
type OrderStore interface {
	WithinTx(ctx context.Context, fn func(store.InventoryTx) error) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error)
}

type ProductStore interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ProductExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	UpdateStock(ctx context.Context, id int64, newQuantity int) error
	AdjustStock(ctx context.Context, id int64, delta int) (*models.Product, error)
}

type CustomerStore interface {
	GetCustomers(ctx context.Context) ([]models.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	CustomerExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
}

type ReportStore interface {
	GetRecentOrders(ctx context.Context, limit int) ([]models.Order, error)
	SumSales(ctx context.Context, from, to time.Time, excludedStatuses []string) (decimal.Decimal, error)
	GetLowStockProducts(ctx context.Context) ([]models.Product, error)
}

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	AddUserRole(ctx context.Context, userID, role string) error
}

type AlertStore interface {
	RecordRestockAlert(ctx context.Context, alert *models.RestockAlert) (bool, error)
	GetRestockAlerts(ctx context.Context, limit int) ([]models.RestockAlert, error)
}

// ProductCache is a read-through cache in front of the product store
type ProductCache interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, bool, error)
	SetProduct(ctx context.Context, product *models.Product) error
	GetProductList(ctx context.Context) ([]models.Product, bool, error)
	SetProductList(ctx context.Context, products []models.Product) error
	InvalidateProducts(ctx context.Context, ids ...int64) error
}

// Locker serializes work on a key across requests
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher publishes domain events after the state change is committed
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}
