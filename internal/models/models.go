package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item and its stock level
type Product struct {
	ID            int64           `db:"id" json:"productId"`
	Name          string          `db:"name" json:"name"`
	Description   *string         `db:"description" json:"description,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stockQuantity"`
	ReorderLevel  int             `db:"reorder_level" json:"reorderLevel"`
	CreatedAt     time.Time       `db:"created_at" json:"-"`
	UpdatedAt     time.Time       `db:"updated_at" json:"-"`
}

// IsLowStock reports whether the product has fallen below its reorder level
func (p *Product) IsLowStock() bool {
	return p.StockQuantity < p.ReorderLevel
}

// Customer represents a buyer. Orders reference customers but do not own them.
type Customer struct {
	ID            int64     `db:"id" json:"customerId"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	ContactNumber *string   `db:"contact_number" json:"contactNumber,omitempty"`
	Address       *string   `db:"address" json:"address,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"-"`
}

// Order represents a customer order. Status is the only field that changes after creation.
type Order struct {
	ID             int64           `db:"id" json:"orderId"`
	CustomerID     int64           `db:"customer_id" json:"customerId"`
	CustomerName   string          `db:"customer_name" json:"customerName"`
	OrderDate      time.Time       `db:"order_date" json:"orderDate"`
	Status         OrderStatus     `db:"status" json:"status"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	Items          []OrderItem     `db:"-" json:"orderItems"`
}

// OrderItem is one priced line of an order. UnitPrice is the product price at order time.
type OrderItem struct {
	ID          int64           `db:"id" json:"orderItemId"`
	OrderID     int64           `db:"order_id" json:"orderId"`
	ProductID   int64           `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

// LineTotal returns unit price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// User is an authenticated principal
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Roles        []string  `db:"-" json:"roles"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}

// Roles
const (
	RoleAdmin   = "Admin"
	RoleManager = "Manager"
	RoleUser    = "User"
)

// RestockAlert is recorded when a product falls below its reorder level
type RestockAlert struct {
	ID            int64     `db:"id" json:"id"`
	EventID       string    `db:"event_id" json:"eventId"`
	ProductID     int64     `db:"product_id" json:"productId"`
	ProductName   string    `db:"product_name" json:"productName"`
	StockQuantity int       `db:"stock_quantity" json:"stockQuantity"`
	ReorderLevel  int       `db:"reorder_level" json:"reorderLevel"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
