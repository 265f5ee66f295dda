package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: nil,
	OrderStatusCancelled: nil,
}

// ParseOrderStatus matches s case-insensitively against the known statuses
func ParseOrderStatus(s string) (OrderStatus, error) {
	s = strings.TrimSpace(s)
	for status := range orderTransitions {
		if strings.EqualFold(string(status), s) {
			return status, nil
		}
	}
	return "", Validationf("unknown order status %q", s)
}

// IsTerminal reports whether no further transitions are allowed
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether the status may move to next.
// Re-applying the current status is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// Value implements driver.Valuer
func (s OrderStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner. Legacy rows may hold statuses outside the enum,
// so the raw value is kept as is.
func (s *OrderStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = OrderStatus(v)
	case []byte:
		*s = OrderStatus(v)
	case nil:
		*s = ""
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", src)
	}
	return nil
}
