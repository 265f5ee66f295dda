package models

import (
	"errors"
	"fmt"
)

// Error categories. The API layer maps each category to one HTTP status.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrBusinessRule = errors.New("business rule violation")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrOrderNotFound      = newKindError("order not found", ErrNotFound)
	ErrProductNotFound    = newKindError("product not found", ErrNotFound)
	ErrCustomerNotFound   = newKindError("customer not found", ErrNotFound)
	ErrInsufficientStock  = newKindError("insufficient stock", ErrBusinessRule)
	ErrInvalidTransition  = newKindError("invalid order status transition", ErrBusinessRule)
	ErrDuplicateName      = newKindError("product with this name already exists", ErrBusinessRule)
	ErrDuplicateEmail     = newKindError("customer with this email already exists", ErrBusinessRule)
	ErrDuplicateIdentity  = newKindError("user with this email already exists", ErrBusinessRule)
	ErrInUse              = newKindError("record is referenced by existing orders", ErrBusinessRule)
	ErrNegativeStock      = newKindError("stock quantity cannot be negative", ErrBusinessRule)
	ErrOrderInProgress    = newKindError("an order with this idempotency key is already being processed", ErrBusinessRule)
	ErrInvalidCredentials = newKindError("invalid email or password", ErrUnauthorized)
)

// kindError is an error with a caller-facing message that unwraps to its category
type kindError struct {
	msg  string
	kind error
}

func newKindError(msg string, kind error) *kindError {
	return &kindError{msg: msg, kind: kind}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Validationf builds a validation error whose message is safe to return to callers
func Validationf(format string, args ...interface{}) error {
	return newKindError(fmt.Sprintf(format, args...), ErrValidation)
}

// ProductNotFoundError is returned when an order references a missing product
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error {
	return ErrProductNotFound
}

// InsufficientStockError carries the stock numbers of the failing line item
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("#%d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for product %s. Available: %d, Requested: %d",
		name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
