package store

import (
	"context"
	"database/sql"
	"errors"

	"backoffice-api/internal/models"
)

const customerColumns = `id, name, email, contact_number, address, created_at`

// GetCustomers retrieves all customers
func (s *Store) GetCustomers(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	err := s.db.SelectContext(ctx, &customers,
		"SELECT "+customerColumns+" FROM customers ORDER BY id")
	return customers, err
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomerExistsByEmail reports whether another customer already uses email
func (s *Store) CustomerExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM customers WHERE lower(email) = lower($1) AND id <> $2)", email, excludeID)
	return exists, err
}

// CreateCustomer inserts a customer
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (name, email, contact_number, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query, c.Name, c.Email, c.ContactNumber, c.Address).
		Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrDuplicateEmail
	}
	return err
}

// UpdateCustomer overwrites a customer's details
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET name = $1, email = $2, contact_number = $3, address = $4 WHERE id = $5",
		c.Name, c.Email, c.ContactNumber, c.Address, c.ID)
	if isUniqueViolation(err) {
		return models.ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrCustomerNotFound)
}

// DeleteCustomer removes a customer without orders
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	if isForeignKeyViolation(err) {
		return models.ErrInUse
	}
	if err != nil {
		return err
	}
	return requireAffected(res, models.ErrCustomerNotFound)
}
